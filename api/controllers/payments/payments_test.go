package payments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	internalpayments "github.com/angelmondragon/shopflow-backend/internal/payments"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

type stubPayments struct {
	collect   *internalpayments.CollectInput
	issue     *internalpayments.IssueInput
	viewer    internalpayments.Viewer
	collectFn func(internalpayments.CollectInput) error
}

func (s *stubPayments) GetPayment(_ context.Context, id uuid.UUID, viewer internalpayments.Viewer) (*internalpayments.PaymentDTO, error) {
	s.viewer = viewer
	return &internalpayments.PaymentDTO{ID: id}, nil
}

func (s *stubPayments) CollectPayment(_ context.Context, input internalpayments.CollectInput) (*internalpayments.PaymentDTO, error) {
	s.collect = &input
	if s.collectFn != nil {
		if err := s.collectFn(input); err != nil {
			return nil, err
		}
	}
	return &internalpayments.PaymentDTO{ID: input.PaymentID, CollectedAmount: input.Amount}, nil
}

func (s *stubPayments) ReportCollectionIssue(_ context.Context, input internalpayments.IssueInput) (*internalpayments.PaymentDTO, error) {
	s.issue = &input
	return &internalpayments.PaymentDTO{ID: input.PaymentID}, nil
}

func paymentRequest(method, body string, userID, paymentID uuid.UUID, role enums.UserRole) *http.Request {
	req := httptest.NewRequest(method, "/api/delivery/payments/"+paymentID.String(), strings.NewReader(body))
	ctx := middleware.WithIdentity(req.Context(), userID, role, "")
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("paymentId", paymentID.String())
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, routeCtx))
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: io.Discard})
}

func TestCollect(t *testing.T) {
	logg := testLogger()
	riderID := uuid.New()
	paymentID := uuid.New()

	t.Run("non positive amount", func(t *testing.T) {
		stub := &stubPayments{}
		rec := httptest.NewRecorder()
		Collect(stub, logg).ServeHTTP(rec, paymentRequest(http.MethodPost, `{"amount":"0"}`, riderID, paymentID, enums.RoleDeliveryPerson))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Nil(t, stub.collect)
	})

	t.Run("passes amount and collector", func(t *testing.T) {
		stub := &stubPayments{}
		rec := httptest.NewRecorder()
		Collect(stub, logg).ServeHTTP(rec, paymentRequest(http.MethodPost, `{"amount":"45.50","notes":" exact change "}`, riderID, paymentID, enums.RoleDeliveryPerson))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, stub.collect)
		require.Equal(t, paymentID, stub.collect.PaymentID)
		require.Equal(t, riderID, stub.collect.DeliveryPersonID)
		require.True(t, decimal.RequireFromString("45.50").Equal(stub.collect.Amount))
		require.NotNil(t, stub.collect.Notes)
		require.Equal(t, "exact change", *stub.collect.Notes)
	})

	t.Run("overpayment surfaces as validation", func(t *testing.T) {
		stub := &stubPayments{collectFn: func(internalpayments.CollectInput) error {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds outstanding balance")
		}}
		rec := httptest.NewRecorder()
		Collect(stub, logg).ServeHTTP(rec, paymentRequest(http.MethodPost, `{"amount":100}`, riderID, paymentID, enums.RoleDeliveryPerson))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "amount exceeds outstanding balance")
	})
}

func TestReportIssue(t *testing.T) {
	logg := testLogger()
	riderID := uuid.New()
	paymentID := uuid.New()

	stub := &stubPayments{}
	rec := httptest.NewRecorder()
	ReportIssue(stub, logg).ServeHTTP(rec, paymentRequest(http.MethodPost, `{"issues":["customer_refused","teleported"]}`, riderID, paymentID, enums.RoleDeliveryPerson))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, stub.issue)

	rec = httptest.NewRecorder()
	ReportIssue(stub, logg).ServeHTTP(rec, paymentRequest(http.MethodPost, `{"issues":["customer_not_available"],"description":"nobody home"}`, riderID, paymentID, enums.RoleDeliveryPerson))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []enums.CollectionIssue{enums.IssueCustomerNotAvailable}, stub.issue.Issues)
	require.Equal(t, "nobody home", *stub.issue.Description)
}

func TestGetPaymentPassesViewer(t *testing.T) {
	stub := &stubPayments{}
	userID := uuid.New()
	rec := httptest.NewRecorder()
	Get(stub, testLogger()).ServeHTTP(rec, paymentRequest(http.MethodGet, "", userID, uuid.New(), enums.RoleCustomer))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, internalpayments.Viewer{UserID: userID, Role: enums.RoleCustomer}, stub.viewer)
}
