package discounts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	internaldiscounts "github.com/angelmondragon/shopflow-backend/internal/discounts"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

type stubDiscounts struct {
	validateErr error
	validated   internaldiscounts.ValidateInput
}

func (s *stubDiscounts) CreateDiscount(_ context.Context, _ uuid.UUID, input internaldiscounts.CreateDiscountInput) (*internaldiscounts.DiscountDTO, error) {
	return &internaldiscounts.DiscountDTO{Code: input.Code}, nil
}

func (s *stubDiscounts) Validate(_ context.Context, _ uuid.UUID, input internaldiscounts.ValidateInput) (*internaldiscounts.ValidationResult, error) {
	s.validated = input
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return &internaldiscounts.ValidationResult{Code: input.Code, DiscountAmount: decimal.NewFromInt(10), FinalAmount: input.OrderAmount.Sub(decimal.NewFromInt(10))}, nil
}

func TestValidateDiscount(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: io.Discard})
	request := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/discounts/validate", strings.NewReader(body))
		return req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), enums.RoleCustomer, ""))
	}

	stub := &stubDiscounts{}
	rec := httptest.NewRecorder()
	Validate(stub, logg).ServeHTTP(rec, request(`{"code":"SAVE10","orderAmount":"120.00"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.validated.Code != "SAVE10" || !stub.validated.OrderAmount.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("unexpected validate input %+v", stub.validated)
	}

	stub = &stubDiscounts{validateErr: pkgerrors.New(pkgerrors.CodeInvalidDiscount, "minimum order amount not met")}
	rec = httptest.NewRecorder()
	Validate(stub, logg).ServeHTTP(rec, request(`{"code":"SAVE10","orderAmount":"5"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "discount code is invalid or expired") {
		t.Fatalf("expected generic discount message, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "minimum order amount") {
		t.Fatalf("evaluator reason leaked: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	Validate(&stubDiscounts{}, logg).ServeHTTP(rec, request(`{"orderAmount":"5"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without code, got %d", rec.Code)
	}
}
