package inventory

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	internalinventory "github.com/angelmondragon/shopflow-backend/internal/inventory"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/pagination"
)

type stubInventory struct {
	adjust   *internalinventory.AdjustStockInput
	transfer *internalinventory.TransferInput
	list     *internalinventory.ListMovementsInput
}

func (s *stubInventory) AdjustStock(_ context.Context, input internalinventory.AdjustStockInput) (*internalinventory.AdjustStockResult, error) {
	s.adjust = &input
	return &internalinventory.AdjustStockResult{}, nil
}

func (s *stubInventory) Transfer(_ context.Context, input internalinventory.TransferInput) (*internalinventory.TransferResult, error) {
	s.transfer = &input
	return &internalinventory.TransferResult{TransferID: uuid.New()}, nil
}

func (s *stubInventory) GetInventory(_ context.Context, productID, variantID uuid.UUID) (*internalinventory.InventoryDTO, error) {
	return &internalinventory.InventoryDTO{ProductID: productID, VariantID: variantID, CurrentStock: 4}, nil
}

func (s *stubInventory) ListMovements(_ context.Context, input internalinventory.ListMovementsInput) (*internalinventory.MovementList, error) {
	s.list = &input
	return &internalinventory.MovementList{Items: []internalinventory.MovementDTO{}}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: io.Discard})
}

func adminRequest(method, target, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithIdentity(req.Context(), uuid.New(), enums.RoleAdmin, "")
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, routeCtx))
}

func TestRecordMovement(t *testing.T) {
	productID, variantID := uuid.New(), uuid.New()
	stub := &stubInventory{}

	rec := httptest.NewRecorder()
	body := `{"productId":"` + productID.String() + `","variantId":"` + variantID.String() + `","movementType":"reservation","quantity":-1,"reason":"x"}`
	RecordMovement(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodPost, "/api/v1/inventory/movements", body, nil))
	require.Equal(t, http.StatusCreated, rec.Code, "the service decides which manual types are allowed")
	require.Equal(t, enums.MovementReservation, stub.adjust.Type)

	rec = httptest.NewRecorder()
	body = `{"productId":"` + productID.String() + `","variantId":"` + variantID.String() + `","movementType":"restock","quantity":5,"reason":"x"}`
	RecordMovement(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodPost, "/api/v1/inventory/movements", body, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	body = `{"productId":"` + productID.String() + `","variantId":"` + variantID.String() + `","movementType":"in","quantity":5,"reason":" supplier delivery ","notes":""}`
	RecordMovement(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodPost, "/api/v1/inventory/movements", body, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, enums.MovementIn, stub.adjust.Type)
	require.Equal(t, 5, stub.adjust.Quantity)
	require.Equal(t, "supplier delivery", stub.adjust.Reason)
	require.Nil(t, stub.adjust.Notes)
	require.NotEqual(t, uuid.Nil, stub.adjust.PerformedBy)
}

func TestTransfer(t *testing.T) {
	stub := &stubInventory{}
	from, to := uuid.New(), uuid.New()
	body := `{"from":{"productId":"` + from.String() + `","variantId":"` + from.String() + `"},` +
		`"to":{"productId":"` + to.String() + `","variantId":"` + to.String() + `"},"quantity":3,"reason":"rebalance"}`

	rec := httptest.NewRecorder()
	Transfer(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodPost, "/api/v1/inventory/transfers", body, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, from, stub.transfer.FromVariantID)
	require.Equal(t, to, stub.transfer.ToVariantID)
	require.Equal(t, 3, stub.transfer.Quantity)

	rec = httptest.NewRecorder()
	Transfer(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodPost, "/api/v1/inventory/transfers", `{"quantity":0,"reason":"x"}`, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMovements(t *testing.T) {
	stub := &stubInventory{}
	productID, variantID := uuid.New(), uuid.New()
	params := map[string]string{"productId": productID.String(), "variantId": variantID.String()}

	rec := httptest.NewRecorder()
	ListMovements(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodGet, "/movements?cursor=c1", "", params))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, pagination.DefaultLimit, stub.list.Limit)
	require.Equal(t, "c1", stub.list.Cursor)
	require.Equal(t, variantID, stub.list.VariantID)

	rec = httptest.NewRecorder()
	Get(stub, testLogger()).ServeHTTP(rec, adminRequest(http.MethodGet, "/", "", map[string]string{"productId": productID.String(), "variantId": "bad"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
