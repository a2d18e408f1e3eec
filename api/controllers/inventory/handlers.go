package inventory

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	"github.com/angelmondragon/shopflow-backend/api/responses"
	"github.com/angelmondragon/shopflow-backend/api/validators"
	internalinventory "github.com/angelmondragon/shopflow-backend/internal/inventory"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/pagination"
)

const maxNotesLength = 1000

type stockWriter interface {
	AdjustStock(ctx context.Context, input internalinventory.AdjustStockInput) (*internalinventory.AdjustStockResult, error)
	Transfer(ctx context.Context, input internalinventory.TransferInput) (*internalinventory.TransferResult, error)
}

type stockReader interface {
	GetInventory(ctx context.Context, productID, variantID uuid.UUID) (*internalinventory.InventoryDTO, error)
	ListMovements(ctx context.Context, input internalinventory.ListMovementsInput) (*internalinventory.MovementList, error)
}

// RecordMovement books a manual in, out or adjustment movement.
func RecordMovement(svc stockWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body movementRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementType, err := enums.ParseMovementType(strings.TrimSpace(body.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}

		result, err := svc.AdjustStock(r.Context(), internalinventory.AdjustStockInput{
			ProductID:   body.ProductID,
			VariantID:   body.VariantID,
			Type:        movementType,
			Quantity:    body.Quantity,
			Reason:      validators.SanitizeString(body.Reason, 255),
			UnitCost:    body.UnitCost,
			Notes:       validators.OptionalString(body.Notes, maxNotesLength),
			PerformedBy: adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "Stock movement recorded", result)
	}
}

// Transfer moves units between two variants.
func Transfer(svc stockWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Transfer(r.Context(), internalinventory.TransferInput{
			FromProductID: body.From.ProductID,
			FromVariantID: body.From.VariantID,
			ToProductID:   body.To.ProductID,
			ToVariantID:   body.To.VariantID,
			Quantity:      body.Quantity,
			Reason:        validators.SanitizeString(body.Reason, 255),
			Notes:         validators.OptionalString(body.Notes, maxNotesLength),
			PerformedBy:   adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "Stock transferred", result)
	}
}

// Get returns the inventory aggregate of a variant.
func Get(svc stockReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, variantID, err := parseVariantPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inv, err := svc.GetInventory(r.Context(), productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", inv)
	}
}

// ListMovements pages a variant's ledger newest first.
func ListMovements(svc stockReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, variantID, err := parseVariantPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMovements(r.Context(), internalinventory.ListMovementsInput{
			ProductID: productID,
			VariantID: variantID,
			Limit:     limit,
			Cursor:    strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", list)
	}
}

func parseVariantPath(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	productID, err := validators.ParseUUIDParam(r, "productId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	variantID, err := validators.ParseUUIDParam(r, "variantId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return productID, variantID, nil
}
