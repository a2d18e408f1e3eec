package discounts

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	"github.com/angelmondragon/shopflow-backend/api/responses"
	"github.com/angelmondragon/shopflow-backend/api/validators"
	internaldiscounts "github.com/angelmondragon/shopflow-backend/internal/discounts"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

type discountService interface {
	CreateDiscount(ctx context.Context, adminID uuid.UUID, input internaldiscounts.CreateDiscountInput) (*internaldiscounts.DiscountDTO, error)
	Validate(ctx context.Context, userID uuid.UUID, input internaldiscounts.ValidateInput) (*internaldiscounts.ValidationResult, error)
}

// Create defines a new discount code.
func Create(svc discountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internaldiscounts.CreateDiscountInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := svc.CreateDiscount(r.Context(), adminID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, "Discount created", discount)
	}
}

// Validate previews what a code would take off an order amount.
func Validate(svc discountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internaldiscounts.ValidateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Validate(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Discount code is valid", result)
	}
}
