package delivery

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	"github.com/angelmondragon/shopflow-backend/api/responses"
	"github.com/angelmondragon/shopflow-backend/api/validators"
	internaldelivery "github.com/angelmondragon/shopflow-backend/internal/delivery"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

const maxNotesLength = 1000

type runService interface {
	MarkOutForDelivery(ctx context.Context, input internaldelivery.ProgressInput) (*internaldelivery.AssignmentDTO, error)
	MarkDelivered(ctx context.Context, input internaldelivery.ProgressInput) (*internaldelivery.AssignmentDTO, error)
}

type assignmentLister interface {
	ListAssignments(ctx context.Context, deliveryPersonID uuid.UUID, activeOnly bool) ([]internaldelivery.AssignmentDTO, error)
}

// OutForDelivery starts the caller's run for an order.
func OutForDelivery(svc runService, logg *logger.Logger) http.HandlerFunc {
	return progress(svc.MarkOutForDelivery, "Order is out for delivery", logg)
}

// Delivered closes the caller's run for an order.
func Delivered(svc runService, logg *logger.Logger) http.HandlerFunc {
	return progress(svc.MarkDelivered, "Order delivered", logg)
}

func progress(step func(context.Context, internaldelivery.ProgressInput) (*internaldelivery.AssignmentDTO, error), message string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internaldelivery.ProgressInput
		if err := validators.DecodeOptionalJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.OrderID = orderID
		input.DeliveryPersonID = userID
		input.Notes = validators.SanitizeString(input.Notes, maxNotesLength)

		assignment, err := step(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, message, assignment)
	}
}

// Assignments lists the caller's runs. ?active=false includes finished ones.
func Assignments(svc assignmentLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignments, err := svc.ListAssignments(r.Context(), userID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", map[string]any{"assignments": assignments})
	}
}
