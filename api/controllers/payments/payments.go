package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/api/middleware"
	"github.com/angelmondragon/shopflow-backend/api/responses"
	"github.com/angelmondragon/shopflow-backend/api/validators"
	internalpayments "github.com/angelmondragon/shopflow-backend/internal/payments"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

const maxTextLength = 1000

type paymentReader interface {
	GetPayment(ctx context.Context, paymentID uuid.UUID, viewer internalpayments.Viewer) (*internalpayments.PaymentDTO, error)
}

type collector interface {
	CollectPayment(ctx context.Context, input internalpayments.CollectInput) (*internalpayments.PaymentDTO, error)
	ReportCollectionIssue(ctx context.Context, input internalpayments.IssueInput) (*internalpayments.PaymentDTO, error)
}

// Get returns a payment with its collection attempts.
func Get(svc paymentReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetPayment(r.Context(), paymentID, internalpayments.Viewer{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "", payment)
	}
}

type collectRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

// Collect books cash received at the door by the assigned delivery person.
func Collect(svc collector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body collectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !body.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").WithDetails(map[string]any{"field": "amount"}))
			return
		}

		payment, err := svc.CollectPayment(r.Context(), internalpayments.CollectInput{
			PaymentID:        paymentID,
			DeliveryPersonID: userID,
			Amount:           body.Amount,
			Notes:            validators.OptionalString(body.Notes, maxTextLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Payment collected", payment)
	}
}

type issueRequest struct {
	Issues      []string `json:"issues" validate:"required,min=1"`
	Description string   `json:"description"`
}

// ReportIssue records a failed collection attempt.
func ReportIssue(svc collector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.Identity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body issueRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		issues := make([]enums.CollectionIssue, 0, len(body.Issues))
		for _, raw := range body.Issues {
			issue, err := enums.ParseCollectionIssue(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid collection issue").WithDetails(map[string]any{"issue": raw}))
				return
			}
			issues = append(issues, issue)
		}

		payment, err := svc.ReportCollectionIssue(r.Context(), internalpayments.IssueInput{
			PaymentID:        paymentID,
			DeliveryPersonID: userID,
			Issues:           issues,
			Description:      validators.OptionalString(body.Description, maxTextLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "Collection issue recorded", payment)
	}
}
