package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/shopflow-backend/pkg/db/types"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns cash on delivery collection records.
type Service struct {
	db      txRunner
	repo    *Repository
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.Workflow
	now     func() time.Time
}

func NewService(db txRunner, repo *Repository, outbox outboxPublisher, logg *logger.Logger, m *metrics.Workflow) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{db: db, repo: repo, outbox: outbox, logg: logg, metrics: m, now: time.Now}, nil
}

// CreateForOrder writes the COD record of order in tx and links it back on the
// in-memory order.
func (s *Service) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Payment, error) {
	p, err := NewCODPayment(order)
	if err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).Create(ctx, p); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	order.PaymentID = &p.ID
	order.PaymentStatus = p.Status
	return p, nil
}

// FailOutstanding marks the order's payment failed when cash is still owed. It
// reports whether a record changed.
func (s *Service) FailOutstanding(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	repo := s.repo.WithTx(tx)
	p, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if p == nil || !p.IsOutstanding || p.Status == enums.PaymentStatusFailed {
		return false, nil
	}
	if err := repo.Update(ctx, p.ID, map[string]any{"status": enums.PaymentStatusFailed}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
	}
	return true, nil
}

// AssignCollector records who will collect the order's cash.
func (s *Service) AssignCollector(ctx context.Context, tx *gorm.DB, orderID, deliveryPersonID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	p, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if p == nil {
		return nil
	}
	if err := repo.Update(ctx, p.ID, map[string]any{"delivery_person_id": deliveryPersonID}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign payment collector")
	}
	return nil
}

// CollectPayment books cash handed over at the door. Overpayment is rejected.
func (s *Service) CollectPayment(ctx context.Context, input CollectInput) (*PaymentDTO, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.DeliveryPersonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "delivery person identity missing")
	}

	var out *models.Payment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		p, err := s.loadForCollector(ctx, repo, input.PaymentID, input.DeliveryPersonID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := applyCollection(p, input.Amount, input.DeliveryPersonID, now); err != nil {
			return err
		}
		if input.Notes != nil {
			p.Notes = input.Notes
		}
		if err := repo.Update(ctx, p.ID, paymentUpdates(p)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		attempt := &models.PaymentCollectionAttempt{
			PaymentID:        p.ID,
			DeliveryPersonID: input.DeliveryPersonID,
			Amount:           decimal.NewNullDecimal(input.Amount),
			Issues:           dbtypes.StringArray{},
			Description:      input.Notes,
		}
		if err := repo.InsertAttempt(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert collection attempt")
		}
		if err := repo.SyncOrderPaymentStatus(ctx, p.OrderID, p.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync order payment status")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventCashCollected,
			AggregateType: enums.AggregatePayment,
			AggregateID:   p.ID,
			Actor:         &outbox.ActorRef{UserID: input.DeliveryPersonID, Role: enums.RoleDeliveryPerson},
			Data: payloads.CashCollectedEvent{
				PaymentID:        p.ID,
				OrderID:          p.OrderID,
				DeliveryPersonID: input.DeliveryPersonID,
				Amount:           input.Amount,
				CollectedTotal:   p.CollectedAmount,
				Balance:          p.BalanceAmount,
				CollectionStatus: p.CollectionStatus,
				Status:           p.Status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit cash collected event")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentCollected(string(out.Status))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_id": out.ID.String(),
			"order_id":   out.OrderID.String(),
			"amount":     input.Amount.StringFixed(2),
			"balance":    out.BalanceAmount.StringFixed(2),
			"status":     out.Status,
		})
		s.logg.Info(logCtx, "payment.collected")
	}
	return FromModel(out), nil
}

// ReportCollectionIssue marks the collection failed with the reasons given.
func (s *Service) ReportCollectionIssue(ctx context.Context, input IssueInput) (*PaymentDTO, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.DeliveryPersonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "delivery person identity missing")
	}
	if err := validateIssues(input.Issues); err != nil {
		return nil, err
	}

	var out *models.Payment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		p, err := s.loadForCollector(ctx, repo, input.PaymentID, input.DeliveryPersonID)
		if err != nil {
			return err
		}
		if !p.IsOutstanding {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment already settled")
		}
		applyIssue(p)
		if err := repo.Update(ctx, p.ID, paymentUpdates(p)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		issues := make(dbtypes.StringArray, 0, len(input.Issues))
		for _, issue := range input.Issues {
			issues = append(issues, string(issue))
		}
		attempt := &models.PaymentCollectionAttempt{
			PaymentID:        p.ID,
			DeliveryPersonID: input.DeliveryPersonID,
			Issues:           issues,
			Description:      input.Description,
		}
		if err := repo.InsertAttempt(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert collection attempt")
		}
		if err := repo.SyncOrderPaymentStatus(ctx, p.OrderID, p.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync order payment status")
		}
		data := payloads.PaymentCollectionFailedEvent{
			PaymentID:        p.ID,
			OrderID:          p.OrderID,
			DeliveryPersonID: input.DeliveryPersonID,
			Issues:           input.Issues,
			Attempts:         p.DeliveryAttempts,
		}
		if input.Description != nil {
			data.Description = *input.Description
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCollectionFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   p.ID,
			Actor:         &outbox.ActorRef{UserID: input.DeliveryPersonID, Role: enums.RoleDeliveryPerson},
			Data:          data,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit collection failed event")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, issue := range input.Issues {
		s.metrics.CollectionIssue(string(issue))
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_id": out.ID.String(),
			"order_id":   out.OrderID.String(),
			"issues":     input.Issues,
			"attempts":   out.DeliveryAttempts,
		})
		s.logg.Warn(logCtx, "payment.collection_issue")
	}
	return FromModel(out), nil
}

// GetPayment returns a payment with its attempts. Customers see their own,
// delivery persons the ones assigned to them.
func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID, viewer Viewer) (*PaymentDTO, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	p, err := s.repo.FindByID(ctx, paymentID, false)
	if err != nil {
		return nil, notFoundOr(err)
	}
	switch viewer.Role {
	case enums.RoleAdmin, enums.RoleSystem:
	case enums.RoleCustomer:
		if p.CustomerID != viewer.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
	case enums.RoleDeliveryPerson:
		if p.DeliveryPersonID == nil || *p.DeliveryPersonID != viewer.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment is not assigned to you")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	attempts, err := s.repo.ListAttempts(ctx, p.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collection attempts")
	}
	dto := FromModel(p)
	dto.Attempts = fromAttempts(attempts)
	return dto, nil
}

func (s *Service) loadForCollector(ctx context.Context, repo *Repository, paymentID, deliveryPersonID uuid.UUID) (*models.Payment, error) {
	p, err := repo.FindByID(ctx, paymentID, true)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if p.DeliveryPersonID != nil && *p.DeliveryPersonID != deliveryPersonID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment is assigned to another delivery person")
	}
	status, err := repo.OrderStatus(ctx, p.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order status")
	}
	if status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is cancelled").
			WithDetails(map[string]any{"orderStatus": status})
	}
	return p, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
}
