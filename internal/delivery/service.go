package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/internal/orders"
	dbpkg "github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type personFinder interface {
	FindActiveDeliveryPerson(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type orderTransitioner interface {
	Transition(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

type collectorAssigner interface {
	AssignCollector(ctx context.Context, tx *gorm.DB, orderID, deliveryPersonID uuid.UUID) error
}

// ServiceParams wires the delivery workflow.
type ServiceParams struct {
	DB       txRunner
	Repo     *Repository
	Users    personFinder
	Orders   orderTransitioner
	Payments collectorAssigner
	Logger   *logger.Logger
}

// Service runs the assigned -> out_for_delivery -> delivered flow on top of the
// order state machine.
type Service struct {
	db       txRunner
	repo     *Repository
	users    personFinder
	orders   orderTransitioner
	payments collectorAssigner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users lookup required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &Service{
		db:       params.DB,
		repo:     params.Repo,
		users:    params.Users,
		orders:   params.Orders,
		payments: params.Payments,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Assign hands a confirmed or shipped order to an active delivery person and
// makes them the collector of its cash payment.
func (s *Service) Assign(ctx context.Context, input AssignInput) (*AssignmentDTO, error) {
	if input.OrderID == uuid.Nil || input.DeliveryPersonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and delivery person id are required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := s.users.FindActiveDeliveryPerson(ctx, input.DeliveryPersonID); err != nil {
		return nil, err
	}

	var assignment *models.DeliveryAssignment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.orders.Transition(ctx, tx, orders.TransitionInput{
			OrderID: input.OrderID,
			To:      enums.OrderStatusAssigned,
			Actor:   orders.Actor{UserID: input.AdminID, Role: enums.RoleAdmin},
			Notes:   input.Notes,
			Updates: map[string]any{"delivery_person_id": input.DeliveryPersonID},
		}); err != nil {
			return err
		}

		existing, err := repo.FindActiveByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active assignment")
		}
		assignment = &models.DeliveryAssignment{
			OrderID:          input.OrderID,
			DeliveryPersonID: input.DeliveryPersonID,
			AssignedBy:       input.AdminID,
			Status:           enums.AssignmentAssigned,
			Active:           true,
			AssignedAt:       s.now().UTC(),
		}
		if err := repo.Create(ctx, assignment); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active assignment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
		}
		return s.payments.AssignCollector(ctx, tx, input.OrderID, input.DeliveryPersonID)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"delivery_person_id": input.DeliveryPersonID.String(),
			"assigned_by":        input.AdminID.String(),
		})
		s.logg.Info(logCtx, "delivery.assigned")
	}
	return FromModel(assignment), nil
}

// MarkOutForDelivery starts the run. Only the assignee may do it.
func (s *Service) MarkOutForDelivery(ctx context.Context, input ProgressInput) (*AssignmentDTO, error) {
	return s.advance(ctx, input, enums.OrderStatusOutForDelivery, func(a *models.DeliveryAssignment, at time.Time) map[string]any {
		a.Status = enums.AssignmentOutForDelivery
		a.OutForDeliveryAt = &at
		return map[string]any{"status": a.Status, "out_for_delivery_at": at}
	})
}

// MarkDelivered closes the run and releases the assignment.
func (s *Service) MarkDelivered(ctx context.Context, input ProgressInput) (*AssignmentDTO, error) {
	return s.advance(ctx, input, enums.OrderStatusDelivered, func(a *models.DeliveryAssignment, at time.Time) map[string]any {
		a.Status = enums.AssignmentDelivered
		a.DeliveredAt = &at
		a.Active = false
		return map[string]any{"status": a.Status, "delivered_at": at, "active": false}
	})
}

func (s *Service) advance(ctx context.Context, input ProgressInput, to enums.OrderStatus, apply func(*models.DeliveryAssignment, time.Time) map[string]any) (*AssignmentDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.DeliveryPersonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var assignment *models.DeliveryAssignment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindActiveByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		if current.DeliveryPersonID != input.DeliveryPersonID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another delivery person")
		}
		if _, err := s.orders.Transition(ctx, tx, orders.TransitionInput{
			OrderID: input.OrderID,
			To:      to,
			Actor:   orders.Actor{UserID: input.DeliveryPersonID, Role: enums.RoleDeliveryPerson},
			Notes:   input.Notes,
		}); err != nil {
			return err
		}
		updates := apply(current, s.now().UTC())
		if err := repo.Update(ctx, current.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment")
		}
		assignment = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"delivery_person_id": input.DeliveryPersonID.String(),
			"status":             assignment.Status,
		})
		s.logg.Info(logCtx, "delivery.progressed")
	}
	return FromModel(assignment), nil
}

// ListAssignments returns the delivery person's runs.
func (s *Service) ListAssignments(ctx context.Context, deliveryPersonID uuid.UUID, activeOnly bool) ([]AssignmentDTO, error) {
	if deliveryPersonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByDeliveryPerson(ctx, deliveryPersonID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	out := make([]AssignmentDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}
