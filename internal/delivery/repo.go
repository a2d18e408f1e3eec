package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
)

// Repository persists delivery assignments.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, assignment *models.DeliveryAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// FindActiveByOrder returns nil when the order has no running assignment.
func (r *Repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND active = ?", orderID, true).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.DeliveryAssignment{}).Where("id = ?", id).Updates(updates).Error
}

// ListByDeliveryPerson returns a person's assignments, newest first.
func (r *Repository) ListByDeliveryPerson(ctx context.Context, deliveryPersonID uuid.UUID, activeOnly bool) ([]models.DeliveryAssignment, error) {
	query := r.db.WithContext(ctx).Where("delivery_person_id = ?", deliveryPersonID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.DeliveryAssignment
	if err := query.Order("assigned_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
