package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

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

func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID returns gorm.ErrRecordNotFound when missing. With lock set the row
// is held until the surrounding postgres transaction ends.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Payment, error) {
	query := r.db.WithContext(ctx)
	if lock && dbpkg.IsPostgres(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p models.Payment
	if err := query.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByOrderID returns nil without error when the order has no payment record.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) InsertAttempt(ctx context.Context, attempt *models.PaymentCollectionAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *Repository) ListAttempts(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentCollectionAttempt, error) {
	var out []models.PaymentCollectionAttempt
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// OrderStatus reads the status of the order a payment belongs to.
func (r *Repository) OrderStatus(ctx context.Context, orderID uuid.UUID) (enums.OrderStatus, error) {
	var status string
	row := r.db.WithContext(ctx).Raw("SELECT status FROM orders WHERE id = ?", orderID).Row()
	if err := row.Scan(&status); err != nil {
		return "", err
	}
	return enums.OrderStatus(status), nil
}

// SyncOrderPaymentStatus mirrors the payment status onto its order.
func (r *Repository) SyncOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", status).Error
}
