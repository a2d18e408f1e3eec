package discounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
)

// Repository persists discounts and their per-user usage rows.
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

// FindByCode returns nil without error when no discount carries code. Codes are
// stored uppercased so the caller passes the normalized form.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var d models.Discount
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) Create(ctx context.Context, d *models.Discount) error {
	return r.db.WithContext(ctx).Omit("Usages").Create(d).Error
}

func (r *Repository) HasUsage(ctx context.Context, discountID, userID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.DiscountUsage{}).
		Where("discount_id = ? AND user_id = ?", discountID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) InsertUsage(ctx context.Context, usage *models.DiscountUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// IncrementUsedCount bumps used_count only while the usage limit allows it and
// reports the rows matched.
func (r *Repository) IncrementUsedCount(ctx context.Context, discountID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE discounts
		 SET used_count = used_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND (usage_limit IS NULL OR used_count < usage_limit)`,
		discountID,
	)
	return res.RowsAffected, res.Error
}

// RepairUsedCounts aligns used_count with the number of usage rows wherever they
// differ and reports how many discounts changed.
func (r *Repository) RepairUsedCounts(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE discounts
		 SET used_count = (SELECT COUNT(*) FROM discount_usages u WHERE u.discount_id = discounts.id),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE used_count <> (SELECT COUNT(*) FROM discount_usages u WHERE u.discount_id = discounts.id)`,
	)
	return res.RowsAffected, res.Error
}
