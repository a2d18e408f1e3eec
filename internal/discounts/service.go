package discounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

// Service evaluates and books promo codes.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	return &Service{repo: repo, logg: logg, now: time.Now}, nil
}

// FindValidDiscount returns the discount when code is usable by userID for
// orderAmount and nil when any eligibility rule fails. The rules are checked in
// a fixed order and the first failure wins; the reason is only logged. tx may be
// nil outside a transaction.
func (s *Service) FindValidDiscount(ctx context.Context, tx *gorm.DB, code string, userID uuid.UUID, orderAmount decimal.Decimal) (*models.Discount, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, nil
	}
	repo := s.repo.WithTx(tx)
	d, err := repo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
	}
	if d == nil {
		s.rejected(ctx, normalized, "not_found")
		return nil, nil
	}
	if reason := ruleFailure(d, userID, s.now().UTC()); reason != "" {
		s.rejected(ctx, normalized, reason)
		return nil, nil
	}
	used, err := repo.HasUsage(ctx, d.ID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount usage")
	}
	if used {
		s.rejected(ctx, normalized, "already_used")
		return nil, nil
	}
	if orderAmount.LessThan(d.MinimumOrderAmount) {
		s.rejected(ctx, normalized, "below_minimum")
		return nil, nil
	}
	return d, nil
}

// IncrementUsage records that userID redeemed the discount and bumps used_count.
// A user that already has a usage row is a no-op. It runs in the caller's
// transaction so the usage commits with the order that consumed it.
func (s *Service) IncrementUsage(ctx context.Context, tx *gorm.DB, discountID, userID uuid.UUID, orderID *uuid.UUID) error {
	if discountID == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount id and user id are required")
	}
	repo := s.repo.WithTx(tx)
	used, err := repo.HasUsage(ctx, discountID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount usage")
	}
	if used {
		return nil
	}

	usage := &models.DiscountUsage{
		DiscountID: discountID,
		UserID:     userID,
		OrderID:    orderID,
		UsedAt:     s.now().UTC(),
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeInvalidDiscount, err, "discount already used")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert discount usage")
	}
	affected, err := repo.IncrementUsedCount(ctx, discountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment discount usage")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidDiscount, "discount usage limit reached")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"discount_id": discountID.String(),
			"user_id":     userID.String(),
		})
		s.logg.Info(logCtx, "discount.usage_incremented")
	}
	return nil
}

// CreateDiscount stores a new promo code.
func (s *Service) CreateDiscount(ctx context.Context, adminID uuid.UUID, input CreateDiscountInput) (*DiscountDTO, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	d, err := NewDiscount(input.params())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "discount code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"discount_id": d.ID.String(),
			"code":        d.Code,
			"admin_id":    adminID.String(),
		})
		s.logg.Info(logCtx, "discount.created")
	}
	return FromModel(d), nil
}

// Validate previews what code would take off orderAmount for userID.
func (s *Service) Validate(ctx context.Context, userID uuid.UUID, input ValidateInput) (*ValidationResult, error) {
	if input.OrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount cannot be negative")
	}
	d, err := s.FindValidDiscount(ctx, nil, input.Code, userID, input.OrderAmount)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrInvalidDiscount()
	}
	amount := CalculateDiscountAmount(d, input.OrderAmount)
	return &ValidationResult{
		Code:           d.Code,
		Type:           d.Type,
		Value:          d.Value,
		DiscountAmount: amount,
		FinalAmount:    input.OrderAmount.Sub(amount),
	}, nil
}

// ErrInvalidDiscount is the single error every failed eligibility rule maps to.
func ErrInvalidDiscount() error {
	return pkgerrors.New(pkgerrors.CodeInvalidDiscount, "Invalid or expired discount code")
}

func (s *Service) rejected(ctx context.Context, code, reason string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"code": code, "reason": reason})
	s.logg.Debug(logCtx, "discount.rejected")
}
