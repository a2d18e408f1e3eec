package catalog

import (
	"context"
	"fmt"
	"strings"

	dbpkg "github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockSeeder books the opening stock of a new variant through the ledger.
type stockSeeder interface {
	SeedStock(ctx context.Context, tx *gorm.DB, productID, variantID uuid.UUID, qty int, unitCost decimal.NullDecimal, performedBy uuid.UUID) error
}

// Service is the admin catalog surface.
type Service interface {
	CreateProduct(ctx context.Context, adminID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
}

type service struct {
	db     txRunner
	repo   *Repository
	seeder stockSeeder
	logg   *logger.Logger
}

func NewService(db txRunner, repo *Repository, seeder stockSeeder, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if seeder == nil {
		return nil, fmt.Errorf("stock seeder required")
	}
	return &service{db: db, repo: repo, seeder: seeder, logg: logg}, nil
}

func (s *service) CreateProduct(ctx context.Context, adminID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	product, err := input.toModel()
	if err != nil {
		return nil, err
	}

	var productID uuid.UUID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.CreateProduct(ctx, product)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		productID = created.ID
		for i, variant := range created.Variants {
			opening := input.Variants[i].InitialStock
			if opening == 0 {
				continue
			}
			if err := s.seeder.SeedStock(ctx, tx, created.ID, variant.ID, opening, variant.CostPrice, adminID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "product_id", productID.String()), "catalog.product_created")
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return FromModel(product), nil
}

// UpdateProduct edits descriptive fields and prices. Stock only changes through
// inventory movements and orders.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	for _, v := range input.Variants {
		if v.StockQuantity != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity cannot be edited; record an inventory movement instead")
		}
	}

	productUpdates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		productUpdates["name"] = name
	}
	if input.Brand != nil {
		productUpdates["brand"] = strings.TrimSpace(*input.Brand)
	}
	if input.CategoryID != nil {
		productUpdates["category_id"] = *input.CategoryID
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
		}
		productUpdates["status"] = *input.Status
	}
	if input.IsActive != nil {
		productUpdates["is_active"] = *input.IsActive
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if err := repo.UpdateProductFields(ctx, productID, productUpdates); err != nil {
			return err
		}
		for _, v := range input.Variants {
			updates, err := variantUpdates(product.Variants, v)
			if err != nil {
				return err
			}
			if err := repo.UpdateVariantFields(ctx, productID, v.ID, updates); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

func variantUpdates(existing []models.ProductVariant, in UpdateVariantInput) (map[string]any, error) {
	var current *models.ProductVariant
	for i := range existing {
		if existing[i].ID == in.ID {
			current = &existing[i]
			break
		}
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}

	regular := current.RegularPrice
	if in.RegularPrice.Valid {
		regular = in.RegularPrice.Decimal
	}
	sale := current.SalePrice
	if in.ClearSale {
		sale = decimal.NullDecimal{}
	} else if in.SalePrice.Valid {
		sale = in.SalePrice
	}
	if err := validatePrices(regular, sale); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"regular_price": regular.Round(2),
		"sale_price":    sale,
	}
	if in.CostPrice.Valid {
		updates["cost_price"] = in.CostPrice
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	return updates, nil
}
