package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VariantKey identifies a variant the way a cart line references it.
type VariantKey struct {
	Size      string
	ColorName string
	SKU       string
}

// Repository is the catalog store. Variant stock is only ever written through the
// conditional counter updates below.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateProduct inserts the product, then its variants.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	variants := product.Variants
	product.Variants = nil
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error; err != nil {
		return nil, err
	}
	for i := range variants {
		variants[i].ProductID = product.ID
	}
	if len(variants) > 0 {
		if err := r.db.WithContext(ctx).Create(&variants).Error; err != nil {
			return nil, err
		}
	}
	product.Variants = variants
	return product, nil
}

// FindProductByID loads the product and its variants.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, sku ASC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// FindVariant matches a variant of productID by size, color name and SKU.
func (r *Repository) FindVariant(ctx context.Context, productID uuid.UUID, key VariantKey) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ? AND color_name = ? AND sku = ?", productID, key.Size, key.ColorName, key.SKU).
		First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return &variant, nil
}

// FindVariantByID loads a variant by id.
func (r *Repository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return &variant, nil
}

// CurrentStock re-reads the stock counter of a variant.
func (r *Repository) CurrentStock(ctx context.Context, variantID uuid.UUID) (int, error) {
	var stock int
	row := r.db.WithContext(ctx).
		Raw("SELECT stock_quantity FROM product_variants WHERE id = ?", variantID).
		Row()
	if err := row.Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read variant stock")
	}
	return stock, nil
}

// DecrementVariantStock subtracts qty only when enough stock remains. Zero rows
// affected means another writer got there first.
func (r *Repository) DecrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE product_variants SET stock_quantity = stock_quantity - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stock_quantity >= ?`,
		qty, variantID, qty,
	)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement variant stock")
	}
	return res.RowsAffected, nil
}

// IncrementVariantStock adds qty back to the counter.
func (r *Repository) IncrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE product_variants SET stock_quantity = stock_quantity + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		qty, variantID,
	)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment variant stock")
	}
	return res.RowsAffected, nil
}

// UpdateProductFields applies non-stock product updates.
func (r *Repository) UpdateProductFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update product")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// UpdateVariantFields applies non-stock variant updates (prices, active flag).
func (r *Repository) UpdateVariantFields(ctx context.Context, productID, variantID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", variantID, productID).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update variant")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	return nil
}

// ListVariantStocks returns every variant counter, for reconciliation scans.
func (r *Repository) ListVariantStocks(ctx context.Context) ([]VariantStock, error) {
	var rows []VariantStock
	err := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Select("id AS variant_id, product_id, sku, stock_quantity").
		Order("sku ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variant stock")
	}
	return rows, nil
}

// VariantStock is the counter projection used by reconciliation.
type VariantStock struct {
	VariantID     uuid.UUID `gorm:"column:variant_id"`
	ProductID     uuid.UUID `gorm:"column:product_id"`
	SKU           string    `gorm:"column:sku"`
	StockQuantity int       `gorm:"column:stock_quantity"`
}
