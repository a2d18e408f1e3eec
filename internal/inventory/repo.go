package inventory

import (
	"context"
	"errors"

	dbpkg "github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists ledger rows and inventory aggregates. Movements are insert only.
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

func (r *Repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindInventory returns nil without error when no aggregate exists yet. Inside a
// postgres transaction the row is locked until commit.
func (r *Repository) FindInventory(ctx context.Context, productID, variantID uuid.UUID) (*models.Inventory, error) {
	query := r.db.WithContext(ctx).Where("product_id = ? AND variant_id = ?", productID, variantID)
	if dbpkg.IsPostgres(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Inventory
	if err := query.First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

// SaveInventory writes every column; BeforeSave refreshes the derived ones.
func (r *Repository) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

type listMovementsParams struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

// ListMovements pages newest first.
func (r *Repository) ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovement{}).
		Where("product_id = ? AND variant_id = ?", params.ProductID, params.VariantID)

	var movements []models.StockMovement
	if err := pagination.Seek(query, params.Cursor, params.Limit).Find(&movements).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(movements, params.Limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

// InventoryStock is the aggregate projection used by drift reconciliation.
type InventoryStock struct {
	VariantID    uuid.UUID `gorm:"column:variant_id"`
	CurrentStock int       `gorm:"column:current_stock"`
}

func (r *Repository) ListInventoryStocks(ctx context.Context) ([]InventoryStock, error) {
	var rows []InventoryStock
	err := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Select("variant_id, current_stock").
		Scan(&rows).Error
	return rows, err
}
