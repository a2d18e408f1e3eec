package catalog

import (
	"strings"
	"time"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateVariantInput struct {
	Size         string              `json:"size" validate:"required"`
	ColorName    string              `json:"colorName" validate:"required"`
	ColorHex     *string             `json:"colorHex,omitempty" validate:"omitempty,hexcolor"`
	SKU          string              `json:"sku" validate:"required"`
	RegularPrice decimal.Decimal     `json:"regularPrice"`
	SalePrice    decimal.NullDecimal `json:"salePrice"`
	CostPrice    decimal.NullDecimal `json:"costPrice"`
	InitialStock int                 `json:"initialStock" validate:"gte=0"`
}

type CreateProductInput struct {
	Name       string               `json:"name" validate:"required"`
	Brand      string               `json:"brand" validate:"required"`
	CategoryID *uuid.UUID           `json:"categoryId,omitempty"`
	Status     enums.ProductStatus  `json:"status" validate:"omitempty,oneof=draft published archived"`
	Variants   []CreateVariantInput `json:"variants" validate:"required,min=1,dive"`
}

// UpdateVariantInput carries price and availability edits. StockQuantity exists only
// so a client sending it gets a clear rejection.
type UpdateVariantInput struct {
	ID            uuid.UUID           `json:"id" validate:"required"`
	RegularPrice  decimal.NullDecimal `json:"regularPrice"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	ClearSale     bool                `json:"clearSalePrice"`
	CostPrice     decimal.NullDecimal `json:"costPrice"`
	IsActive      *bool               `json:"isActive,omitempty"`
	StockQuantity *int                `json:"stockQuantity,omitempty"`
}

type UpdateProductInput struct {
	Name       *string              `json:"name,omitempty"`
	Brand      *string              `json:"brand,omitempty"`
	CategoryID *uuid.UUID           `json:"categoryId,omitempty"`
	Status     *enums.ProductStatus `json:"status,omitempty"`
	IsActive   *bool                `json:"isActive,omitempty"`
	Variants   []UpdateVariantInput `json:"variants,omitempty" validate:"omitempty,dive"`
}

type VariantDTO struct {
	ID            uuid.UUID           `json:"id"`
	Size          string              `json:"size"`
	ColorName     string              `json:"colorName"`
	ColorHex      *string             `json:"colorHex,omitempty"`
	SKU           string              `json:"sku"`
	StockQuantity int                 `json:"stockQuantity"`
	RegularPrice  decimal.Decimal     `json:"regularPrice"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	IsActive      bool                `json:"isActive"`
}

type ProductDTO struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	Brand      string              `json:"brand"`
	CategoryID *uuid.UUID          `json:"categoryId,omitempty"`
	Status     enums.ProductStatus `json:"status"`
	IsActive   bool                `json:"isActive"`
	Variants   []VariantDTO        `json:"variants"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	out := &ProductDTO{
		ID:         p.ID,
		Name:       p.Name,
		Brand:      p.Brand,
		CategoryID: p.CategoryID,
		Status:     p.Status,
		IsActive:   p.IsActive,
		Variants:   make([]VariantDTO, 0, len(p.Variants)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, VariantDTO{
			ID:            v.ID,
			Size:          v.Size,
			ColorName:     v.ColorName,
			ColorHex:      v.ColorHex,
			SKU:           v.SKU,
			StockQuantity: v.StockQuantity,
			RegularPrice:  v.RegularPrice,
			SalePrice:     v.SalePrice,
			IsActive:      v.IsActive,
		})
	}
	return out
}

func validatePrices(regular decimal.Decimal, sale decimal.NullDecimal) error {
	if !regular.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "regular price must be positive")
	}
	if sale.Valid {
		if !sale.Decimal.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
		}
		if sale.Decimal.GreaterThan(regular) {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale price must not exceed regular price")
		}
	}
	return nil
}

func (in CreateProductInput) toModel() (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	status := in.Status
	if status == "" {
		status = enums.ProductStatusDraft
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}
	if len(in.Variants) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one variant is required")
	}

	seen := map[string]struct{}{}
	product := &models.Product{
		Name:       name,
		Brand:      strings.TrimSpace(in.Brand),
		CategoryID: in.CategoryID,
		Status:     status,
		IsActive:   true,
	}
	for _, v := range in.Variants {
		sku := strings.ToUpper(strings.TrimSpace(v.SKU))
		if sku == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
		}
		if _, dup := seen[sku]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate sku "+sku)
		}
		seen[sku] = struct{}{}
		if err := validatePrices(v.RegularPrice, v.SalePrice); err != nil {
			return nil, err
		}
		if v.InitialStock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must not be negative")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:          strings.TrimSpace(v.Size),
			ColorName:     strings.TrimSpace(v.ColorName),
			ColorHex:      v.ColorHex,
			SKU:           sku,
			StockQuantity: 0,
			RegularPrice:  v.RegularPrice.Round(2),
			SalePrice:     v.SalePrice,
			CostPrice:     v.CostPrice,
			IsActive:      true,
		})
	}
	return product, nil
}
