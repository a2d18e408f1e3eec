package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopflow-backend/internal/catalog"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the inventory service.
type ServiceParams struct {
	DB                txRunner
	Repo              *Repository
	Catalog           *catalog.Repository
	Outbox            outboxPublisher
	Logger            *logger.Logger
	Metrics           *metrics.Workflow
	LowStockThreshold int
}

// Service owns the stock ledger and the inventory aggregate.
type Service struct {
	db                txRunner
	repo              *Repository
	catalog           *catalog.Repository
	outbox            outboxPublisher
	logg              *logger.Logger
	metrics           *metrics.Workflow
	lowStockThreshold int
	now               func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	threshold := params.LowStockThreshold
	if threshold < 0 {
		threshold = 0
	}
	return &Service{
		db:                params.DB,
		repo:              params.Repo,
		catalog:           params.Catalog,
		outbox:            params.Outbox,
		logg:              params.Logger,
		metrics:           params.Metrics,
		lowStockThreshold: threshold,
		now:               time.Now,
	}, nil
}

// RecordMovement appends a ledger entry in tx.
func (s *Service) RecordMovement(ctx context.Context, tx *gorm.DB, params MovementParams) (*models.StockMovement, error) {
	movement, err := NewStockMovement(params)
	if err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).InsertMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"movement_id":   movement.ID.String(),
			"variant_id":    movement.VariantID.String(),
			"movement_type": movement.MovementType,
			"quantity":      movement.Quantity,
			"new_stock":     movement.NewStock,
		})
		s.logg.Info(logCtx, "stock.movement_recorded")
	}
	return movement, nil
}

// ApplyMovementToInventory folds movement into the (product, variant) aggregate,
// creating it on first use. A stock_low event is queued when availability first
// drops to the threshold.
func (s *Service) ApplyMovementToInventory(ctx context.Context, tx *gorm.DB, movement *models.StockMovement) (*models.Inventory, error) {
	if movement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement required")
	}
	repo := s.repo.WithTx(tx)
	inv, err := repo.FindInventory(ctx, movement.ProductID, movement.VariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	created := false
	if inv == nil {
		created = true
		inv = &models.Inventory{
			ProductID:         movement.ProductID,
			VariantID:         movement.VariantID,
			CurrentStock:      movement.PreviousStock,
			LowStockThreshold: s.lowStockThreshold,
			AverageCost:       decimal.Zero,
			TotalValue:        decimal.Zero,
		}
		inv.Recompute()
	}

	wasLow, wasOut := inv.IsLowStock, inv.IsOutOfStock
	if created {
		// a brand new row has no prior availability to cross from
		wasLow, wasOut = false, false
	}
	applyDelta(inv, movement, s.now().UTC())

	if created {
		err = repo.CreateInventory(ctx, inv)
	} else {
		err = repo.SaveInventory(ctx, inv)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory")
	}

	if crossedLowStock(wasLow, wasOut, inv) {
		event := outbox.DomainEvent{
			EventType:     enums.EventStockLow,
			AggregateType: enums.AggregateInventory,
			AggregateID:   inv.ID,
			Actor:         &outbox.ActorRef{UserID: movement.PerformedBy},
			Data: payloads.StockLowEvent{
				ProductID:      inv.ProductID,
				VariantID:      inv.VariantID,
				AvailableStock: inv.AvailableStock,
				Threshold:      inv.LowStockThreshold,
				OutOfStock:     inv.IsOutOfStock,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock low event")
		}
	}
	return inv, nil
}

// RecordAndApply is the ledger append followed by the aggregate update, both in tx.
func (s *Service) RecordAndApply(ctx context.Context, tx *gorm.DB, params MovementParams) (*models.StockMovement, *models.Inventory, error) {
	movement, err := s.RecordMovement(ctx, tx, params)
	if err != nil {
		return nil, nil, err
	}
	inv, err := s.ApplyMovementToInventory(ctx, tx, movement)
	if err != nil {
		return nil, nil, err
	}
	return movement, inv, nil
}

// AdjustStock is the admin stock write: counter update, ledger entry and aggregate
// update commit together.
func (s *Service) AdjustStock(ctx context.Context, input AdjustStockInput) (*AdjustStockResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var result AdjustStockResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		movement, inv, err := s.moveVariantStock(ctx, tx, variantMove{
			productID:     input.ProductID,
			variantID:     input.VariantID,
			movementType:  input.Type,
			quantity:      input.Quantity,
			reason:        input.Reason,
			referenceType: enums.MovementReferenceManual,
			performedBy:   input.PerformedBy,
			unitCost:      input.UnitCost,
			notes:         input.Notes,
		})
		if err != nil {
			return err
		}
		result = AdjustStockResult{Movement: FromMovement(movement), Inventory: FromInventory(inv)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.StockMovement(string(input.Type))
	return &result, nil
}

// Transfer moves units from one variant to another as a pair of transfer movements.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	transferID := uuid.New()

	var result TransferResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		outMove, outInv, err := s.moveVariantStock(ctx, tx, variantMove{
			productID:     input.FromProductID,
			variantID:     input.FromVariantID,
			movementType:  enums.MovementTransfer,
			quantity:      -input.Quantity,
			reason:        input.Reason,
			referenceType: enums.MovementReferenceTransfer,
			referenceID:   &transferID,
			performedBy:   input.PerformedBy,
			notes:         input.Notes,
		})
		if err != nil {
			return err
		}
		inMove, inInv, err := s.moveVariantStock(ctx, tx, variantMove{
			productID:     input.ToProductID,
			variantID:     input.ToVariantID,
			movementType:  enums.MovementTransfer,
			quantity:      input.Quantity,
			reason:        input.Reason,
			referenceType: enums.MovementReferenceTransfer,
			referenceID:   &transferID,
			performedBy:   input.PerformedBy,
			notes:         input.Notes,
		})
		if err != nil {
			return err
		}
		result = TransferResult{
			TransferID: transferID,
			Source:     AdjustStockResult{Movement: FromMovement(outMove), Inventory: FromInventory(outInv)},
			Target:     AdjustStockResult{Movement: FromMovement(inMove), Inventory: FromInventory(inInv)},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.StockMovement(string(enums.MovementTransfer))
	s.metrics.StockMovement(string(enums.MovementTransfer))
	return &result, nil
}

type variantMove struct {
	productID     uuid.UUID
	variantID     uuid.UUID
	movementType  enums.MovementType
	quantity      int
	reason        string
	referenceType enums.MovementReferenceType
	referenceID   *uuid.UUID
	performedBy   uuid.UUID
	unitCost      decimal.NullDecimal
	notes         *string
}

func (s *Service) moveVariantStock(ctx context.Context, tx *gorm.DB, move variantMove) (*models.StockMovement, *models.Inventory, error) {
	if !move.movementType.AcceptsQuantity(move.quantity) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "movement quantity sign does not match its type")
	}
	catalogRepo := s.catalog.WithTx(tx)
	variant, err := catalogRepo.FindVariantByID(ctx, move.variantID)
	if err != nil {
		return nil, nil, err
	}
	if variant.ProductID != move.productID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}

	previous := variant.StockQuantity
	if move.quantity < 0 {
		units := -move.quantity
		if previous < units {
			return nil, nil, insufficientStock(variant.SKU, previous, units)
		}
		affected, err := catalogRepo.DecrementVariantStock(ctx, variant.ID, units)
		if err != nil {
			return nil, nil, err
		}
		if affected == 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeStockUpdateFailed, "stock changed concurrently, please retry").
				WithDetails(map[string]any{"sku": variant.SKU})
		}
	} else {
		if _, err := catalogRepo.IncrementVariantStock(ctx, variant.ID, move.quantity); err != nil {
			return nil, nil, err
		}
	}

	return s.RecordAndApply(ctx, tx, MovementParams{
		ProductID:     move.productID,
		VariantID:     move.variantID,
		Type:          move.movementType,
		Quantity:      move.quantity,
		PreviousStock: previous,
		NewStock:      previous + move.quantity,
		Reason:        move.reason,
		ReferenceType: move.referenceType,
		ReferenceID:   move.referenceID,
		PerformedBy:   move.performedBy,
		UnitCost:      move.unitCost,
		Notes:         move.notes,
	})
}

// SeedStock books the opening stock of a freshly created variant as an "in" movement.
func (s *Service) SeedStock(ctx context.Context, tx *gorm.DB, productID, variantID uuid.UUID, qty int, unitCost decimal.NullDecimal, performedBy uuid.UUID) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "opening stock must be positive")
	}
	_, _, err := s.moveVariantStock(ctx, tx, variantMove{
		productID:     productID,
		variantID:     variantID,
		movementType:  enums.MovementIn,
		quantity:      qty,
		reason:        "opening stock",
		referenceType: enums.MovementReferenceManual,
		performedBy:   performedBy,
		unitCost:      unitCost,
	})
	return err
}

// GetInventory returns the aggregate for a variant.
func (s *Service) GetInventory(ctx context.Context, productID, variantID uuid.UUID) (*InventoryDTO, error) {
	if productID == uuid.Nil || variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and variant ids are required")
	}
	inv, err := s.repo.FindInventory(ctx, productID, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	if inv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
	}
	return FromInventory(inv), nil
}

// ListMovements pages the ledger of a variant, newest first.
func (s *Service) ListMovements(ctx context.Context, input ListMovementsInput) (*MovementList, error) {
	if input.ProductID == uuid.Nil || input.VariantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and variant ids are required")
	}
	query := listMovementsParams{
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		Limit:     input.Limit,
	}
	if input.Cursor != "" {
		cursor, err := pagination.Decode(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListMovements(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}

	out := &MovementList{Items: make([]MovementDTO, 0, len(rows))}
	for i := range rows {
		out.Items = append(out.Items, *FromMovement(&rows[i]))
	}
	if next != nil {
		out.Cursor = next.Encode()
	}
	return out, nil
}

func insufficientStock(sku string, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("Insufficient stock for %s", sku)).
		WithDetails(map[string]any{
			"sku":       sku,
			"available": available,
			"requested": requested,
		})
}
