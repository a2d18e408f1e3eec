package inventory

import (
	"time"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// applyDelta mutates the counters of inv for movement m. Derived fields are
// refreshed by Recompute.
func applyDelta(inv *models.Inventory, m *models.StockMovement, at time.Time) {
	qty := m.Quantity
	switch m.MovementType {
	case enums.MovementIn:
		receive(inv, qty, m.UnitCost, at)
	case enums.MovementAdjustment:
		if qty > 0 {
			receive(inv, qty, m.UnitCost, at)
		} else {
			inv.CurrentStock = floorZero(inv.CurrentStock + qty)
			inv.TotalOut += -qty
		}
	case enums.MovementOut:
		inv.CurrentStock = floorZero(inv.CurrentStock + qty)
		inv.TotalOut += -qty
		inv.LastSoldAt = &at
	case enums.MovementReservation:
		inv.ReservedStock += -qty
	case enums.MovementRestoration:
		inv.ReservedStock = floorZero(inv.ReservedStock - qty)
		// returned units are back on the shelf, matching the variant counter
		inv.CurrentStock += qty
	case enums.MovementTransfer:
		inv.CurrentStock = floorZero(inv.CurrentStock + qty)
	}
	inv.Recompute()
}

func receive(inv *models.Inventory, qty int, unitCost decimal.NullDecimal, at time.Time) {
	if unitCost.Valid {
		held := decimal.NewFromInt(int64(inv.CurrentStock))
		incoming := decimal.NewFromInt(int64(qty))
		total := held.Add(incoming)
		if total.IsPositive() {
			inv.AverageCost = inv.AverageCost.Mul(held).
				Add(unitCost.Decimal.Mul(incoming)).
				Div(total).
				Round(2)
		}
	}
	inv.CurrentStock += qty
	inv.TotalIn += qty
	inv.LastRestockedAt = &at
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// crossedLowStock reports whether the movement pushed availability to or under the threshold.
func crossedLowStock(wasLow, wasOut bool, inv *models.Inventory) bool {
	if wasLow || wasOut {
		return false
	}
	return inv.IsLowStock || inv.IsOutOfStock
}
