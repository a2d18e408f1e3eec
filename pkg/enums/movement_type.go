package enums

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementIn          MovementType = "in"
	MovementOut         MovementType = "out"
	MovementAdjustment  MovementType = "adjustment"
	MovementTransfer    MovementType = "transfer"
	MovementReservation MovementType = "reservation"
	MovementRestoration MovementType = "restoration"
)

var validMovementTypes = []MovementType{
	MovementIn,
	MovementOut,
	MovementAdjustment,
	MovementTransfer,
	MovementReservation,
	MovementRestoration,
}

func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	return isOneOf(m, validMovementTypes)
}

// AcceptsQuantity reports whether the signed quantity matches the movement semantics.
// out and reservation take units away, in and restoration bring them back,
// adjustment and transfer may go either way. Zero is never accepted.
func (m MovementType) AcceptsQuantity(qty int) bool {
	if qty == 0 {
		return false
	}
	switch m {
	case MovementOut, MovementReservation:
		return qty < 0
	case MovementIn, MovementRestoration:
		return qty > 0
	case MovementAdjustment, MovementTransfer:
		return true
	default:
		return false
	}
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	return parseOneOf(value, validMovementTypes, "movement type")
}

// MovementReferenceType links a movement to the thing that caused it.
type MovementReferenceType string

const (
	MovementReferenceOrder    MovementReferenceType = "order"
	MovementReferenceManual   MovementReferenceType = "manual"
	MovementReferenceTransfer MovementReferenceType = "transfer"
	MovementReferenceReturn   MovementReferenceType = "return"
)

var validMovementReferenceTypes = []MovementReferenceType{
	MovementReferenceOrder,
	MovementReferenceManual,
	MovementReferenceTransfer,
	MovementReferenceReturn,
}

// IsValid reports whether the value is a known MovementReferenceType.
func (r MovementReferenceType) IsValid() bool {
	return isOneOf(r, validMovementReferenceTypes)
}
