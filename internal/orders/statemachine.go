package orders

import (
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// transitions lists, per source status, the reachable statuses and the roles
// allowed to trigger each move. The system role acts with admin rights.
var transitions = map[enums.OrderStatus]map[enums.OrderStatus][]enums.UserRole{
	enums.OrderStatusPending: {
		enums.OrderStatusConfirmed: {enums.RoleAdmin},
		enums.OrderStatusShipped:   {enums.RoleAdmin},
		enums.OrderStatusCancelled: {enums.RoleCustomer, enums.RoleAdmin},
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusShipped:   {enums.RoleAdmin},
		enums.OrderStatusAssigned:  {enums.RoleAdmin},
		enums.OrderStatusCancelled: {enums.RoleCustomer, enums.RoleAdmin},
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusAssigned: {enums.RoleAdmin},
	},
	enums.OrderStatusAssigned: {
		enums.OrderStatusOutForDelivery: {enums.RoleDeliveryPerson},
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered: {enums.RoleDeliveryPerson},
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted: {enums.RoleAdmin},
	},
}

// CanTransition reports whether the workflow has an edge from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// CanTransitionAs reports whether role may move an order from -> to.
func CanTransitionAs(from, to enums.OrderStatus, role enums.UserRole) bool {
	roles, ok := transitions[from][to]
	if !ok {
		return false
	}
	if role == enums.RoleSystem {
		role = enums.RoleAdmin
	}
	for _, allowed := range roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status still holds stock that a
// cancellation may return.
func Cancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusConfirmed
}

// NextStatuses lists the statuses reachable from status in a stable order.
func NextStatuses(status enums.OrderStatus) []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, 3)
	for _, candidate := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusShipped,
		enums.OrderStatusAssigned,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	} {
		if CanTransition(status, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}
