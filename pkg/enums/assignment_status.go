package enums

// AssignmentStatus tracks a delivery person's progress on an assigned order.
type AssignmentStatus string

const (
	AssignmentAssigned       AssignmentStatus = "assigned"
	AssignmentOutForDelivery AssignmentStatus = "out_for_delivery"
	AssignmentDelivered      AssignmentStatus = "delivered"
)

func (a AssignmentStatus) String() string {
	return string(a)
}
