package enums

// UserRole is the actor role carried in access tokens.
type UserRole string

const (
	RoleCustomer       UserRole = "customer"
	RoleAdmin          UserRole = "admin"
	RoleDeliveryPerson UserRole = "delivery_person"
	RoleSystem         UserRole = "system"
)

var validUserRoles = []UserRole{
	RoleCustomer,
	RoleAdmin,
	RoleDeliveryPerson,
	RoleSystem,
}

func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return isOneOf(r, validUserRoles)
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return parseOneOf(value, validUserRoles, "user role")
}
