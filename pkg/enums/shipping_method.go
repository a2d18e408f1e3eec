package enums

// ShippingMethod selects the delivery cost and lead time policy.
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

var validShippingMethods = []ShippingMethod{
	ShippingStandard,
	ShippingExpress,
}

func (s ShippingMethod) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingMethod.
func (s ShippingMethod) IsValid() bool {
	return isOneOf(s, validShippingMethods)
}

// ParseShippingMethod converts raw input into a ShippingMethod. Empty input selects standard.
func ParseShippingMethod(value string) (ShippingMethod, error) {
	if value == "" {
		return ShippingStandard, nil
	}
	return parseOneOf(value, validShippingMethods, "shipping method")
}
