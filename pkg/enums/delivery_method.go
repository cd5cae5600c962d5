package enums

import "fmt"

// DeliveryMethod selects how the customer receives a checkout.
type DeliveryMethod string

const (
	// DeliveryMethodPickup means the customer collects from the vendor; no fee applies.
	DeliveryMethodPickup DeliveryMethod = "pickup"
	// DeliveryMethodZoneRate charges the aggregated zone table fee.
	DeliveryMethodZoneRate DeliveryMethod = "zone_rate"
	// DeliveryMethodRiderQuote charges the amount a rider quoted on a delivery job.
	DeliveryMethodRiderQuote DeliveryMethod = "rider_quote"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodPickup,
	DeliveryMethodZoneRate,
	DeliveryMethodRiderQuote,
}

func (m DeliveryMethod) String() string {
	return string(m)
}

func (m DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// RequiresAcceptance reports whether the customer must explicitly accept the fee.
func (m DeliveryMethod) RequiresAcceptance() bool {
	return m == DeliveryMethodZoneRate || m == DeliveryMethodRiderQuote
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
