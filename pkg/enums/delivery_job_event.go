package enums

import "fmt"

// DeliveryJobEventType names the event that drove a delivery job transition.
type DeliveryJobEventType string

const (
	DeliveryJobEventSubmitQuote DeliveryJobEventType = "submit_quote"
	DeliveryJobEventAccept      DeliveryJobEventType = "accept"
	DeliveryJobEventExpire      DeliveryJobEventType = "expire"
	DeliveryJobEventWithdraw    DeliveryJobEventType = "withdraw"
	DeliveryJobEventCancel      DeliveryJobEventType = "cancel"
	DeliveryJobEventAssign      DeliveryJobEventType = "assign"
	DeliveryJobEventDepart      DeliveryJobEventType = "depart"
	DeliveryJobEventDeliver     DeliveryJobEventType = "deliver"
)

var validDeliveryJobEventTypes = []DeliveryJobEventType{
	DeliveryJobEventSubmitQuote,
	DeliveryJobEventAccept,
	DeliveryJobEventExpire,
	DeliveryJobEventWithdraw,
	DeliveryJobEventCancel,
	DeliveryJobEventAssign,
	DeliveryJobEventDepart,
	DeliveryJobEventDeliver,
}

// DeliveryJobEventTypes lists every event in table order.
func DeliveryJobEventTypes() []DeliveryJobEventType {
	out := make([]DeliveryJobEventType, len(validDeliveryJobEventTypes))
	copy(out, validDeliveryJobEventTypes)
	return out
}

// String implements fmt.Stringer.
func (e DeliveryJobEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known DeliveryJobEventType.
func (e DeliveryJobEventType) IsValid() bool {
	for _, candidate := range validDeliveryJobEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseDeliveryJobEventType converts raw input into a DeliveryJobEventType.
func ParseDeliveryJobEventType(value string) (DeliveryJobEventType, error) {
	for _, candidate := range validDeliveryJobEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery job event %q", value)
}
