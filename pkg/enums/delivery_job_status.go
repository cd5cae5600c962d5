package enums

import "fmt"

// DeliveryJobStatus tracks the lifecycle of a rider-brokered delivery.
type DeliveryJobStatus string

const (
	DeliveryJobStatusPendingQuote DeliveryJobStatus = "pending_quote"
	DeliveryJobStatusQuoted       DeliveryJobStatus = "quoted"
	DeliveryJobStatusAccepted     DeliveryJobStatus = "accepted"
	DeliveryJobStatusAssigned     DeliveryJobStatus = "assigned"
	DeliveryJobStatusInTransit    DeliveryJobStatus = "in_transit"
	DeliveryJobStatusDelivered    DeliveryJobStatus = "delivered"
	DeliveryJobStatusCancelled    DeliveryJobStatus = "cancelled"
	DeliveryJobStatusExpired      DeliveryJobStatus = "expired"
)

var validDeliveryJobStatuses = []DeliveryJobStatus{
	DeliveryJobStatusPendingQuote,
	DeliveryJobStatusQuoted,
	DeliveryJobStatusAccepted,
	DeliveryJobStatusAssigned,
	DeliveryJobStatusInTransit,
	DeliveryJobStatusDelivered,
	DeliveryJobStatusCancelled,
	DeliveryJobStatusExpired,
}

// DeliveryJobStatuses lists every known status in lifecycle order.
func DeliveryJobStatuses() []DeliveryJobStatus {
	out := make([]DeliveryJobStatus, len(validDeliveryJobStatuses))
	copy(out, validDeliveryJobStatuses)
	return out
}

// String implements fmt.Stringer.
func (s DeliveryJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryJobStatus.
func (s DeliveryJobStatus) IsValid() bool {
	for _, candidate := range validDeliveryJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (s DeliveryJobStatus) IsTerminal() bool {
	switch s {
	case DeliveryJobStatusDelivered, DeliveryJobStatusCancelled, DeliveryJobStatusExpired:
		return true
	}
	return false
}

// ParseDeliveryJobStatus converts raw input into a DeliveryJobStatus.
func ParseDeliveryJobStatus(value string) (DeliveryJobStatus, error) {
	for _, candidate := range validDeliveryJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery job status %q", value)
}
