// Package cart turns loosely typed cart payloads into strictly typed line items
// and reshapes them into per-vendor groups with an independent item selection.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// CartLineItem is a coerced cart line. Prices are never negative and quantities are at least 1.
type CartLineItem struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	UnitPrice          decimal.Decimal  `json:"unitPrice"`
	Quantity           int              `json:"quantity"`
	VendorID           string           `json:"vendorId"`
	VendorName         string           `json:"vendorName"`
	VendorRole         enums.VendorRole `json:"vendorRole"`
	VendorBaseLocation string           `json:"vendorBaseLocation"`
}

// LineTotal is unitPrice × quantity at full precision.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
