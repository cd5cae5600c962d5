package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/cart"
	"github.com/chopmart/chopmart-backend/internal/zones"
)

// Leg is the priced delivery for one selected vendor group.
type Leg struct {
	VendorID    string          `json:"vendorId"`
	Origin      zones.Zone      `json:"origin"`
	Destination zones.Zone      `json:"destination"`
	Fee         decimal.Decimal `json:"fee"`
	// Priced is false when the table had no entry and the leg defaulted to 0.
	Priced bool `json:"priced"`
}

// Breakdown is the aggregated delivery charge and its legs.
type Breakdown struct {
	Total decimal.Decimal `json:"total"`
	Legs  []Leg           `json:"legs"`
}

// Unpriced lists legs that fell back to a zero fee.
func (b Breakdown) Unpriced() []Leg {
	var out []Leg
	for _, leg := range b.Legs {
		if !leg.Priced {
			out = append(out, leg)
		}
	}
	return out
}

// FeeForVendor normalizes the raw origin and looks up the pair. A gap in the
// table prices the leg at 0.
func FeeForVendor(originRaw string, dest zones.Zone, table FeeTable, norm *zones.Normalizer) decimal.Decimal {
	fee, _ := legFor(originRaw, dest, table, norm)
	return fee
}

func legFor(originRaw string, dest zones.Zone, table FeeTable, norm *zones.Normalizer) (decimal.Decimal, bool) {
	if norm == nil {
		norm = zones.Default()
	}
	fee, ok := table.Lookup(norm.Normalize(originRaw), dest)
	if !ok {
		return decimal.Zero, false
	}
	return fee, true
}

// Aggregate sums one independent leg per group with at least one selected item.
// Unselected groups contribute nothing; there is no cap or discount.
func Aggregate(groups []cart.VendorGroup, sel cart.SelectionSet, dest zones.Zone, table FeeTable, norm *zones.Normalizer) Breakdown {
	if norm == nil {
		norm = zones.Default()
	}
	out := Breakdown{Total: decimal.Zero, Legs: []Leg{}}
	for _, g := range groups {
		if !sel.HasSelection(g) {
			continue
		}
		fee, priced := legFor(g.RawLocation, dest, table, norm)
		out.Legs = append(out.Legs, Leg{
			VendorID:    g.VendorID,
			Origin:      norm.Normalize(g.RawLocation),
			Destination: dest,
			Fee:         fee,
			Priced:      priced,
		})
		out.Total = out.Total.Add(fee)
	}
	return out
}
