package cart

import (
	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// UngroupedVendorID collects every item that arrived without a vendor id.
const UngroupedVendorID = "__ungrouped__"

// VendorGroup is the slice of a cart one vendor fulfils; it is one delivery leg.
type VendorGroup struct {
	VendorID    string           `json:"vendorId"`
	VendorName  string           `json:"vendorName"`
	VendorRole  enums.VendorRole `json:"vendorRole"`
	RawLocation string           `json:"rawLocation"`
	Zone        zones.Zone       `json:"zone"`
	Items       []CartLineItem   `json:"items"`
	// MetadataConflict is set when a later item disagreed with the first item's
	// vendor name, role or location. The first item's values are kept.
	MetadataConflict bool `json:"metadataConflict,omitempty"`
}

// ItemIDs lists the ids of the group's items in cart order.
func (g VendorGroup) ItemIDs() []string {
	ids := make([]string, len(g.Items))
	for i, item := range g.Items {
		ids[i] = item.ID
	}
	return ids
}

// Partition groups items by vendor id in first-seen order. Every input item lands
// in exactly one group and item order inside a group follows the cart.
func Partition(items []CartLineItem, norm *zones.Normalizer) []VendorGroup {
	if norm == nil {
		norm = zones.Default()
	}
	groups := make([]VendorGroup, 0)
	index := make(map[string]int)

	for _, item := range items {
		key := item.VendorID
		if key == "" {
			key = UngroupedVendorID
		}
		pos, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, VendorGroup{
				VendorID:    key,
				VendorName:  item.VendorName,
				VendorRole:  item.VendorRole,
				RawLocation: item.VendorBaseLocation,
				Zone:        norm.Normalize(item.VendorBaseLocation),
				Items:       []CartLineItem{item},
			})
			continue
		}
		group := &groups[pos]
		if item.VendorName != group.VendorName ||
			item.VendorRole != group.VendorRole ||
			item.VendorBaseLocation != group.RawLocation {
			group.MetadataConflict = true
		}
		group.Items = append(group.Items, item)
	}
	return groups
}

// AllItems flattens groups back into a single list, group by group.
func AllItems(groups []VendorGroup) []CartLineItem {
	var out []CartLineItem
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}
