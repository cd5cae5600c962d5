package cart

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/enums"
)

func item(id, vendor, location string, price int64, qty int) CartLineItem {
	return CartLineItem{
		ID:                 id,
		Name:               id,
		UnitPrice:          decimal.NewFromInt(price),
		Quantity:           qty,
		VendorID:           vendor,
		VendorName:         "Vendor " + vendor,
		VendorRole:         enums.VendorRoleVendor,
		VendorBaseLocation: location,
	}
}

func TestPartitionScenario(t *testing.T) {
	items := []CartLineItem{
		item("a1", "A", "Eziobodo", 1000, 1),
		item("b1", "B", "back-gate, behind hostel", 500, 1),
		item("a2", "A", "Eziobodo", 2000, 2),
	}
	groups := Partition(items, zones.Default())
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].VendorID != "A" || groups[1].VendorID != "B" {
		t.Fatalf("groups must follow first-seen order, got %s, %s", groups[0].VendorID, groups[1].VendorID)
	}
	if ids := groups[0].ItemIDs(); len(ids) != 2 || ids[0] != "a1" || ids[1] != "a2" {
		t.Fatalf("unexpected item order %v", ids)
	}
	if groups[1].Zone != zones.BackGate {
		t.Fatalf("expected back gate zone, got %q", groups[1].Zone)
	}
}

func TestPartitionUngroupedBucketAndConflicts(t *testing.T) {
	first := item("x", "", "", 100, 1)
	second := item("y", "", "Umuchima", 100, 1)
	conflicting := item("z", "A", "Eziobodo", 100, 1)
	conflicting2 := item("w", "A", "Umuchima", 100, 1)

	groups := Partition([]CartLineItem{first, conflicting, second, conflicting2}, nil)
	if len(groups) != 2 {
		t.Fatalf("expected ungrouped bucket plus vendor A, got %d", len(groups))
	}
	if groups[0].VendorID != UngroupedVendorID || len(groups[0].Items) != 2 {
		t.Fatalf("missing vendor ids must share one bucket, got %+v", groups[0])
	}
	if groups[1].RawLocation != "Eziobodo" || !groups[1].MetadataConflict {
		t.Fatalf("expected first-wins metadata with conflict flag, got %+v", groups[1])
	}
}

func TestPartitionIsCompleteAndHomogeneous(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("every item lands in exactly one matching group", prop.ForAll(
		func(vendorIdx []int) bool {
			items := make([]CartLineItem, len(vendorIdx))
			for i, v := range vendorIdx {
				vendor := ""
				if v > 0 {
					vendor = fmt.Sprintf("v%d", v)
				}
				items[i] = item(fmt.Sprintf("i%d", i), vendor, "", 100, 1)
			}

			groups := Partition(items, nil)
			seen := map[string]int{}
			for _, g := range groups {
				for _, it := range g.Items {
					key := it.VendorID
					if key == "" {
						key = UngroupedVendorID
					}
					if key != g.VendorID {
						return false
					}
					seen[it.ID]++
				}
			}
			if len(seen) != len(items) {
				return false
			}
			for _, n := range seen {
				if n != 1 {
					return false
				}
			}
			return len(AllItems(groups)) == len(items)
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
