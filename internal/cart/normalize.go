package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// Coercion fields.
const (
	FieldID         = "id"
	FieldPrice      = "price"
	FieldQuantity   = "quantity"
	FieldVendorRole = "vendorRole"
)

// Coercion records a malformed value that was replaced by a safe default.
type Coercion struct {
	ItemID  string `json:"itemId"`
	Field   string `json:"field"`
	Raw     string `json:"raw"`
	Applied string `json:"applied"`
	Reason  string `json:"reason"`
}

// Normalize coerces raw lines into CartLineItems. It never fails: unreadable prices
// become 0, unreadable or non-positive quantities become 1. Lines sharing an id
// collapse into one, keeping the position of the first and the content of the last.
func Normalize(raw []RawCartItem) ([]CartLineItem, []Coercion) {
	items := make([]CartLineItem, 0, len(raw))
	positions := make(map[string]int, len(raw))
	var coercions []Coercion

	for idx, in := range raw {
		id := strings.TrimSpace(in.ID.Text())
		if id == "" {
			id = fmt.Sprintf("line-%d", idx+1)
			coercions = append(coercions, Coercion{ItemID: id, Field: FieldID, Raw: in.ID.describe(), Applied: id, Reason: "missing id"})
		}

		price, ok := priceOf(in.Price)
		switch {
		case !ok:
			coercions = append(coercions, Coercion{ItemID: id, Field: FieldPrice, Raw: in.Price.describe(), Applied: "0", Reason: "unparseable price"})
		case price.IsNegative():
			coercions = append(coercions, Coercion{ItemID: id, Field: FieldPrice, Raw: in.Price.describe(), Applied: "0", Reason: "negative price"})
			price = decimal.Zero
		}

		qty, ok := ParseQuantity(in.Quantity.Text())
		if !ok {
			coercions = append(coercions, Coercion{ItemID: id, Field: FieldQuantity, Raw: in.Quantity.describe(), Applied: fmt.Sprint(qty), Reason: "invalid quantity"})
		}

		role := enums.VendorRoleVendor
		if raw := strings.TrimSpace(in.VendorRole); raw != "" {
			parsed, err := enums.ParseVendorRole(raw)
			if err != nil {
				coercions = append(coercions, Coercion{ItemID: id, Field: FieldVendorRole, Raw: in.VendorRole, Applied: role.String(), Reason: "unknown vendor role"})
			} else {
				role = parsed
			}
		}

		item := CartLineItem{
			ID:                 id,
			Name:               strings.TrimSpace(in.Name),
			UnitPrice:          price,
			Quantity:           qty,
			VendorID:           strings.TrimSpace(in.VendorID),
			VendorName:         strings.TrimSpace(in.VendorName),
			VendorRole:         role,
			VendorBaseLocation: strings.TrimSpace(in.VendorBaseLocation),
		}

		if pos, dup := positions[id]; dup {
			items[pos] = item
			continue
		}
		positions[id] = len(items)
		items = append(items, item)
	}
	return items, coercions
}

// priceOf reads JSON numbers as they are, exponents included. Only strings go
// through the currency stripper.
func priceOf(v RawValue) (decimal.Decimal, bool) {
	if v.Kind() == RawNumber {
		value, err := decimal.NewFromString(v.Text())
		if err == nil {
			return value, true
		}
	}
	return ParsePrice(v.Text())
}

// ParsePrice keeps digits, the decimal point and a leading minus sign, then parses
// what remains. The bool is false when nothing numeric survives; the value is then 0.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "-" || cleaned == "." || cleaned == "-." {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// ParseQuantity reads a whole positive quantity. Fractions are truncated; anything
// below 1 or unreadable yields 1 with ok=false.
func ParseQuantity(raw string) (int, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 1, false
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return 1, false
	}
	whole := value.Truncate(0)
	if whole.LessThan(decimal.NewFromInt(1)) || whole.GreaterThan(decimal.NewFromInt(maxQuantity)) {
		return 1, false
	}
	return int(whole.IntPart()), whole.Equal(value)
}

const maxQuantity = 10000
