package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/cart"
	"github.com/chopmart/chopmart-backend/pkg/enums"
)

// AdminFeeMode chooses how mixed-tier carts are charged.
type AdminFeeMode string

const (
	// AdminFeeCartWide applies one rate to the whole subtotal. The top vendor rate
	// is used only when every selected group belongs to a top vendor.
	AdminFeeCartWide AdminFeeMode = "cart_wide"
	// AdminFeePerVendor charges each selected group at its own tier's rate.
	AdminFeePerVendor AdminFeeMode = "per_vendor"
)

// ParseAdminFeeMode converts configuration input into an AdminFeeMode.
func ParseAdminFeeMode(value string) (AdminFeeMode, error) {
	switch AdminFeeMode(value) {
	case AdminFeeCartWide, AdminFeePerVendor:
		return AdminFeeMode(value), nil
	case "":
		return AdminFeeCartWide, nil
	}
	return "", fmt.Errorf("invalid admin fee mode %q", value)
}

type AdminFeePolicy struct {
	StandardPercent  decimal.Decimal
	TopVendorPercent decimal.Decimal
	Mode             AdminFeeMode
}

func DefaultAdminFeePolicy() AdminFeePolicy {
	return AdminFeePolicy{
		StandardPercent:  decimal.NewFromInt(7),
		TopVendorPercent: decimal.NewFromInt(5),
		Mode:             AdminFeeCartWide,
	}
}

// RateFor returns the tier rate for a vendor role.
func (p AdminFeePolicy) RateFor(role enums.VendorRole) decimal.Decimal {
	if role == enums.VendorRoleTopVendor {
		return p.TopVendorPercent
	}
	return p.StandardPercent
}

// CartWidePercent is the single rate charged for the selection.
func (p AdminFeePolicy) CartWidePercent(groups []cart.VendorGroup, sel cart.SelectionSet) decimal.Decimal {
	selected := 0
	for _, g := range groups {
		if !sel.HasSelection(g) {
			continue
		}
		selected++
		if g.VendorRole != enums.VendorRoleTopVendor {
			return p.StandardPercent
		}
	}
	if selected == 0 {
		return p.StandardPercent
	}
	return p.TopVendorPercent
}

// Compose applies the policy's mode and delegates to the same delivery and
// acceptance rules as the package-level Compose.
func (p AdminFeePolicy) Compose(groups []cart.VendorGroup, sel cart.SelectionSet, delivery DeliveryCharge) (Totals, error) {
	if p.Mode != AdminFeePerVendor {
		return Compose(cart.AllItems(groups), sel, p.CartWidePercent(groups, sel), delivery)
	}
	count := 0
	subtotal := decimal.Zero
	adminFee := decimal.Zero
	for _, g := range groups {
		n, groupSubtotal := selectedSubtotal(g.Items, sel)
		if n == 0 {
			continue
		}
		count += n
		subtotal = subtotal.Add(groupSubtotal)
		adminFee = adminFee.Add(percentOf(groupSubtotal, p.RateFor(g.VendorRole)))
	}
	// a blended fee has no single rate
	return compose(count, subtotal, decimal.Zero, adminFee, delivery)
}

// ItemTotals reports subtotal and admin fee without touching delivery, for
// previews that are still waiting on fee acceptance.
func (p AdminFeePolicy) ItemTotals(groups []cart.VendorGroup, sel cart.SelectionSet) (Totals, error) {
	return p.Compose(groups, sel, DeliveryCharge{Method: enums.DeliveryMethodPickup})
}
