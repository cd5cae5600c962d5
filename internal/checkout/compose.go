// Package checkout composes order totals from a partially selected cart and
// orchestrates preview, rider quote requests and order submission.
package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/cart"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// DeliveryCharge is the delivery add-on as the customer currently sees it.
type DeliveryCharge struct {
	Method   enums.DeliveryMethod
	Fee      decimal.Decimal
	Accepted bool
}

// Totals carries full-precision amounts. Use Rounded for display and
// AmountMinor for the payment gateway.
type Totals struct {
	ItemCount       int             `json:"itemCount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	AdminFeePercent decimal.Decimal `json:"adminFeePercent"`
	AdminFee        decimal.Decimal `json:"adminFee"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
}

// Compose derives the totals for the selected items at a single admin fee rate.
// A rider or zone delivery fee that the customer has not accepted yields
// UNACCEPTED_QUOTE and no totals.
func Compose(items []cart.CartLineItem, sel cart.SelectionSet, adminFeePercent decimal.Decimal, delivery DeliveryCharge) (Totals, error) {
	count, subtotal := selectedSubtotal(items, sel)
	return compose(count, subtotal, adminFeePercent, percentOf(subtotal, adminFeePercent), delivery)
}

func compose(count int, subtotal, percent, adminFee decimal.Decimal, delivery DeliveryCharge) (Totals, error) {
	deliveryFee, err := resolveDeliveryFee(delivery)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		ItemCount:       count,
		Subtotal:        subtotal,
		AdminFeePercent: percent,
		AdminFee:        adminFee,
		DeliveryFee:     deliveryFee,
		GrandTotal:      subtotal.Add(adminFee).Add(deliveryFee),
	}, nil
}

func resolveDeliveryFee(delivery DeliveryCharge) (decimal.Decimal, error) {
	switch {
	case delivery.Method == enums.DeliveryMethodPickup:
		return decimal.Zero, nil
	case !delivery.Method.IsValid():
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method").
			WithDetails(map[string]any{"deliveryMethod": delivery.Method.String()})
	case delivery.Fee.IsNegative():
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	case !delivery.Accepted:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeUnacceptedQuote, "delivery fee has not been accepted").
			WithDetails(map[string]any{"deliveryMethod": delivery.Method.String(), "deliveryFee": delivery.Fee.String()})
	}
	return delivery.Fee, nil
}

func selectedSubtotal(items []cart.CartLineItem, sel cart.SelectionSet) (int, decimal.Decimal) {
	count := 0
	subtotal := decimal.Zero
	for _, item := range items {
		if !sel.IsSelected(item.ID) {
			continue
		}
		count++
		subtotal = subtotal.Add(item.LineTotal())
	}
	return count, subtotal
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

// ValidateForSubmission refuses an order with no selected items.
func (t Totals) ValidateForSubmission() error {
	if t.ItemCount == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidSelection, "no items selected")
	}
	return nil
}

// Rounded returns a display copy rounded to two decimal places.
func (t Totals) Rounded() Totals {
	return Totals{
		ItemCount:       t.ItemCount,
		Subtotal:        t.Subtotal.Round(2),
		AdminFeePercent: t.AdminFeePercent,
		AdminFee:        t.AdminFee.Round(2),
		DeliveryFee:     t.DeliveryFee.Round(2),
		GrandTotal:      t.GrandTotal.Round(2),
	}
}

// AmountMinor converts the full-precision grand total to kobo. This is the only
// place rounding touches the charged amount.
func (t Totals) AmountMinor() int64 {
	return t.GrandTotal.Mul(hundred).Round(0).IntPart()
}
