package orders

import (
	"context"
	"fmt"

	"github.com/chopmart/chopmart-backend/pkg/paystack"
)

type paystackVerifier interface {
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
}

// PaystackVerifier adapts the Paystack client to PaymentVerifier.
type PaystackVerifier struct {
	client paystackVerifier
}

func NewPaystackVerifier(client paystackVerifier) (*PaystackVerifier, error) {
	if client == nil {
		return nil, fmt.Errorf("paystack client required")
	}
	return &PaystackVerifier{client: client}, nil
}

func (v *PaystackVerifier) Verify(ctx context.Context, reference string) (bool, int64, error) {
	res, err := v.client.Verify(ctx, reference)
	if err != nil {
		return false, 0, err
	}
	return res.Paid(), res.Amount, nil
}
