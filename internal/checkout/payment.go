package checkout

import (
	"context"
	"fmt"

	"github.com/chopmart/chopmart-backend/pkg/paystack"
)

type paystackInitializer interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.Transaction, error)
}

// PaystackGateway adapts the Paystack client to PaymentInitializer.
type PaystackGateway struct {
	client paystackInitializer
}

func NewPaystackGateway(client paystackInitializer) (*PaystackGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("paystack client required")
	}
	return &PaystackGateway{client: client}, nil
}

func (g *PaystackGateway) Initialize(ctx context.Context, req PaymentRequest) (PaymentSession, error) {
	tx, err := g.client.Initialize(ctx, paystack.InitializeRequest{
		Email:     req.PayerEmail,
		Amount:    req.AmountMinor,
		Reference: req.Reference,
		Currency:  req.Currency,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return PaymentSession{}, err
	}
	return PaymentSession{
		AuthorizationURL: tx.AuthorizationURL,
		AccessCode:       tx.AccessCode,
		Reference:        tx.Reference,
	}, nil
}
