package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/chopmart/chopmart-backend/pkg/logger"
)

const (
	QuoteExpiryJobName    = "delivery_quote_expiry"
	PaymentTimeoutJobName = "order_payment_timeout"

	defaultExpiryBatch = 200
	maxExpiryBatches   = 10
)

type quoteExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

type quoteExpiryJob struct {
	jobs  quoteExpirer
	batch int
	logg  *logger.Logger
}

// NewQuoteExpiryJob expires quoted delivery jobs whose quote has lapsed.
func NewQuoteExpiryJob(jobs quoteExpirer, batch int, logg *logger.Logger) (Job, error) {
	if jobs == nil {
		return nil, fmt.Errorf("delivery jobs service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &quoteExpiryJob{jobs: jobs, batch: batch, logg: logg}, nil
}

func (j *quoteExpiryJob) Name() string { return QuoteExpiryJobName }

// Run keeps pulling full batches so a backlog drains within one cycle, up to a cap.
func (j *quoteExpiryJob) Run(ctx context.Context) error {
	total := 0
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := j.jobs.ExpireDue(ctx, j.batch)
		total += n
		if err != nil {
			return err
		}
		if n < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "delivery_job.quotes_expired")
	return nil
}

type unpaidCanceller interface {
	CancelUnpaid(ctx context.Context, olderThan time.Duration) (int64, error)
}

type paymentTimeoutJob struct {
	orders unpaidCanceller
	ttl    time.Duration
}

// NewPaymentTimeoutJob cancels orders still pending payment after ttl.
func NewPaymentTimeoutJob(orders unpaidCanceller, ttl time.Duration) (Job, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("pending payment ttl must be positive")
	}
	return &paymentTimeoutJob{orders: orders, ttl: ttl}, nil
}

func (j *paymentTimeoutJob) Name() string { return PaymentTimeoutJobName }

func (j *paymentTimeoutJob) Run(ctx context.Context) error {
	_, err := j.orders.CancelUnpaid(ctx, j.ttl)
	return err
}
