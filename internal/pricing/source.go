package pricing

import "context"

// Source supplies the current fee table. Refresh is caller-triggered; nothing is pushed.
type Source interface {
	Current(ctx context.Context) (FeeTable, error)
	Refresh(ctx context.Context) (FeeTable, error)
}
