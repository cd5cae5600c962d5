package pricing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

type fakeCache struct {
	data    map[string]string
	getErr  error
	setErr  error
	sets    int
	lastTTL time.Duration
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets++
	f.lastTTL = ttl
	f.data[key] = value.(string)
	return nil
}

type countingSource struct {
	table FeeTable
	calls int
	err   error
}

func (s *countingSource) Current(ctx context.Context) (FeeTable, error) { return s.Refresh(ctx) }

func (s *countingSource) Refresh(context.Context) (FeeTable, error) {
	s.calls++
	return s.table, s.err
}

func TestCachedSourceMissThenHit(t *testing.T) {
	ctx := context.Background()
	backing := &countingSource{table: campusTable(t)}
	cache := &fakeCache{data: map[string]string{}}
	src, err := NewCachedSource(backing, cache, "chopmart:fee_table", time.Minute, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("NewCachedSource: %v", err)
	}

	if _, err := src.Current(ctx); err != nil {
		t.Fatalf("Current: %v", err)
	}
	table, err := src.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if backing.calls != 1 {
		t.Fatalf("expected one backing read, got %d", backing.calls)
	}
	if cache.lastTTL != time.Minute {
		t.Fatalf("expected configured ttl, got %s", cache.lastTTL)
	}
	if fee, _ := table.Lookup(zones.Eziobodo, zones.Umuchima); !fee.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected cached fee %s", fee)
	}

	if _, err := src.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if backing.calls != 2 || cache.sets != 2 {
		t.Fatalf("refresh must re-read and overwrite, calls=%d sets=%d", backing.calls, cache.sets)
	}
}

func TestCachedSourceSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	backing := &countingSource{table: campusTable(t)}
	cache := &fakeCache{data: map[string]string{}, getErr: errors.New("conn refused"), setErr: errors.New("conn refused")}
	src, _ := NewCachedSource(backing, cache, "k", 0, nil)

	table, err := src.Current(ctx)
	if err != nil {
		t.Fatalf("cache outage should fall back to backing source: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("unexpected table %+v", table.Entries())
	}
}

func TestCachedSourcePropagatesBackingFailure(t *testing.T) {
	backing := &countingSource{err: errors.New("db down")}
	src, _ := NewCachedSource(backing, &fakeCache{data: map[string]string{}}, "k", 0, nil)
	if _, err := src.Refresh(context.Background()); err == nil {
		t.Fatal("expected backing error")
	}
}
