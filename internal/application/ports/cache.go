package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Cache interface {
	// Per-item mutual exclusion around settlement-critical sections.
	AcquireItemLock(ctx context.Context, itemID string, ttl time.Duration) (bool, error)
	ReleaseItemLock(ctx context.Context, itemID string) error

	// Fast pre-filter for obviously losing bids. The database conditional
	// update remains the source of truth.
	GetCurrentPrice(ctx context.Context, itemID string) (decimal.Decimal, bool, error)
	SetCurrentPrice(ctx context.Context, itemID string, price decimal.Decimal, ttl time.Duration) error

	PublishBidUpdate(ctx context.Context, itemID string, payload []byte) error
}
