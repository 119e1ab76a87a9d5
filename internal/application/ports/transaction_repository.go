package ports

import (
	"context"

	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
)

type TransactionRepository interface {
	// CreateIfAbsent inserts the transaction unless one already exists for
	// the same item. It reports false without error when another settlement
	// got there first; callers then load the existing record.
	CreateIfAbsent(ctx context.Context, tx *escrow.Transaction) (bool, error)

	GetByID(ctx context.Context, id string) (*escrow.Transaction, error)
	GetByItemID(ctx context.Context, itemID string) (*escrow.Transaction, error)
	GetByUser(ctx context.Context, userID string, limit, offset int) ([]*escrow.Transaction, error)

	// Update persists a state transition conditionally: the write only lands
	// when the stored row still carries the statuses the caller read before
	// mutating the entity. A lost race reports ErrInvalidTransition and
	// leaves the winner's row untouched.
	Update(ctx context.Context, tx *escrow.Transaction, fromPayment escrow.PaymentStatus, fromLifecycle escrow.LifecycleStatus) error

	// Delete removes the row only while it still carries the expected
	// payment status, so a cancellation cannot erase a concurrent
	// authorization. ErrInvalidTransition on a lost race.
	Delete(ctx context.Context, id string, fromPayment escrow.PaymentStatus) error
}
