package ports

import "context"

// UnitOfWork scopes the repositories to a single database transaction so the
// settlement write pair (transaction insert + item flip) and its outbox
// events commit or roll back together.
type UnitOfWork interface {
	Begin(ctx context.Context) (TxContext, error)
}

type TxContext interface {
	Listings() ListingRepository
	Transactions() TransactionRepository
	Outbox() OutboxRepository
	Commit() error
	Rollback() error
}
