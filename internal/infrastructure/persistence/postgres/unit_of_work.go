package postgres

import (
	"context"
	"database/sql"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
)

// UnitOfWork hands out transaction-scoped repository sets. Settlement and the
// bid path use it so the conditional writes and their outbox events commit as
// one unit.
type UnitOfWork struct {
	conn *Connection
}

func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

func (u *UnitOfWork) Begin(ctx context.Context) (ports.TxContext, error) {
	tx, err := u.conn.BeginSerializableTx(ctx)
	if err != nil {
		return nil, err
	}

	return &txContext{
		tx:           tx,
		listings:     NewListingRepositoryTx(u.conn, tx),
		transactions: NewTransactionRepositoryTx(u.conn, tx),
		outbox:       NewOutboxRepositoryTx(u.conn, tx),
	}, nil
}

type txContext struct {
	tx           *sql.Tx
	listings     *ListingRepository
	transactions *TransactionRepository
	outbox       *OutboxRepository
}

func (t *txContext) Listings() ports.ListingRepository         { return t.listings }
func (t *txContext) Transactions() ports.TransactionRepository { return t.transactions }
func (t *txContext) Outbox() ports.OutboxRepository            { return t.outbox }

func (t *txContext) Commit() error {
	return t.tx.Commit()
}

func (t *txContext) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
