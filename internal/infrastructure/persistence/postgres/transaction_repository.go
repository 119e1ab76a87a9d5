package postgres

import (
	"context"
	"database/sql"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
)

// TransactionRepository stores settlement records. The unique index on
// item_id makes CreateIfAbsent the idempotency anchor for the whole
// settlement path.
type TransactionRepository struct {
	conn *Connection
	tx   *sql.Tx
}

func NewTransactionRepository(conn *Connection) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

func NewTransactionRepositoryTx(conn *Connection, tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{conn: conn, tx: tx}
}

func (r *TransactionRepository) query(ctx context.Context, queryType, query string, args ...interface{}) (*sql.Rows, error) {
	if r.tx != nil {
		return monitoring.InstrumentTxQuery(ctx, r.tx, queryType, "transactions", query, args...)
	}
	return monitoring.InstrumentQuery(ctx, r.conn.db, queryType, "transactions", query, args...)
}

func (r *TransactionRepository) queryRow(ctx context.Context, queryType, query string, args ...interface{}) *sql.Row {
	if r.tx != nil {
		return monitoring.InstrumentTxQueryRow(ctx, r.tx, queryType, "transactions", query, args...)
	}
	return monitoring.InstrumentQueryRow(ctx, r.conn.db, queryType, "transactions", query, args...)
}

func (r *TransactionRepository) exec(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	if r.tx != nil {
		return monitoring.InstrumentTxExec(ctx, r.tx, queryType, "transactions", query, args...)
	}
	return monitoring.InstrumentExec(ctx, r.conn.db, queryType, "transactions", query, args...)
}

// CreateIfAbsent inserts the transaction unless one already exists for the
// item. The ON CONFLICT target is the unique item_id index; a skipped insert
// reports created=false and leaves the existing row untouched.
func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, t *escrow.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (
			id, item_id, buyer_id, seller_id,
			final_price, buyer_commission, seller_commission, shipping_cost,
			total_charged, seller_payout,
			payment_status, lifecycle_status,
			processor_customer_id, payment_intent_id, checkout_session_id,
			shipping_address, tracking_number,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (item_id) DO NOTHING
	`

	result, err := r.exec(ctx, "INSERT", query,
		t.ID, t.ItemID, t.BuyerID, t.SellerID,
		t.FinalPrice, t.BuyerCommission, t.SellerCommission, t.ShippingCost,
		t.TotalCharged, t.SellerPayout,
		t.PaymentStatus, t.LifecycleStatus,
		t.ProcessorCustomerID, t.PaymentIntentID, t.CheckoutSessionID,
		t.ShippingAddress, t.TrackingNumber,
		t.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const transactionColumns = `
	id, item_id, buyer_id, seller_id,
	final_price, buyer_commission, seller_commission, shipping_cost,
	total_charged, seller_payout,
	payment_status, lifecycle_status,
	processor_customer_id, payment_intent_id, checkout_session_id,
	shipping_address, tracking_number,
	created_at, paid_at, shipped_at, delivered_at, completed_at
`

func scanTransaction(scanner interface{ Scan(...interface{}) error }) (*escrow.Transaction, error) {
	var t escrow.Transaction
	var paidAt, shippedAt, deliveredAt, completedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.ItemID, &t.BuyerID, &t.SellerID,
		&t.FinalPrice, &t.BuyerCommission, &t.SellerCommission, &t.ShippingCost,
		&t.TotalCharged, &t.SellerPayout,
		&t.PaymentStatus, &t.LifecycleStatus,
		&t.ProcessorCustomerID, &t.PaymentIntentID, &t.CheckoutSessionID,
		&t.ShippingAddress, &t.TrackingNumber,
		&t.CreatedAt, &paidAt, &shippedAt, &deliveredAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if paidAt.Valid {
		at := paidAt.Time
		t.PaidAt = &at
	}
	if shippedAt.Valid {
		at := shippedAt.Time
		t.ShippedAt = &at
	}
	if deliveredAt.Valid {
		at := deliveredAt.Time
		t.DeliveredAt = &at
	}
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	return &t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*escrow.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.queryRow(ctx, "SELECT", query, id))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TransactionRepository) GetByItemID(ctx context.Context, itemID string) (*escrow.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE item_id = $1`

	t, err := scanTransaction(r.queryRow(ctx, "SELECT", query, itemID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TransactionRepository) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*escrow.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.query(ctx, "SELECT", query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*escrow.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// Update is the escrow counterpart of the bid CAS: the SET only applies while
// the row still carries the statuses the caller based its transition on. Two
// concurrent transitions race here and exactly one lands.
func (r *TransactionRepository) Update(ctx context.Context, t *escrow.Transaction, fromPayment escrow.PaymentStatus, fromLifecycle escrow.LifecycleStatus) error {
	query := `
		UPDATE transactions
		SET payment_status = $2,
		    lifecycle_status = $3,
		    processor_customer_id = $4,
		    payment_intent_id = $5,
		    checkout_session_id = $6,
		    shipping_address = $7,
		    tracking_number = $8,
		    paid_at = $9,
		    shipped_at = $10,
		    delivered_at = $11,
		    completed_at = $12
		WHERE id = $1 AND payment_status = $13 AND lifecycle_status = $14
	`

	result, err := r.exec(ctx, "UPDATE", query,
		t.ID, t.PaymentStatus, t.LifecycleStatus,
		t.ProcessorCustomerID, t.PaymentIntentID, t.CheckoutSessionID,
		t.ShippingAddress, t.TrackingNumber,
		t.PaidAt, t.ShippedAt, t.DeliveredAt, t.CompletedAt,
		fromPayment, fromLifecycle,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainErrors.ErrInvalidTransition
	}
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id string, fromPayment escrow.PaymentStatus) error {
	query := `DELETE FROM transactions WHERE id = $1 AND payment_status = $2`

	result, err := r.exec(ctx, "DELETE", query, id, fromPayment)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainErrors.ErrInvalidTransition
	}
	return nil
}
