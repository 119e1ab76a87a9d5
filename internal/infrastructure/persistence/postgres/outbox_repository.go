package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
)

// OutboxRepository stores notification events next to the business writes
// that produced them. The dispatcher drains pending rows and stamps
// dispatched_at after the broker accepted the message.
type OutboxRepository struct {
	conn *Connection
	tx   *sql.Tx
}

func NewOutboxRepository(conn *Connection) *OutboxRepository {
	return &OutboxRepository{conn: conn}
}

func NewOutboxRepositoryTx(conn *Connection, tx *sql.Tx) *OutboxRepository {
	return &OutboxRepository{conn: conn, tx: tx}
}

func (r *OutboxRepository) Append(ctx context.Context, event ports.NotificationEvent) error {
	query := `
		INSERT INTO notification_outbox (id, topic, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if r.tx != nil {
		_, err := monitoring.InstrumentTxExec(ctx, r.tx, "INSERT", "notification_outbox", query,
			event.ID, event.Topic, []byte(event.Payload), event.CreatedAt,
		)
		return err
	}
	_, err := monitoring.InstrumentExec(ctx, r.conn.db, "INSERT", "notification_outbox", query,
		event.ID, event.Topic, []byte(event.Payload), event.CreatedAt,
	)
	return err
}

func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]ports.NotificationEvent, error) {
	query := `
		SELECT id, topic, payload, created_at
		FROM notification_outbox
		WHERE dispatched_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := monitoring.InstrumentQuery(ctx, r.conn.db, "SELECT", "notification_outbox", query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ports.NotificationEvent
	for rows.Next() {
		var event ports.NotificationEvent
		var payload []byte
		if err := rows.Scan(&event.ID, &event.Topic, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Payload = payload
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE notification_outbox SET dispatched_at = $2 WHERE id = $1`

	_, err := monitoring.InstrumentExec(ctx, r.conn.db, "UPDATE", "notification_outbox", query, id, at)
	return err
}
