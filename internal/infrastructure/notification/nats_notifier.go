package notification

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// NATSNotifier publishes outbox events to the notification broker. Subjects
// follow the event topic: notifications.auction.won, notifications.bid.outbid
// and so on.
type NATSNotifier struct {
	conn *nats.Conn
	log  *logger.Logger
}

func NewNATSNotifier(url string, log *logger.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("auction-settlement-service"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &NATSNotifier{conn: conn, log: log}, nil
}

func (n *NATSNotifier) Publish(ctx context.Context, event ports.NotificationEvent) error {
	subject := "notifications." + event.Topic
	if err := n.conn.Publish(subject, event.Payload); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.log.Warn("NATS drain failed", "error", err)
	}
}
