package ports

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TopicBidPlaced     = "bid.placed"
	TopicBidOutbid     = "bid.outbid"
	TopicAuctionWon    = "auction.won"
	TopicAuctionLost   = "auction.lost"
	TopicItemSold      = "item.sold"
	TopicOfferReceived = "offer.received"
	TopicOfferAccepted = "offer.accepted"
	TopicOfferRejected = "offer.rejected"
	TopicPurchaseDone  = "purchase.confirmed"
)

// NotificationEvent is one row of the notification outbox. Events are
// appended in the same transaction as the state change they describe and
// published asynchronously; delivery is best effort.
type NotificationEvent struct {
	ID           string
	Topic        string
	Payload      json.RawMessage
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

type OutboxRepository interface {
	Append(ctx context.Context, event NotificationEvent) error
	GetPending(ctx context.Context, limit int) ([]NotificationEvent, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
}
