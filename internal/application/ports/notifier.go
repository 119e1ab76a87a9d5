package ports

import "context"

// Notifier hands a notification event to the delivery collaborator.
// Publishing is fire and forget; failures are logged and retried by the
// outbox dispatcher, never surfaced to the flow that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event NotificationEvent) error
}
