package scheduler

import (
	"context"
	"time"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// OutboxDispatcher drains pending notification events to the broker. Events
// are marked dispatched only after a successful publish, so a crash between
// the two can replay an event; consumers treat notifications as at least
// once.
type OutboxDispatcher struct {
	outbox   ports.OutboxRepository
	notifier ports.Notifier
	clk      clock.Clock
	logger   *logger.Logger

	interval  time.Duration
	batchSize int
	stopChan  chan struct{}
}

func NewOutboxDispatcher(
	outbox ports.OutboxRepository,
	notifier ports.Notifier,
	clk clock.Clock,
	log *logger.Logger,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		outbox:    outbox,
		notifier:  notifier,
		clk:       clk,
		logger:    log,
		interval:  2 * time.Second,
		batchSize: 100,
		stopChan:  make(chan struct{}),
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher", "interval", d.interval.String())

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-d.stopChan:
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.dispatchBatch(ctx)
		}
	}
}

func (d *OutboxDispatcher) Stop() {
	close(d.stopChan)
}

func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) {
	events, err := d.outbox.GetPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to load pending notifications", "error", err)
		return
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return
		}

		if err := d.notifier.Publish(ctx, event); err != nil {
			monitoring.OutboxDispatchFailuresTotal.Inc()
			d.logger.Error("Failed to publish notification", "event_id", event.ID, "topic", event.Topic, "error", err)
			continue
		}

		if err := d.outbox.MarkDispatched(ctx, event.ID, d.clk.Now()); err != nil {
			d.logger.Error("Failed to mark notification dispatched", "event_id", event.ID, "error", err)
			continue
		}
		monitoring.OutboxDispatchedTotal.Inc()
	}
}
