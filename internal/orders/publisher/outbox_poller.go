package publisher

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/orders/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const batchSize = 100

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
}

// Reconciler resolves orders stuck waiting for payment.
type Reconciler interface {
	ReconcileStale(ctx context.Context) (int, error)
}

// OutboxPoller relays outbox rows to Kafka on one ticker and sweeps stale
// pending-payment orders on the other.
type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	repo         OutboxStore
	writer       events.MessageWriter
	reconciler   Reconciler
	log          *zap.Logger
	metrics      *metrics.Metrics
}

func NewOutboxPoller(repo OutboxStore, writer events.MessageWriter, reconciler Reconciler, eventTick, recoveryTick time.Duration, log *zap.Logger, m *metrics.Metrics) *OutboxPoller {
	if log == nil {
		log = zap.NewNop()
	}
	if eventTick <= 0 {
		eventTick = time.Second
	}
	if recoveryTick <= 0 {
		recoveryTick = time.Minute
	}
	return &OutboxPoller{
		eventTick:    eventTick,
		recoveryTick: recoveryTick,
		repo:         repo,
		writer:       writer,
		reconciler:   reconciler,
		log:          log.Named("outbox"),
		metrics:      m,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()

	p.log.Info("outbox poller started",
		zap.Duration("event_tick", p.eventTick), zap.Duration("recovery_tick", p.recoveryTick))
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStalePayments(ctx)
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	pending, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range pending {
		msg := events.NewMessage(event.AggregateID, event.EventType, event.Payload)
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.Error("failed to publish event", zap.String("event_id", event.ID.String()), zap.Error(err))
			// keep order: later events of the same aggregate must not overtake this one
			return
		}
		p.metrics.EventPublished(event.EventType)

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark event as processed", zap.String("event_id", event.ID.String()), zap.Error(err))
			continue
		}
	}
}

func (p *OutboxPoller) recoverStalePayments(ctx context.Context) {
	if p.reconciler == nil {
		return
	}
	n, err := p.reconciler.ReconcileStale(ctx)
	if err != nil {
		p.log.Error("failed to reconcile stale orders", zap.Error(err))
		return
	}
	if n > 0 {
		p.log.Info("reconciled stale orders", zap.Int("count", n))
	}
}
