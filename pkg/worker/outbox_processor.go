package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
	"github.com/jwalitptl/doctorconnect-api/pkg/messaging"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
)

// OutboxStore is the part of the store the outbox workers use.
type OutboxStore interface {
	Outbox() repository.OutboxRepository
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts and RetryDelay bound immediate retries within one poll.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxDeliveries is how many polls may fail before an event is marked
	// FAILED for good.
	MaxDeliveries int
	ChannelPrefix string
}

func (c OutboxProcessorConfig) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BatchSize must be greater than 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be greater than 0")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("RetryAttempts must be greater than 0")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("RetryDelay must not be negative")
	}
	if c.MaxDeliveries <= 0 {
		return fmt.Errorf("MaxDeliveries must be greater than 0")
	}
	return nil
}

// OutboxProcessor publishes committed outbox events to the broker. Each poll
// claims a batch with SKIP LOCKED, so several workers can run side by side.
type OutboxProcessor struct {
	store   OutboxStore
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	store OutboxStore,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger.With("outbox-processor"),
		metrics: metrics,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch handles one batch and returns how many events were
// published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	published := 0
	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		events, err := tx.Outbox().ClaimPending(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			if err := p.processEvent(ctx, tx, event); err != nil {
				p.logger.Error(err, "Failed to process event",
					"event_id", event.ID.String(),
					"event_type", event.EventType)
				continue
			}
			published++
		}
		return nil
	})
	if err != nil {
		return published, err
	}

	if pending, err := p.store.Outbox().CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(pending))
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, tx repository.Tx, event *model.OutboxEvent) error {
	msg, err := json.Marshal(messaging.Envelope{
		ID:          event.ID,
		Type:        event.EventType,
		AggregateID: event.AggregateID,
		OccurredAt:  event.CreatedAt,
		Payload:     json.RawMessage(event.Payload),
	})
	if err != nil {
		return p.fail(ctx, tx, event, fmt.Errorf("failed to encode event: %w", err), true)
	}

	channel := messaging.Channel(p.config.ChannelPrefix, event.EventType)
	attempts := 0
	err = retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		attempts++
		return p.broker.Publish(ctx, channel, msg)
	})
	if attempts > 1 {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Add(float64(attempts - 1))
	}
	if err != nil {
		terminal := event.RetryCount+1 >= p.config.MaxDeliveries
		return p.fail(ctx, tx, event, err, terminal)
	}

	if err := tx.Outbox().MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	p.metrics.OutboxEventsProcessed.Inc()
	return nil
}

func (p *OutboxProcessor) fail(ctx context.Context, tx repository.Tx, event *model.OutboxEvent, cause error, terminal bool) error {
	p.metrics.OutboxEventsFailed.Inc()
	if err := tx.Outbox().MarkFailed(ctx, event.ID, cause.Error(), terminal); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
	return cause
}

// retry calls fn up to attempts times, sleeping delay between calls. It
// stops early when ctx is done.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
