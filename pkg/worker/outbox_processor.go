package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts bounds both the immediate publish attempts of one poll
	// and the number of polls an event is retried on before it is failed.
	RetryAttempts int
	RetryDelay    time.Duration
	Topic         string
	Retention     time.Duration
}

type OutboxProcessor struct {
	tx      repository.TxManager
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	tx repository.TxManager,
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be greater than 0")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	return &OutboxProcessor{
		tx:      tx,
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "topic", p.config.Topic)

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

// ProcessBatch publishes up to BatchSize due events and returns how many
// were delivered. Events are claimed under a lease in one short unit,
// published outside any unit, and each outcome is written in its own unit.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.claim(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// claim locks the due events and pushes their retry_at past the lease so
// other workers skip them while they are being published.
func (p *OutboxProcessor) claim(ctx context.Context) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := p.tx.Atomic(ctx, func(ctx context.Context) error {
		var err error
		events, err = p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

		until := p.now().Add(p.lease())
		for _, event := range events {
			if err := p.repo.Lease(ctx, event.ID, until); err != nil {
				return fmt.Errorf("failed to lease event %s: %w", event.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// lease covers one poll of publish attempts.
func (p *OutboxProcessor) lease() time.Duration {
	return p.config.PollInterval + time.Duration(p.config.RetryAttempts)*p.config.RetryDelay
}

func (p *OutboxProcessor) setStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return p.tx.Atomic(ctx, func(ctx context.Context) error {
		return p.repo.UpdateStatus(ctx, id, status, errorMessage, retryAt)
	})
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		Topic:   p.config.Topic,
		Key:     event.AggregateID.String(),
		Type:    event.EventType,
		Payload: event.Payload,
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.config.RetryDelay), uint64(p.config.RetryAttempts-1)),
		ctx,
	)
	publishErr := backoff.Retry(func() error {
		return p.broker.Publish(ctx, msg)
	}, policy)

	if publishErr == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.setStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil
	}

	errStr := publishErr.Error()
	if event.RetryCount+1 >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.setStatus(ctx, event.ID, model.OutboxStatusFailed, &errStr, nil); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		}
		return publishErr
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.config.RetryDelay << uint(event.RetryCount))
	if err := p.setStatus(ctx, event.ID, model.OutboxStatusRetry, &errStr, &retryAt); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
	return publishErr
}

// Purge deletes processed events older than the retention window.
func (p *OutboxProcessor) Purge(ctx context.Context) (int64, error) {
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("purge_events", "error").Inc()
		return 0, err
	}
	p.metrics.DatabaseOperations.WithLabelValues("purge_events", "success").Inc()
	p.metrics.OutboxEventsPurged.Add(float64(n))
	if n > 0 {
		p.logger.Info("Purged processed outbox events", "count", n)
	}
	return n, nil
}
