package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/persistence"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
)

const (
	// MaxRetryAttempts is how many failed deliveries mark an event failed
	MaxRetryAttempts = 5
	// OutboxPollInterval is the worker tick
	OutboxPollInterval = 500 * time.Millisecond
	outboxBatchSize    = 100
)

// OutboxService handles transactional event storage and async publishing.
// It implements the Outbox Pattern for guaranteed event delivery.
type OutboxService struct {
	db       *sql.DB
	repo     *persistence.OutboxRepository
	eventBus *EventBus
	log      zerolog.Logger

	// Worker control
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOutboxService creates a new OutboxService
func NewOutboxService(db *sql.DB, eventBus *EventBus) *OutboxService {
	return &OutboxService{
		db:       db,
		repo:     persistence.NewOutboxRepository(db),
		eventBus: eventBus,
		log:      logging.For("outbox"),
		stopCh:   make(chan struct{}),
	}
}

// Enqueue stores an event outside any transaction
func (os *OutboxService) Enqueue(ctx context.Context, eventType events.EventType, payload interface{}) error {
	return os.EnqueueTx(ctx, nil, eventType, payload)
}

// EnqueueTx stores an event using an explicit transaction so it commits with the business write
func (os *OutboxService) EnqueueTx(ctx context.Context, tx *sql.Tx, eventType events.EventType, payload interface{}) error {
	var exec persistence.Executor
	if tx != nil {
		exec = tx
	}
	id, err := os.repo.Enqueue(ctx, exec, string(eventType), payload)
	if err != nil {
		return err
	}
	os.log.Debug().Str(logging.EVENT, eventType.String()).Str("outbox_id", id).Msg("✅ Enqueued event")
	return nil
}

// StartWorker starts the background worker that processes pending outbox events.
// The worker polls with the specified interval.
func (os *OutboxService) StartWorker(interval time.Duration) {
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		os.log.Info().Dur("interval", interval).Msg("📤 Outbox worker started")

		for {
			select {
			case <-os.stopCh:
				os.log.Info().Msg("📤 Outbox worker stopping...")
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					os.log.Warn().Err(err).Msg("⚠️ Outbox worker error")
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	os.log.Info().Msg("📤 Outbox worker stopped")
}

// ProcessOutbox processes all pending events in the outbox table.
// Each event is claimed, published and marked in its own transaction.
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, outboxBatchSize)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		os.log.Debug().Int("count", len(pending)).Msg("🔄 Processing pending events")
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e); err != nil {
			os.log.Warn().Err(err).Str("outbox_id", e.ID).Msg("⚠️ Failed to process outbox event")
		}
	}

	return nil
}

// processEventAtomic claims an event, publishes it, and updates status atomically
func (os *OutboxService) processEventAtomic(ctx context.Context, e models.OutboxEvent) error {
	tx, err := os.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	claimedID, err := os.repo.ClaimEvent(ctx, tx, e.ID)
	if err != nil {
		return fmt.Errorf("failed to claim event: %w", err)
	}
	if claimedID == "" {
		return nil // Already processed or locked by another worker
	}

	payload, err := decodeOutboxPayload(events.EventType(e.EventType), e.Payload)
	if err != nil {
		os.log.Error().Err(err).Str("outbox_id", e.ID).Msg("❌ Event payload could not be decoded")
		if markErr := os.repo.UpdateStatus(ctx, tx, e.ID, models.OutboxStatusFailed, fmt.Sprintf("invalid payload: %v", err)); markErr != nil {
			return fmt.Errorf("failed to mark event as failed: %w", markErr)
		}
		metrics.OutboxEvents.WithLabelValues(metrics.ResultFailure).Inc()
		return tx.Commit()
	}

	if err := os.eventBus.Publish(ctx, events.EventType(e.EventType), payload); err != nil {
		newRetryCount := e.RetryCount + 1
		if newRetryCount >= MaxRetryAttempts {
			if markErr := os.repo.UpdateStatus(ctx, tx, e.ID, models.OutboxStatusFailed, fmt.Sprintf("max retries exceeded: %v", err)); markErr != nil {
				return fmt.Errorf("failed to mark event as failed: %w", markErr)
			}
			metrics.OutboxEvents.WithLabelValues(metrics.ResultFailure).Inc()
			os.log.Error().Err(err).Str("outbox_id", e.ID).Msg("❌ Event failed permanently")
			return tx.Commit()
		}

		if updateErr := os.repo.IncrementRetry(ctx, tx, e.ID, newRetryCount, err.Error()); updateErr != nil {
			return fmt.Errorf("failed to update retry count: %w", updateErr)
		}
		os.log.Warn().Err(err).Str("outbox_id", e.ID).Int("attempt", newRetryCount).Int("max", MaxRetryAttempts).Msg("⚠️ Event delivery failed")
		return tx.Commit()
	}

	if err := os.repo.UpdateStatus(ctx, tx, e.ID, models.OutboxStatusProcessed, ""); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.OutboxEvents.WithLabelValues(metrics.ResultSuccess).Inc()
	os.log.Debug().Str("outbox_id", e.ID).Str(logging.EVENT, e.EventType).Msg("✅ Processed event")
	return nil
}

// decodeOutboxPayload restores the typed payload handlers expect
func decodeOutboxPayload(eventType events.EventType, raw string) (interface{}, error) {
	switch eventType {
	case events.EmailRequested:
		var msg models.EmailMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, err
		}
		if msg.To == "" {
			return nil, fmt.Errorf("email has no recipient")
		}
		return msg, nil
	default:
		var generic map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
}

// CleanupProcessed removes old processed events from the outbox.
// This should be called periodically (e.g., daily) to prevent table bloat.
func (os *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	return os.repo.CleanupProcessed(ctx, cutoff)
}
