package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/messaging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
)

// RegisterEmailRelay delivers queued emails to the relay. A delivery error is
// returned so the outbox worker retries it.
func RegisterEmailRelay(bus ports.EventPublisher, relay ports.EmailRelay) func() {
	return bus.Subscribe(events.EmailRequested, func(ctx context.Context, payload interface{}) error {
		msg, ok := payload.(models.EmailMessage)
		if !ok {
			return fmt.Errorf("unexpected email payload %T", payload)
		}
		return relay.Deliver(ctx, msg)
	})
}

// RegisterBrokerForwarding publishes every domain event to the broker. Broker
// failures are logged and never reach the publisher of the event.
func RegisterBrokerForwarding(bus ports.EventPublisher, broker ports.BrokerPublisher, now func() time.Time) []func() {
	if now == nil {
		now = time.Now
	}
	unsubscribe := make([]func(), 0, len(events.DomainEvents))
	for _, et := range events.DomainEvents {
		eventType := et
		unsubscribe = append(unsubscribe, bus.Subscribe(eventType, func(ctx context.Context, payload interface{}) error {
			body, err := messaging.NewEnvelope(eventType.String(), payload, now())
			if err != nil {
				log.Warn().Err(err).Str(logging.EVENT, eventType.String()).Msg("⚠️ Could not encode event for broker")
				return nil
			}
			if err := broker.PublishEvent(ctx, eventType.String(), body); err != nil {
				log.Warn().Err(err).Str(logging.EVENT, eventType.String()).Msg("⚠️ Broker publish failed")
			}
			return nil
		}))
	}
	return unsubscribe
}
