package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository"
	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
)

// Emitter records domain events in the outbox of the caller's transaction,
// so an event exists if and only if the change that produced it commits.
type Emitter interface {
	Emit(ctx context.Context, tx repository.Tx, eventType string, aggregateID uuid.UUID, payload interface{}) error
}

type EventService struct {
	log *logger.Logger
}

func NewEventService(log *logger.Logger) *EventService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventService{log: log}
}

func (s *EventService) Emit(ctx context.Context, tx repository.Tx, eventType string, aggregateID uuid.UUID, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payloadJSON,
	}

	if err := tx.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.log.Debug("event recorded", "event_id", event.ID.String(), "event_type", eventType, "aggregate_id", aggregateID.String())
	return nil
}
