package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"medtrack-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing insight domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSyncRequested publishes SyncRequested event
func (ep *EventPublisher) PublishSyncRequested(ctx context.Context, event *models.SyncRequestedEvent) error {
	key := fmt.Sprintf("user-%s", event.ExternalUserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSyncCompleted publishes SyncCompleted event
func (ep *EventPublisher) PublishSyncCompleted(ctx context.Context, event *models.SyncCompletedEvent) error {
	key := fmt.Sprintf("user-%s", event.ExternalUserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishAlertRaised publishes AlertRaised event
func (ep *EventPublisher) PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error {
	key := fmt.Sprintf("user-%s", event.ExternalUserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSyncRequested func(context.Context, *models.SyncRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnSyncRequested registers a handler for SyncRequested events
func (eh *EventHandler) OnSyncRequested(handler func(context.Context, *models.SyncRequestedEvent) error) {
	eh.onSyncRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeSyncRequested:
		if eh.onSyncRequested != nil {
			var event models.SyncRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SyncRequested event: %w", err)
			}
			return eh.onSyncRequested(ctx, &event)
		}

	case models.EventTypeSyncCompleted, models.EventTypeAlertRaised:
		// Produced by this service; nothing to consume.

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
