package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"stock-service/internal/models"
	"stock-service/internal/service"

	"github.com/segmentio/kafka-go"
)

var _ service.ReorderPublisher = (*EventPublisher)(nil)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishReorderAlert publishes a reorder-threshold event, keyed by item so
// alerts for one item stay ordered.
func (ep *EventPublisher) PublishReorderAlert(ctx context.Context, event *models.ReorderEvent) error {
	key := fmt.Sprintf("item-%d", event.ItemID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onReorderAlert func(context.Context, *models.ReorderEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnReorderAlert registers a handler for ReorderAlert events
func (eh *EventHandler) OnReorderAlert(handler func(context.Context, *models.ReorderEvent) error) {
	eh.onReorderAlert = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeReorderAlert:
		if eh.onReorderAlert != nil {
			var event models.ReorderEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReorderAlert event: %w", err)
			}
			return eh.onReorderAlert(ctx, &event)
		}
	}

	return nil
}
