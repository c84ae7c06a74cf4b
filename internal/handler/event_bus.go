// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"label-service/internal/model"
)

// EventBus fans job events out to subscribers. Publishing never blocks the
// print path: events are dropped when the bus or a subscriber is full.
type EventBus struct {
	subscribers []chan model.PrintEvent
	events      chan model.PrintEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		events: make(chan model.PrintEvent, 1000),
		logger: logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until ctx is done
func (eb *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// PublishPrintEvent publishes a job event
func (eb *EventBus) PublishPrintEvent(event model.PrintEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("job_id", event.JobID.String()),
		)
	}
}

// Subscribe returns a channel receiving every event
func (eb *EventBus) Subscribe() <-chan model.PrintEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.PrintEvent, 100)
	eb.subscribers = append(eb.subscribers, subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.PrintEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
