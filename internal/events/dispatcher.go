package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher decouples event publication from handling. Handlers run
// asynchronously and may see the same event more than once.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	// Run delivers events to subscribers until ctx is cancelled.
	Run(ctx context.Context) error
}

// ErrQueueFull is returned by the in-memory dispatcher when its buffer is full.
var ErrQueueFull = errors.New("event queue full")

// inMemoryDispatcher delivers events on background goroutines. Events
// buffered but not yet delivered are lost on shutdown.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	logger    *zap.Logger
	inflight  sync.WaitGroup
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(logger *zap.Logger, buffer int) Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, buffer),
		logger:    logger,
	}
}

// Publish enqueues the event without waiting for handlers.
func (d *inMemoryDispatcher) Publish(_ context.Context, event Event) error {
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Run starts one goroutine per event and waits for in-flight handlers on exit.
func (d *inMemoryDispatcher) Run(ctx context.Context) error {
	defer d.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-d.queue:
			d.inflight.Add(1)
			go func() {
				defer d.inflight.Done()
				deliver(ctx, d.logger, d.handlersFor(event.Type), event)
			}()
		}
	}
}

func (d *inMemoryDispatcher) handlersFor(eventType EventType) []EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]EventHandler{}, d.listeners[eventType]...)
}

// deliver invokes every handler; one failing handler does not stop the rest.
func deliver(ctx context.Context, logger *zap.Logger, handlers []EventHandler, event Event) {
	if len(handlers) == 0 {
		logger.Debug("no handlers for event", zap.String("event_type", string(event.Type)))
		return
	}
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}
