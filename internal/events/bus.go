// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrBusClosed is returned by Publish once Shutdown has been called.
	ErrBusClosed = errors.New("event bus is shut down")
	// ErrBusFull is returned when the queue is full; the event is dropped.
	ErrBusFull = errors.New("event queue full")
)

// Bus delivers committed pool events to subscribers. Events are queued by
// Publish and delivered one at a time from a single goroutine, so every
// handler observes the events of a pool in commit order. Handlers of one
// type run in subscription order, wildcard handlers after them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscribedHandler
	logger   *zap.Logger

	queue   chan Event
	closing chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

type subscribedHandler struct {
	id      string
	handler Handler
}

// BusStats is a snapshot of the bus counters.
type BusStats struct {
	BufferSize int               `json:"buffer_size"`
	Pending    int               `json:"pending"`
	Delivered  uint64            `json:"delivered"`
	Dropped    uint64            `json:"dropped"`
	Failed     uint64            `json:"failed"` // deliveries where at least one handler failed
	Handlers   map[EventType]int `json:"handlers"`
}

// NewBus starts the delivery goroutine. bufferSize bounds the queue.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	b := &Bus{
		handlers: make(map[EventType][]subscribedHandler),
		logger:   logger.Named("event_bus"),
		queue:    make(chan Event, bufferSize),
		closing:  make(chan struct{}),
	}

	b.wg.Add(1)
	go b.deliverLoop()

	return b
}

// Subscribe registers handler for eventType, or for every type with AllEvents.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.handlers[eventType] = append(b.handlers[eventType], subscribedHandler{id: id, handler: handler})

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues event without blocking the committing request. A full
// queue drops the event and counts it.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.closing:
		return ErrBusClosed
	default:
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event queue full, dropping event",
			zap.String("event_type", string(event.Type())),
			zap.String("pool", event.PoolAddress().String()))
		return ErrBusFull
	}
}

// PublishSync runs every matching handler on the caller's goroutine and
// joins their errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	matched := make([]subscribedHandler, 0, len(b.handlers[event.Type()])+len(b.handlers[AllEvents]))
	matched = append(matched, b.handlers[event.Type()]...)
	if event.Type() != AllEvents {
		matched = append(matched, b.handlers[AllEvents]...)
	}
	b.mu.RUnlock()

	var errs []error
	for _, sh := range matched {
		if err := sh.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("pool", event.PoolAddress().String()),
				zap.String("handler_id", sh.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	b.delivered.Add(1)
	if len(errs) > 0 {
		b.failed.Add(1)
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

func (b *Bus) deliverLoop() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.queue:
			_ = b.PublishSync(context.Background(), event)
		case <-b.closing:
			// дочищаем очередь: события уже закоммичены
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hs := b.handlers[eventType]
	for i, sh := range hs {
		if sh.id == id {
			b.handlers[eventType] = append(hs[:i:i], hs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops accepting events and waits until the queued ones are
// delivered or ctx expires. It is safe to call more than once.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.once.Do(func() {
		b.logger.Info("Shutting down event bus", zap.Int("pending", len(b.queue)))
		close(b.closing)
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus shutdown complete",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make(map[EventType]int, len(b.handlers))
	for typ, hs := range b.handlers {
		handlers[typ] = len(hs)
	}
	return BusStats{
		BufferSize: cap(b.queue),
		Pending:    len(b.queue),
		Delivered:  b.delivered.Load(),
		Dropped:    b.dropped.Load(),
		Failed:     b.failed.Load(),
		Handlers:   handlers,
	}
}
