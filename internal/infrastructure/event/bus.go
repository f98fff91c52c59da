package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// subscriptions is the handler lookup table for the in-memory bus.
// Handlers registered without event types are wildcard handlers and
// receive every published event.
type subscriptions struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		byType: make(map[string][]shared.EventHandler),
	}
}

func (s *subscriptions) add(handler shared.EventHandler, eventTypes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(eventTypes) == 0 {
		s.wildcard = append(s.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		s.byType[eventType] = append(s.byType[eventType], handler)
	}
}

func (s *subscriptions) remove(handler shared.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wildcard = withoutHandler(s.wildcard, handler)
	for eventType, handlers := range s.byType {
		s.byType[eventType] = withoutHandler(handlers, handler)
		if len(s.byType[eventType]) == 0 {
			delete(s.byType, eventType)
		}
	}
}

// handlersFor returns type-specific handlers followed by wildcard handlers.
func (s *subscriptions) handlersFor(eventType string) []shared.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typed := s.byType[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(s.wildcard))
	result = append(result, typed...)
	result = append(result, s.wildcard...)
	return result
}

func withoutHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := handlers[:0:0]
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}

// InMemoryEventBus dispatches domain events to subscribed handlers
// synchronously, in the goroutine that called Publish. A failing handler is
// logged and does not prevent the remaining handlers from running.
type InMemoryEventBus struct {
	subs    *subscriptions
	logger  *zap.Logger
	running atomic.Bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		subs:   newSubscriptions(),
		logger: logger,
	}
}

// Publish delivers each event to every handler subscribed to its type.
// Handler errors are logged but never propagated; publishing a domain event
// must not roll back the state change that produced it.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		for _, handler := range b.subs.handlersFor(evt.EventType()) {
			if err := b.dispatch(ctx, handler, evt); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", evt.EventType()),
					zap.String("event_id", evt.EventID().String()),
					zap.String("practice_id", evt.PracticeID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// PublishAggregateEvents publishes an aggregate's pending events and clears
// them afterward. Call after the aggregate has been persisted.
func (b *InMemoryEventBus) PublishAggregateEvents(ctx context.Context, aggregate shared.AggregateRoot) error {
	events := aggregate.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := b.Publish(ctx, events...); err != nil {
		return err
	}
	aggregate.ClearDomainEvents()
	return nil
}

// Subscribe registers a handler. When no event types are given, the
// handler's own EventTypes() decides what it receives.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.subs.add(handler, eventTypes)
	b.logger.Debug("event handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from all event types
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.subs.remove(handler)
	b.logger.Debug("event handler unsubscribed")
}

// Start marks the bus as running
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started")
	return nil
}

// Stop marks the bus as stopped. Dispatch is synchronous, so there is no
// in-flight work to drain.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.logger.Info("event bus stopped")
	return nil
}

// dispatch invokes a handler, converting a panic into an error so one
// misbehaving handler cannot take the publisher down.
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, evt)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
