package event

import (
	"context"
	"sync/atomic"

	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics counts the outcomes of idempotency-checked deliveries
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// Stats returns a snapshot of the counters
func (m *IdempotencyMetrics) Stats() map[string]int64 {
	return map[string]int64{
		"events_processed": m.EventsProcessed.Load(),
		"events_duplicate": m.EventsDuplicate.Load(),
		"events_failed":    m.EventsFailed.Load(),
	}
}

// IdempotentHandler wraps an event handler with duplicate-delivery
// protection. Stripe redelivers webhook events until acknowledged, and the
// same event can arrive on several instances at once; marking the event ID
// before handling makes sure only one delivery mutates state.
//
// Two failure policies are deliberate:
//   - If the store itself errors, the event is processed anyway. Losing a
//     payment confirmation is worse than applying it twice, and the domain
//     layer tolerates replays (duplicate payment references are no-ops).
//   - If the wrapped handler fails, the idempotency key is kept. The TTL
//     then acts as a retry cooldown for the next Stripe redelivery.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default idempotency configuration
func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = cfg
	}
}

// WithIdempotencyMetrics attaches a shared metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler wraps a handler with idempotency checking
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes the event at most once per idempotency TTL
func (h *IdempotentHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, evt)
	}

	eventID := evt.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, eventID, h.config.TTL)
	if err != nil {
		h.logger.Warn("idempotency store unavailable, processing event anyway",
			zap.String("event_id", eventID),
			zap.String("event_type", evt.EventType()),
			zap.Error(err),
		)
		return h.handler.Handle(ctx, evt)
	}

	if !isNew {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("skipping duplicate event delivery",
			zap.String("event_id", eventID),
			zap.String("event_type", evt.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, evt); err != nil {
		h.metrics.EventsFailed.Add(1)
		// The key stays marked; the TTL doubles as a retry cooldown.
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Metrics returns the handler's metrics collector
func (h *IdempotentHandler) Metrics() *IdempotencyMetrics {
	return h.metrics
}

// WrapHandlersWithIdempotency wraps a set of handlers with a shared store
// and metrics collector
func WrapHandlersWithIdempotency(handlers []shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) []shared.EventHandler {
	wrapped := make([]shared.EventHandler, 0, len(handlers))
	for _, handler := range handlers {
		wrapped = append(wrapped, NewIdempotentHandler(handler, store, logger, opts...))
	}
	return wrapped
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
