package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// failingStore simulates an unavailable idempotency store
type failingStore struct{}

func (s *failingStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (s *failingStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return false, errors.New("connection refused")
}

func (s *failingStore) Close() error { return nil }

func TestIdempotentHandler_SkipsDuplicateDelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := &recordingHandler{eventTypes: []string{"invoice.paid"}}
	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	evt := newTestEvent("invoice.paid")

	require.NoError(t, handler.Handle(context.Background(), evt))
	require.NoError(t, handler.Handle(context.Background(), evt))

	assert.Equal(t, 1, inner.receivedCount())
	assert.Equal(t, int64(1), handler.Metrics().EventsProcessed.Load())
	assert.Equal(t, int64(1), handler.Metrics().EventsDuplicate.Load())
}

func TestIdempotentHandler_DistinctEventsBothProcessed(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := &recordingHandler{}
	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, handler.Handle(context.Background(), newTestEvent("invoice.paid")))
	require.NoError(t, handler.Handle(context.Background(), newTestEvent("invoice.paid")))

	assert.Equal(t, 2, inner.receivedCount())
}

func TestIdempotentHandler_ProcessesAnywayWhenStoreFails(t *testing.T) {
	inner := &recordingHandler{}
	handler := NewIdempotentHandler(inner, &failingStore{}, zap.NewNop())

	err := handler.Handle(context.Background(), newTestEvent("invoice.paid"))

	require.NoError(t, err)
	assert.Equal(t, 1, inner.receivedCount())
}

func TestIdempotentHandler_KeepsKeyAfterHandlerFailure(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := &recordingHandler{err: errors.New("downstream unavailable")}
	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	evt := newTestEvent("invoice.paid")

	err := handler.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Equal(t, int64(1), handler.Metrics().EventsFailed.Load())

	// Redelivery within the TTL is suppressed; the TTL is the retry cooldown.
	err = handler.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.receivedCount())
	assert.Equal(t, int64(1), handler.Metrics().EventsDuplicate.Load())
}

func TestIdempotentHandler_DisabledPassesThrough(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := &recordingHandler{}
	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))

	evt := newTestEvent("invoice.paid")

	require.NoError(t, handler.Handle(context.Background(), evt))
	require.NoError(t, handler.Handle(context.Background(), evt))

	assert.Equal(t, 2, inner.receivedCount())
}

func TestWrapHandlersWithIdempotency(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	metrics := &IdempotencyMetrics{}
	handlers := []shared.EventHandler{
		&recordingHandler{eventTypes: []string{"invoice.paid"}},
		&recordingHandler{eventTypes: []string{"subscription.synced"}},
	}

	wrapped := WrapHandlersWithIdempotency(handlers, store, zap.NewNop(),
		WithIdempotencyMetrics(metrics))

	require.Len(t, wrapped, 2)
	assert.Equal(t, []string{"invoice.paid"}, wrapped[0].EventTypes())

	require.NoError(t, wrapped[0].Handle(context.Background(), newTestEvent("invoice.paid")))
	assert.Equal(t, int64(1), metrics.EventsProcessed.Load())
}
