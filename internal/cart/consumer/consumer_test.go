package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClearer struct {
	cleared []string
	err     error
}

func (m *mockClearer) ClearCart(_ context.Context, userID string) error {
	m.cleared = append(m.cleared, userID)
	return m.err
}

func TestClearOnOrderPlaced(t *testing.T) {
	carts := &mockClearer{}
	h := NewClearOnOrderPlaced(carts, nil)

	require.NoError(t, h.Handle(context.Background(), domain.EventOrderPlaced, domain.OrderEvent{OrderID: "o1", UserID: "u1"}))
	require.NoError(t, h.Handle(context.Background(), domain.EventOrderCancelled, domain.OrderEvent{OrderID: "o1", UserID: "u1"}))
	require.NoError(t, h.Handle(context.Background(), domain.EventOrderPlaced, domain.OrderEvent{OrderID: "o2"}))

	assert.Equal(t, []string{"u1"}, carts.cleared)
}

func TestClearOnOrderPlaced_PropagatesError(t *testing.T) {
	carts := &mockClearer{err: errors.New("mongo down")}
	h := NewClearOnOrderPlaced(carts, nil)

	err := h.Handle(context.Background(), domain.EventOrderPlaced, domain.OrderEvent{OrderID: "o1", UserID: "u1"})
	assert.Error(t, err)
}
