package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestOrderRepository(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("create and fetch round trip", func(t *testing.T) {
		order := sampleOrder()
		order.IdempotencyKey = "key-1"
		event := &OutboxEvent{AggregateID: order.ID.String(), EventType: domain.EventOrderPlaced, Payload: []byte(`{"order_id":"x"}`)}

		require.NoError(t, repo.CreateOrder(ctx, order, event))

		fetched, err := repo.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.UserID, fetched.UserID)
		assert.Equal(t, order.ShippingAddress, fetched.ShippingAddress)
		require.Len(t, fetched.LineItems, 1)
		assert.True(t, order.LineItems[0].UnitPrice.Equal(fetched.LineItems[0].UnitPrice))
		assert.True(t, order.GrandTotal.Equal(fetched.GrandTotal))
		assert.Equal(t, domain.OrderStatusProcessing, fetched.OrderStatus)
		assert.Nil(t, fetched.PaidAt)

		byKey, err := repo.GetOrderByIdempotencyKey(ctx, order.UserID, "key-1")
		require.NoError(t, err)
		assert.Equal(t, order.ID, byKey.ID)

		events, err := repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventOrderPlaced, events[0].EventType)

		require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
		events, err = repo.GetUnprocessedEvents(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("idempotency key is unique per user", func(t *testing.T) {
		first := sampleOrder()
		first.IdempotencyKey = "key-dup"
		require.NoError(t, repo.CreateOrder(ctx, first, nil))

		second := sampleOrder()
		second.IdempotencyKey = "key-dup"
		assert.ErrorIs(t, repo.CreateOrder(ctx, second, nil), ErrDuplicateIdempotencyKey)

		other := sampleOrder()
		other.UserID = "user-2"
		other.IdempotencyKey = "key-dup"
		assert.NoError(t, repo.CreateOrder(ctx, other, nil))
	})

	t.Run("orders without key do not collide", func(t *testing.T) {
		assert.NoError(t, repo.CreateOrder(ctx, sampleOrder(), nil))
		assert.NoError(t, repo.CreateOrder(ctx, sampleOrder(), nil))
	})

	t.Run("conditional status update", func(t *testing.T) {
		order := sampleOrder()
		require.NoError(t, repo.CreateOrder(ctx, order, nil))

		now := time.Now().UTC()
		order.OrderStatus = domain.OrderStatusShipped
		order.ShippedAt = &now
		order.UpdatedAt = now
		require.NoError(t, repo.UpdateStatus(ctx, order, domain.OrderStatusProcessing, nil))

		// second writer still believes the order is processing
		order.OrderStatus = domain.OrderStatusCancelled
		assert.ErrorIs(t, repo.UpdateStatus(ctx, order, domain.OrderStatusProcessing, nil), ErrStatusConflict)

		fetched, err := repo.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, fetched.OrderStatus)
		require.NotNil(t, fetched.ShippedAt)
	})

	t.Run("stale pending payments", func(t *testing.T) {
		stale := sampleOrder()
		stale.UserID = "user-stale"
		stale.PaymentMode = domain.PaymentModeOnline
		stale.OrderStatus = domain.OrderStatusPendingPayment
		stale.CreatedAt = time.Now().Add(-2 * time.Hour).UTC()
		require.NoError(t, repo.CreateOrder(ctx, stale, nil))
		require.NoError(t, repo.SetPaymentIntent(ctx, stale.ID, "pi_stale"))

		fresh := sampleOrder()
		fresh.PaymentMode = domain.PaymentModeOnline
		fresh.OrderStatus = domain.OrderStatusPendingPayment
		require.NoError(t, repo.CreateOrder(ctx, fresh, nil))

		orders, err := repo.ListStalePendingPayments(ctx, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, stale.ID, orders[0].ID)
		assert.Equal(t, "pi_stale", orders[0].PaymentIntentID)
	})

	t.Run("list by user and by status", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			o := sampleOrder()
			o.UserID = "user-list"
			o.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute).UTC()
			require.NoError(t, repo.CreateOrder(ctx, o, nil))
		}

		mine, err := repo.ListOrdersByUser(ctx, "user-list")
		require.NoError(t, err)
		require.Len(t, mine, 3)
		assert.True(t, mine[0].CreatedAt.After(mine[2].CreatedAt))

		none, err := repo.ListOrdersByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)

		pending, total, err := repo.ListOrders(ctx, ListFilter{Status: domain.OrderStatusPendingPayment})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, pending, 2)

		page, total, err := repo.ListOrders(ctx, ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Greater(t, total, 2)
		assert.Len(t, page, 2)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := repo.GetOrder(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
