package repository

import (
	"context"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/mongostore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestDB(t *testing.T) (*MongoRepository, func()) {
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := mongostore.ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func lamp(qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: 1,
		Name:      "Desk Lamp",
		UnitPrice: decimal.RequireFromString("19.99"),
		Quantity:  qty,
	}
}

func TestGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddItem_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", lamp(3)))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", cart.UserID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "19.99", cart.Items[0].UnitPrice.String())
	assert.False(t, cart.CreatedAt.IsZero())
}

func TestAddItem_ExistingItem_ReplacesLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", lamp(1)))

	repriced := lamp(4)
	repriced.UnitPrice = decimal.RequireFromString("17.50")
	require.NoError(t, repo.AddItem(ctx, "user123", repriced))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, "17.5", cart.Items[0].UnitPrice.String())
}

func TestAddItem_SecondProductAppends(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", lamp(1)))
	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{
		ProductID: 2, Name: "Chair", UnitPrice: decimal.NewFromInt(80), Quantity: 1,
	}))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestUpdateItemQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", lamp(1)))
	require.NoError(t, repo.UpdateItemQuantity(ctx, "user123", 1, 7))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Items[0].Quantity)

	err = repo.UpdateItemQuantity(ctx, "user123", 999, 2)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem_LastItemLeavesEmptyCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", lamp(2)))
	require.NoError(t, repo.RemoveItem(ctx, "user123", 1))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)

	assert.ErrorIs(t, repo.RemoveItem(ctx, "user123", 1), ErrItemNotFound)
}

func TestClearCart_KeepsDocument(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	assert.ErrorIs(t, repo.ClearCart(ctx, "user123"), ErrCartNotFound)

	require.NoError(t, repo.AddItem(ctx, "user123", lamp(2)))
	require.NoError(t, repo.ClearCart(ctx, "user123"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	// a cleared cart accepts new items
	require.NoError(t, repo.AddItem(ctx, "user123", lamp(1)))
	cart, err = repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestCreateIndexes_CartsDoNotExpire(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cursor, err := repo.collection.Indexes().List(ctx)
	require.NoError(t, err)
	var indexes []bson.M
	require.NoError(t, cursor.All(ctx, &indexes))

	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx["name"].(string))
		assert.NotContains(t, idx, "expireAfterSeconds", "index %v", idx["name"])
	}
	assert.Contains(t, names, "user_id_1")
}
