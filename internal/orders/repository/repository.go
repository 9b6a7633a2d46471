package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrDuplicateIdempotencyKey = errors.New("order with this idempotency key already exists")
	// ErrStatusConflict means the order left the expected status before the update landed.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

// OutboxEvent is written in the same transaction as the order change it describes.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type ListFilter struct {
	Status domain.OrderStatus
	Limit  int
	Offset int
}

type OrderRepository interface {
	// CreateOrder inserts the order and, when event is not nil, its outbox event.
	CreateOrder(ctx context.Context, order *domain.Order, event *OutboxEvent) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, int, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	// UpdateStatus writes the status and payment fields of order only if its stored
	// order_status still equals expected.
	UpdateStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus, event *OutboxEvent) error
	ListStalePendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error

	RunMigrations(*Credentials) error
	Close() error
}
