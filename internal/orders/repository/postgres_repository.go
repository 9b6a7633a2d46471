package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	sslMode := cred.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName,
		sslMode)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, user_id, customer_email, idempotency_key, shipping_address, line_items,
	items_total, tax, shipping, grand_total, currency, payment_mode, payment_status, order_status,
	payment_intent_id, created_at, updated_at, paid_at, shipped_at, delivered_at, cancelled_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o            domain.Order
		idemKey      sql.NullString
		intentID     sql.NullString
		addressJSON  []byte
		lineItemJSON []byte
	)
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerEmail,
		&idemKey,
		&addressJSON,
		&lineItemJSON,
		&o.ItemsTotal,
		&o.Tax,
		&o.Shipping,
		&o.GrandTotal,
		&o.Currency,
		&o.PaymentMode,
		&o.PaymentStatus,
		&o.OrderStatus,
		&intentID,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.PaidAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	o.IdempotencyKey = idemKey.String
	o.PaymentIntentID = intentID.String

	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(lineItemJSON, &o.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	return &o, nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, event *OutboxEvent) error {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal line items: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, user_id, customer_email, idempotency_key, shipping_address, line_items,
	              items_total, tax, shipping, grand_total, currency, payment_mode, payment_status, order_status,
	              payment_intent_id, created_at, updated_at, paid_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16, $17)`

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.CustomerEmail,
		nullString(order.IdempotencyKey),
		addressJSON,
		itemsJSON,
		order.ItemsTotal,
		order.Tax,
		order.Shipping,
		order.GrandTotal,
		order.Currency,
		order.PaymentMode,
		order.PaymentStatus,
		order.OrderStatus,
		nullString(order.PaymentIntentID),
		order.CreatedAt,
		order.PaidAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	order.UpdatedAt = order.CreatedAt
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return o, nil
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}
	return o, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID)
}

func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var total int
	var status any
	if filter.Status != "" {
		status = string(filter.Status)
	}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1::text IS NULL OR order_status = $1)`, status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE ($1::text IS NULL OR order_status = $1)
	          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	orders, err := r.queryOrders(ctx, query, status, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *Repository) ListStalePendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE order_status = $1 AND created_at < $2
	          ORDER BY created_at LIMIT $3`
	return r.queryOrders(ctx, query, domain.OrderStatusPendingPayment, createdBefore, limit)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1`, id, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus, event *OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE orders
	          SET order_status = $3, payment_status = $4, paid_at = $5, shipped_at = $6,
	              delivered_at = $7, cancelled_at = $8, updated_at = $9
	          WHERE id = $1 AND order_status = $2`

	res, err := tx.ExecContext(ctx, query,
		order.ID,
		expected,
		order.OrderStatus,
		order.PaymentStatus,
		order.PaidAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		return ErrStatusConflict
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order status: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event *OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.AggregateID, event.EventType, event.Payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events WHERE processed_at IS NULL
		ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
