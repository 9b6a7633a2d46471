package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrAlreadyReviewed = errors.New("product already reviewed by this user")

// StockDelta is a quantity change for one product.
type StockDelta struct {
	ProductID int64
	Quantity  int
}

// ProductFilter narrows ListProducts. Zero values mean no filter.
type ProductFilter struct {
	Keyword  string
	Category string
	Limit    int
	Offset   int
}

type RepoInterface interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListReviews(ctx context.Context, productID int64) ([]domain.Review, error)
	CreateReview(ctx context.Context, r *domain.Review) error
	AdjustStock(ctx context.Context, orderID, eventType string, deltas []StockDelta, sign int) (bool, error)
	Close() error
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; a single connection also keeps :memory: databases intact
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, name, description, brand, category, image_url, price,
	count_in_stock, rating, num_reviews, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Brand,
		&p.Category,
		&p.ImageURL,
		&p.Price,
		&p.CountInStock,
		&p.Rating,
		&p.NumReviews,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// ListProducts returns one page of products and the total number of matches.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	var (
		where []string
		args  []any
	)
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		where = append(where, "name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(kw)+"%")
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := "SELECT " + productColumns + " FROM products" + clause + " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return products, total, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE name = ? ORDER BY id LIMIT 1", name)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO products (name, description, brand, category, image_url, price, count_in_stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Brand, p.Category, p.ImageURL, p.Price.String(), p.CountInStock, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read product id: %w", err)
	}
	p.ID = id
	p.Rating = 0
	p.NumReviews = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProduct overwrites the editable fields. Rating and review count are left alone.
func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, brand = ?, category = ?, image_url = ?, price = ?, count_in_stock = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Brand, p.Category, p.ImageURL, p.Price.String(), p.CountInStock, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProductNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) ListReviews(ctx context.Context, productID int64) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, user_id, user_name, rating, comment, created_at
		FROM reviews WHERE product_id = ? ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reviews, nil
}

// CreateReview stores the review and recomputes the product's rating and review count
// in the same transaction.
func (r *Repository) CreateReview(ctx context.Context, rv *domain.Review) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)", rv.ProductID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return domain.ErrProductNotFound
	}

	now := r.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (product_id, user_id, user_name, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rv.ProductID, rv.UserID, rv.UserName, rv.Rating, rv.Comment, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read review id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET rating = (SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE product_id = ?),
		    num_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = ?),
		    updated_at = ?
		WHERE id = ?`,
		rv.ProductID, rv.ProductID, now, rv.ProductID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	rv.ID = id
	rv.CreatedAt = now
	return nil
}

// AdjustStock applies deltas once per (orderID, eventType). sign is -1 to take stock
// and +1 to put it back. Stock never drops below zero. It reports whether the
// adjustment was applied now, false meaning it had already been recorded.
func (r *Repository) AdjustStock(ctx context.Context, orderID, eventType string, deltas []StockDelta, sign int) (bool, error) {
	if sign != 1 && sign != -1 {
		return false, fmt.Errorf("invalid stock adjustment sign %d", sign)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_adjustments (order_id, event_type, applied_at) VALUES (?, ?, ?)
		ON CONFLICT (order_id, event_type) DO NOTHING`, orderID, eventType, now)
	if err != nil {
		return false, fmt.Errorf("failed to record stock adjustment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, d := range deltas {
		if d.Quantity <= 0 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE products SET count_in_stock = MAX(count_in_stock + ?, 0), updated_at = ?
			WHERE id = ?`, sign*d.Quantity, now, d.ProductID)
		if err != nil {
			return false, fmt.Errorf("failed to adjust stock for product %d: %w", d.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return true, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
