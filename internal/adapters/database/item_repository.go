// Package database implements the bidding core's ports on PostgreSQL using
// pgx. Per-item mutual exclusion comes from a row lock on the item: every
// commit takes the item row FOR UPDATE, re-checks the leading value, and
// appends the bid, the leading-value update and the outbox event in one
// transaction.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/domain/auction"
	infradb "github.com/hammerstack/bidengine/internal/infra/database"
)

// PostgresItemCatalog implements auction.ItemCatalog.
type PostgresItemCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresItemCatalog creates a new PostgreSQL item catalog.
func NewPostgresItemCatalog(pool *pgxpool.Pool) *PostgresItemCatalog {
	return &PostgresItemCatalog{pool: pool}
}

// Item retrieves an item by its ID (non-transactional read).
func (r *PostgresItemCatalog) Item(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	return getItem(ctx, r.pool, itemID, false)
}

// CreateItem inserts an item. The catalog proper is owned by an external
// collaborator; this exists for seeding and tests.
func (r *PostgresItemCatalog) CreateItem(ctx context.Context, item *auction.Item) error {
	query := `
		INSERT INTO items (id, title, description, start_price, closes_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.StartPrice.String(),
		item.ClosesAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// getItem works with any DBTX; forUpdate locks the row for the duration of
// the surrounding transaction.
func getItem(ctx context.Context, db infradb.DBTX, itemID uuid.UUID, forUpdate bool) (*auction.Item, error) {
	query := `
		SELECT id, title, description, start_price::text, closes_at, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		item       auction.Item
		startPrice string
	)
	err := db.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&startPrice,
		&item.ClosesAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	item.StartPrice, err = decimal.NewFromString(startPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start price: %w", err)
	}
	return &item, nil
}
