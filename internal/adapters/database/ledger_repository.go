package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/adapters/events"
	"github.com/hammerstack/bidengine/internal/domain/auction"
	infradb "github.com/hammerstack/bidengine/internal/infra/database"
)

// PostgresBidLedger implements auction.BidLedger. Each commit runs in its own
// transaction: lock the item row, compare the stored leading value against
// the caller's expectation, insert the bid, bump the item's leading columns
// and enqueue the bid.placed outbox event.
type PostgresBidLedger struct {
	pool       *pgxpool.Pool
	txManager  infradb.TransactionManager
	outboxRepo *PostgresOutboxRepository
}

// NewPostgresBidLedger creates a new PostgreSQL bid ledger.
func NewPostgresBidLedger(pool *pgxpool.Pool, txManager infradb.TransactionManager, outboxRepo *PostgresOutboxRepository) *PostgresBidLedger {
	return &PostgresBidLedger{
		pool:       pool,
		txManager:  txManager,
		outboxRepo: outboxRepo,
	}
}

// LeadingBid returns the most recently committed bid for the item, or
// (nil, nil) when none exists.
func (r *PostgresBidLedger) LeadingBid(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, value::text, is_automatic, created_at
		FROM bids
		WHERE item_id = $1
		ORDER BY created_at DESC, value DESC
		LIMIT 1
	`
	bid, err := scanBid(r.pool.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get leading bid: %w", err)
	}
	return bid, nil
}

// CommitBid appends the bid if the item's leading value still equals
// expectedLeading.
func (r *PostgresBidLedger) CommitBid(ctx context.Context, bid *auction.Bid, expectedLeading decimal.Decimal) (*auction.Bid, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Row lock on the item serializes all commits for it.
	var current string
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(current_leading_value, 0)::text
		FROM items
		WHERE id = $1
		FOR UPDATE
	`, bid.ItemID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}

	currentValue, err := decimal.NewFromString(current)
	if err != nil {
		return nil, fmt.Errorf("failed to parse leading value: %w", err)
	}
	if !currentValue.Equal(expectedLeading) {
		return nil, auction.ErrStaleRead
	}

	committed := *bid
	committed.CreatedAt = time.Now()

	_, err = tx.Exec(ctx, `
		INSERT INTO bids (id, item_id, bidder_id, value, is_automatic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, committed.ID, committed.ItemID, committed.BidderID, committed.Value.String(), committed.IsAutomatic, committed.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bid: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE items
		SET current_leading_value = $1, current_leading_bidder = $2, updated_at = NOW()
		WHERE id = $3
	`, committed.Value.String(), committed.BidderID, committed.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to update leading bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, auction.ErrItemNotFound
	}

	payload, err := json.Marshal(events.BidPlaced{
		BidID:       committed.ID.String(),
		ItemID:      committed.ItemID.String(),
		BidderID:    committed.BidderID,
		Value:       committed.Value.String(),
		IsAutomatic: committed.IsAutomatic,
		PlacedAt:    committed.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.EventTypeBidPlaced,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: committed.CreatedAt,
	}
	if err := r.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &committed, nil
}

// BidsForItem returns every committed bid for the item in commit order.
func (r *PostgresBidLedger) BidsForItem(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, value::text, is_automatic, created_at
		FROM bids
		WHERE item_id = $1
		ORDER BY created_at ASC, value ASC
	`
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*auction.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}

func scanBid(row pgx.Row) (*auction.Bid, error) {
	var (
		bid   auction.Bid
		value string
	)
	err := row.Scan(
		&bid.ID,
		&bid.ItemID,
		&bid.BidderID,
		&value,
		&bid.IsAutomatic,
		&bid.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	bid.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bid value: %w", err)
	}
	return &bid, nil
}
