// Package events carries committed bids out of the engine: a transactional
// outbox written in the same transaction as the bid, a polling relay, and a
// RabbitMQ publisher. The auto-bid cascade itself is synchronous and does not
// go through here; the outbox only feeds external consumers.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hammerstack/bidengine/internal/infra/database"
)

// EventTypeBidPlaced is the routing key for committed bids.
const EventTypeBidPlaced = "bid.placed"

// OutboxStatus is the processing state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is a domain event waiting to be published.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// BidPlaced is the JSON payload published for every committed bid, manual and
// automatic alike.
type BidPlaced struct {
	BidID       string    `json:"bid_id"`
	ItemID      string    `json:"item_id"`
	BidderID    string    `json:"bidder_id"`
	Value       string    `json:"value"`
	IsAutomatic bool      `json:"is_automatic"`
	PlacedAt    time.Time `json:"placed_at"`
}

// OutboxRepository is the persistence interface the relay polls.
type OutboxRepository interface {
	// GetPendingEvents fetches pending events with FOR UPDATE SKIP LOCKED so
	// concurrent relays never double-publish.
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
}

// Publisher publishes event payloads to a broker.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// OutboxRelay polls the outbox and publishes pending events.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  Publisher
	txManager  database.TransactionManager
	batchSize  int
	interval   time.Duration
	exchange   string
	logger     *slog.Logger
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher Publisher,
	txManager database.TransactionManager,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		batchSize:  batchSize,
		interval:   interval,
		exchange:   exchange,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("outbox batch failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	events, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	r.logger.Info("publishing outbox events", "count", len(events))

	for _, event := range events {
		// A publish failure rolls the whole batch back; the events stay
		// pending and are retried on the next tick.
		if err := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
		if err := r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusPublished); err != nil {
			return fmt.Errorf("failed to update event status %s: %w", event.ID, err)
		}
	}

	return tx.Commit(ctx)
}
