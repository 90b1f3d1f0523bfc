package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/domain/auction"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint hits.
const pgUniqueViolation = "23505"

// PostgresAutoBidRegistry implements auction.AutoBidRegistry. The
// one-agent-per-(bidder, item) invariant is a unique constraint on
// (item_id, bidder_id).
type PostgresAutoBidRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresAutoBidRegistry creates a new PostgreSQL auto-bid registry.
func NewPostgresAutoBidRegistry(pool *pgxpool.Pool) *PostgresAutoBidRegistry {
	return &PostgresAutoBidRegistry{pool: pool}
}

// ActiveAgents returns the active agents for the item excluding excludeBidder,
// ordered by creation time.
func (r *PostgresAutoBidRegistry) ActiveAgents(ctx context.Context, itemID uuid.UUID, excludeBidder string) ([]*auction.AutoBidAgent, error) {
	query := `
		SELECT id, item_id, bidder_id, ceiling::text, active, created_at, updated_at
		FROM autobid_agents
		WHERE item_id = $1 AND bidder_id <> $2 AND active
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, itemID, excludeBidder)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var result []*auction.AutoBidAgent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		result = append(result, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return result, nil
}

// AgentFor returns the agent for (bidder, item), or (nil, nil) when none
// exists.
func (r *PostgresAutoBidRegistry) AgentFor(ctx context.Context, bidderID string, itemID uuid.UUID) (*auction.AutoBidAgent, error) {
	query := `
		SELECT id, item_id, bidder_id, ceiling::text, active, created_at, updated_at
		FROM autobid_agents
		WHERE item_id = $1 AND bidder_id = $2
	`
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, itemID, bidderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// Create inserts a new agent, translating the unique-constraint violation
// into ErrDuplicateAgent.
func (r *PostgresAutoBidRegistry) Create(ctx context.Context, agent *auction.AutoBidAgent) error {
	query := `
		INSERT INTO autobid_agents (id, item_id, bidder_id, ceiling, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.ItemID,
		agent.BidderID,
		agent.Ceiling.String(),
		agent.Active,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return auction.ErrDuplicateAgent
		}
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

// Update replaces the ceiling and active flag of an existing agent.
func (r *PostgresAutoBidRegistry) Update(ctx context.Context, agent *auction.AutoBidAgent) error {
	query := `
		UPDATE autobid_agents
		SET ceiling = $1, active = $2, updated_at = $3
		WHERE item_id = $4 AND bidder_id = $5
	`
	tag, err := r.pool.Exec(ctx, query,
		agent.Ceiling.String(),
		agent.Active,
		agent.UpdatedAt,
		agent.ItemID,
		agent.BidderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auction.ErrAgentNotFound
	}
	return nil
}

// Deactivate marks the agent for (bidder, item) inactive.
func (r *PostgresAutoBidRegistry) Deactivate(ctx context.Context, bidderID string, itemID uuid.UUID) error {
	query := `
		UPDATE autobid_agents
		SET active = FALSE, updated_at = NOW()
		WHERE item_id = $1 AND bidder_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, itemID, bidderID)
	if err != nil {
		return fmt.Errorf("failed to deactivate agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auction.ErrAgentNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*auction.AutoBidAgent, error) {
	var (
		agent   auction.AutoBidAgent
		ceiling string
	)
	err := row.Scan(
		&agent.ID,
		&agent.ItemID,
		&agent.BidderID,
		&ceiling,
		&agent.Active,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	agent.Ceiling, err = decimal.NewFromString(ceiling)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ceiling: %w", err)
	}
	return &agent, nil
}
