package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config tunes the bidding engine. Zero values are replaced by defaults in
// NewService.
type Config struct {
	// MinIncrement is the fixed step an auto-bid agent bids above the bid it
	// is countering.
	MinIncrement decimal.Decimal

	// MaxCascadeDepth caps the number of automatic counter-bids one external
	// bid may trigger. Exceeding it is ErrCascadeLimitExceeded.
	MaxCascadeDepth int

	// MaxCommitRetries bounds the validate-commit retries on ErrStaleRead
	// before PlaceBid fails with ErrContention.
	MaxCommitRetries int

	// AgentSelection picks the responding agent when several are active.
	AgentSelection AgentSelection
}

// DefaultConfig returns the production defaults: increment 1, cascade depth
// 50, 5 commit retries, highest ceiling wins.
func DefaultConfig() Config {
	return Config{
		MinIncrement:     decimal.NewFromInt(1),
		MaxCascadeDepth:  50,
		MaxCommitRetries: 5,
		AgentSelection:   SelectHighestCeiling,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinIncrement.Sign() <= 0 {
		c.MinIncrement = d.MinIncrement
	}
	if c.MaxCascadeDepth <= 0 {
		c.MaxCascadeDepth = d.MaxCascadeDepth
	}
	if c.MaxCommitRetries <= 0 {
		c.MaxCommitRetries = d.MaxCommitRetries
	}
	if c.AgentSelection == "" {
		c.AgentSelection = d.AgentSelection
	}
	return c
}

// PlaceBidCommand carries one external bid request.
type PlaceBidCommand struct {
	ItemID   uuid.UUID
	BidderID string
	Value    decimal.Decimal
}

// RegisterAgentCommand opts a bidder into auto-bidding for an item.
type RegisterAgentCommand struct {
	ItemID   uuid.UUID
	BidderID string
	Ceiling  decimal.Decimal
}

// UpdateAgentCommand changes the ceiling or active flag of an existing agent.
type UpdateAgentCommand struct {
	ItemID   uuid.UUID
	BidderID string
	Ceiling  decimal.Decimal
	Active   bool
}

// Service is the single entry point collaborators call to place bids and
// manage auto-bid agents. All collaborators are injected; the service holds no
// global state.
type Service struct {
	catalog   ItemCatalog
	ledger    BidLedger
	registry  AutoBidRegistry
	validator *Validator
	cascade   *CascadeEngine
	cfg       Config
	logger    *slog.Logger
}

// NewService wires the bidding core together.
func NewService(catalog ItemCatalog, ledger BidLedger, registry AutoBidRegistry, cfg Config, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:   catalog,
		ledger:    ledger,
		registry:  registry,
		validator: NewValidator(),
		cascade:   NewCascadeEngine(registry, cfg.AgentSelection, cfg.MinIncrement),
		cfg:       cfg,
		logger:    logger,
	}
}

// PlaceBid validates and commits a human bid, then runs the auto-bid cascade
// synchronously until no agent responds or a ceiling is hit. The returned
// result carries the triggering bid plus every cascade bid in commit order.
//
// A bid that has been linearized into the ledger is never undone: when the
// cascade hits the depth cap, PlaceBid returns the partial result together
// with ErrCascadeLimitExceeded.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*BidResult, error) {
	trigger, err := s.commitWithRetry(ctx, cmd.ItemID, cmd.BidderID, cmd.Value, false)
	if err != nil {
		return nil, err
	}

	result := &BidResult{Bid: trigger}
	last := trigger
	for depth := 0; ; depth++ {
		if depth >= s.cfg.MaxCascadeDepth {
			s.logger.Error("cascade depth limit hit",
				"item_id", cmd.ItemID, "depth", depth)
			return result, ErrCascadeLimitExceeded
		}

		agent, value, err := s.cascade.CounterBid(ctx, last)
		if err != nil {
			return result, fmt.Errorf("cascade evaluation: %w", err)
		}
		if agent == nil {
			return result, nil
		}

		auto, err := s.commitWithRetry(ctx, last.ItemID, agent.BidderID, value, true)
		if err != nil {
			// A concurrent bid can outrun the counter between cascade steps;
			// the losing counter just stops here, the concurrent bid runs its
			// own cascade.
			if errors.Is(err, ErrValueTooLow) || errors.Is(err, ErrDuplicateLeadingBidder) || errors.Is(err, ErrAuctionClosed) {
				s.logger.Debug("cascade stopped by concurrent commit",
					"item_id", cmd.ItemID, "agent", agent.BidderID, "reason", err)
				return result, nil
			}
			return result, fmt.Errorf("cascade commit: %w", err)
		}
		result.CascadeBids = append(result.CascadeBids, auto)
		last = auto
	}
}

// commitWithRetry runs the validate-then-conditionally-commit cycle, retrying
// on ErrStaleRead up to the configured bound.
func (s *Service) commitWithRetry(ctx context.Context, itemID uuid.UUID, bidderID string, value decimal.Decimal, isAutomatic bool) (*Bid, error) {
	item, err := s.catalog.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.cfg.MaxCommitRetries; attempt++ {
		leading, err := s.ledger.LeadingBid(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("read leading bid: %w", err)
		}

		var ownAgent *AutoBidAgent
		if !isAutomatic {
			ownAgent, err = s.registry.AgentFor(ctx, bidderID, itemID)
			if err != nil {
				return nil, fmt.Errorf("read own agent: %w", err)
			}
		}

		if err := s.validator.Validate(item, leading, ownAgent, bidderID, value, isAutomatic); err != nil {
			return nil, err
		}

		expected := decimal.Zero
		if leading != nil {
			expected = leading.Value
		}

		bid := &Bid{
			ID:          uuid.New(),
			ItemID:      itemID,
			BidderID:    bidderID,
			Value:       value,
			IsAutomatic: isAutomatic,
		}
		committed, err := s.ledger.CommitBid(ctx, bid, expected)
		if err != nil {
			if errors.Is(err, ErrStaleRead) {
				s.logger.Debug("stale read, revalidating",
					"item_id", itemID, "attempt", attempt+1)
				continue
			}
			return nil, fmt.Errorf("commit bid: %w", err)
		}
		return committed, nil
	}
	return nil, ErrContention
}

// LeadingBid returns the current leading bid for the item, or (nil, nil) when
// none exists.
func (s *Service) LeadingBid(ctx context.Context, itemID uuid.UUID) (*Bid, error) {
	if _, err := s.catalog.Item(ctx, itemID); err != nil {
		return nil, err
	}
	return s.ledger.LeadingBid(ctx, itemID)
}

// BidHistory returns every committed bid for the item in commit order.
func (s *Service) BidHistory(ctx context.Context, itemID uuid.UUID) ([]*Bid, error) {
	if _, err := s.catalog.Item(ctx, itemID); err != nil {
		return nil, err
	}
	return s.ledger.BidsForItem(ctx, itemID)
}

// RegisterAgent opts a bidder into auto-bidding for an item. Registration
// never places a retroactive bid: the agent only responds to future commits.
func (s *Service) RegisterAgent(ctx context.Context, cmd RegisterAgentCommand) (*AutoBidAgent, error) {
	if cmd.Ceiling.Sign() <= 0 {
		return nil, ErrInvalidCeiling
	}
	if _, err := s.catalog.Item(ctx, cmd.ItemID); err != nil {
		return nil, err
	}

	now := time.Now()
	agent := &AutoBidAgent{
		ID:        uuid.New(),
		ItemID:    cmd.ItemID,
		BidderID:  cmd.BidderID,
		Ceiling:   cmd.Ceiling,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.registry.Create(ctx, agent); err != nil {
		return nil, err
	}
	s.logger.Info("auto-bid agent registered",
		"item_id", cmd.ItemID, "bidder_id", cmd.BidderID, "ceiling", cmd.Ceiling)
	return agent, nil
}

// UpdateAgent changes the ceiling and active flag of the caller's agent.
func (s *Service) UpdateAgent(ctx context.Context, cmd UpdateAgentCommand) (*AutoBidAgent, error) {
	if cmd.Ceiling.Sign() <= 0 {
		return nil, ErrInvalidCeiling
	}
	agent, err := s.registry.AgentFor(ctx, cmd.BidderID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}

	agent.Ceiling = cmd.Ceiling
	agent.Active = cmd.Active
	agent.UpdatedAt = time.Now()
	if err := s.registry.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// DeactivateAgent turns the caller's agent off. The agent record survives so
// it can be re-activated with a new ceiling later.
func (s *Service) DeactivateAgent(ctx context.Context, bidderID string, itemID uuid.UUID) error {
	return s.registry.Deactivate(ctx, bidderID, itemID)
}
