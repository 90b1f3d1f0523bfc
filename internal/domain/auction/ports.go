package auction

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BidLedger is the authoritative record of bids per item.
//
// CommitBid must be atomic with respect to other commits on the same item:
// implementations serialize commits per item, compare the stored leading value
// against expectedLeading immediately before insert, and return ErrStaleRead
// when it moved. Commits on different items proceed independently. The ledger
// assigns CreatedAt at commit time.
type BidLedger interface {
	// LeadingBid returns the most recently committed bid for the item, or
	// (nil, nil) when the item has no bids.
	LeadingBid(ctx context.Context, itemID uuid.UUID) (*Bid, error)

	// CommitBid appends bid if the item's leading value still equals
	// expectedLeading (decimal zero when no bid existed at validation time).
	CommitBid(ctx context.Context, bid *Bid, expectedLeading decimal.Decimal) (*Bid, error)

	// BidsForItem returns every committed bid for the item in commit order.
	BidsForItem(ctx context.Context, itemID uuid.UUID) ([]*Bid, error)
}

// AutoBidRegistry stores the auto-bid agents per item and enforces the
// one-agent-per-(bidder, item) invariant.
type AutoBidRegistry interface {
	// ActiveAgents returns the active agents for the item excluding
	// excludeBidder, ordered by creation time.
	ActiveAgents(ctx context.Context, itemID uuid.UUID, excludeBidder string) ([]*AutoBidAgent, error)

	// AgentFor returns the agent for (bidder, item), or (nil, nil) when none
	// exists.
	AgentFor(ctx context.Context, bidderID string, itemID uuid.UUID) (*AutoBidAgent, error)

	// Create inserts a new agent. Returns ErrDuplicateAgent when one already
	// exists for the (bidder, item) pair.
	Create(ctx context.Context, agent *AutoBidAgent) error

	// Update replaces the ceiling and active flag of an existing agent.
	// Returns ErrAgentNotFound when none exists.
	Update(ctx context.Context, agent *AutoBidAgent) error

	// Deactivate marks the agent for (bidder, item) inactive. Returns
	// ErrAgentNotFound when none exists.
	Deactivate(ctx context.Context, bidderID string, itemID uuid.UUID) error
}

// ItemCatalog is the read-only view of the external item catalog.
type ItemCatalog interface {
	// Item returns the item or ErrItemNotFound.
	Item(ctx context.Context, itemID uuid.UUID) (*Item, error)
}
