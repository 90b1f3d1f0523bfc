package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is an auction lot. Items are owned by the catalog collaborator and are
// read-only inside the bidding core.
type Item struct {
	ID          uuid.UUID
	Title       string
	Description string
	StartPrice  decimal.Decimal
	ClosesAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Closed reports whether the item no longer accepts bids.
func (i *Item) Closed(now time.Time) bool {
	return !now.Before(i.ClosesAt)
}

// Bid is a committed bid on an item. Bids are immutable once committed; the
// ledger only ever appends. CreatedAt is assigned by the ledger at commit time
// and is the tie-break and ordering key within an item.
type Bid struct {
	ID          uuid.UUID
	ItemID      uuid.UUID
	BidderID    string // opaque external user key
	Value       decimal.Decimal
	IsAutomatic bool
	CreatedAt   time.Time
}

// AutoBidAgent is a standing instruction to counter-bid on behalf of a bidder
// up to Ceiling. At most one agent exists per (bidder, item). The cascade
// engine reads agents but never mutates them; only the owner does, through the
// registry.
type AutoBidAgent struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	BidderID  string
	Ceiling   decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanReach reports whether the agent is willing to bid value.
func (a *AutoBidAgent) CanReach(value decimal.Decimal) bool {
	return a.Active && value.LessThanOrEqual(a.Ceiling)
}

// BidResult is the full outcome of one external PlaceBid call. CascadeBids
// holds every automatic counter-bid triggered by the committed bid, in commit
// order, so the caller observes the whole chain.
type BidResult struct {
	Bid         *Bid
	CascadeBids []*Bid
}

// LeadingBid returns the bid that leads the item after the result was
// produced: the last cascade bid, or the triggering bid when no agent fired.
func (r *BidResult) LeadingBid() *Bid {
	if n := len(r.CascadeBids); n > 0 {
		return r.CascadeBids[n-1]
	}
	return r.Bid
}
