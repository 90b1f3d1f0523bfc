// Package memory provides an in-process implementation of the bidding core's
// ports: item catalog, bid ledger and auto-bid registry backed by maps with
// per-item mutual exclusion. It is the reference implementation the domain
// tests run against and the default backend in dev mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/domain/auction"
)

// Store implements auction.ItemCatalog, auction.BidLedger and
// auction.AutoBidRegistry. Commits on the same item serialize on a per-item
// mutex; commits on different items never contend.
type Store struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]*auction.Item
	bids   map[uuid.UUID][]*auction.Bid
	agents map[uuid.UUID][]*auction.AutoBidAgent
	locks  map[uuid.UUID]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		items:  make(map[uuid.UUID]*auction.Item),
		bids:   make(map[uuid.UUID][]*auction.Bid),
		agents: make(map[uuid.UUID][]*auction.AutoBidAgent),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// itemLock returns the commit mutex for the item, creating it lazily.
func (s *Store) itemLock(itemID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[itemID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[itemID] = l
	}
	return l
}

// PutItem seeds an item into the catalog.
func (s *Store) PutItem(item *auction.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
}

// Item implements auction.ItemCatalog.
func (s *Store) Item(_ context.Context, itemID uuid.UUID) (*auction.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, auction.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

// LeadingBid implements auction.BidLedger.
func (s *Store) LeadingBid(_ context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := s.bids[itemID]
	if len(bids) == 0 {
		return nil, nil
	}
	cp := *bids[len(bids)-1]
	return &cp, nil
}

// CommitBid implements auction.BidLedger. The compare against expectedLeading
// and the append happen under the item's commit mutex, which linearizes all
// commits for the item.
func (s *Store) CommitBid(_ context.Context, bid *auction.Bid, expectedLeading decimal.Decimal) (*auction.Bid, error) {
	lock := s.itemLock(bid.ItemID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	current := decimal.Zero
	if bids := s.bids[bid.ItemID]; len(bids) > 0 {
		current = bids[len(bids)-1].Value
	}
	if !current.Equal(expectedLeading) {
		return nil, auction.ErrStaleRead
	}

	cp := *bid
	cp.CreatedAt = time.Now()
	s.bids[bid.ItemID] = append(s.bids[bid.ItemID], &cp)

	out := cp
	return &out, nil
}

// BidsForItem implements auction.BidLedger.
func (s *Store) BidsForItem(_ context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := s.bids[itemID]
	out := make([]*auction.Bid, 0, len(bids))
	for _, b := range bids {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

// ActiveAgents implements auction.AutoBidRegistry. Agents are stored in
// creation order, which the cascade relies on for deterministic selection.
func (s *Store) ActiveAgents(_ context.Context, itemID uuid.UUID, excludeBidder string) ([]*auction.AutoBidAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*auction.AutoBidAgent
	for _, a := range s.agents[itemID] {
		if !a.Active || a.BidderID == excludeBidder {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// AgentFor implements auction.AutoBidRegistry.
func (s *Store) AgentFor(_ context.Context, bidderID string, itemID uuid.UUID) (*auction.AutoBidAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.findAgent(bidderID, itemID); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

// Create implements auction.AutoBidRegistry.
func (s *Store) Create(_ context.Context, agent *auction.AutoBidAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findAgent(agent.BidderID, agent.ItemID) != nil {
		return auction.ErrDuplicateAgent
	}
	cp := *agent
	s.agents[agent.ItemID] = append(s.agents[agent.ItemID], &cp)
	return nil
}

// Update implements auction.AutoBidRegistry.
func (s *Store) Update(_ context.Context, agent *auction.AutoBidAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.findAgent(agent.BidderID, agent.ItemID)
	if existing == nil {
		return auction.ErrAgentNotFound
	}
	existing.Ceiling = agent.Ceiling
	existing.Active = agent.Active
	existing.UpdatedAt = agent.UpdatedAt
	return nil
}

// Deactivate implements auction.AutoBidRegistry.
func (s *Store) Deactivate(_ context.Context, bidderID string, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.findAgent(bidderID, itemID)
	if existing == nil {
		return auction.ErrAgentNotFound
	}
	existing.Active = false
	existing.UpdatedAt = time.Now()
	return nil
}

// findAgent must be called with s.mu held.
func (s *Store) findAgent(bidderID string, itemID uuid.UUID) *auction.AutoBidAgent {
	for _, a := range s.agents[itemID] {
		if a.BidderID == bidderID {
			return a
		}
	}
	return nil
}
