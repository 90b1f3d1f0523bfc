package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hammerstack/bidengine/internal/adapters/memory"
	"github.com/hammerstack/bidengine/internal/domain/auction"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newBid(itemID uuid.UUID, bidder, value string) *auction.Bid {
	return &auction.Bid{
		ID:       uuid.New(),
		ItemID:   itemID,
		BidderID: bidder,
		Value:    dec(value),
	}
}

func TestStore_ItemNotFound(t *testing.T) {
	store := memory.NewStore()
	_, err := store.Item(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auction.ErrItemNotFound)
}

func TestStore_LeadingBidEmpty(t *testing.T) {
	store := memory.NewStore()
	bid, err := store.LeadingBid(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, bid)
}

func TestStore_CommitAssignsCreatedAt(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()

	committed, err := store.CommitBid(context.Background(), newBid(itemID, "alice", "100"), decimal.Zero)
	require.NoError(t, err)
	assert.False(t, committed.CreatedAt.IsZero())

	leading, err := store.LeadingBid(context.Background(), itemID)
	require.NoError(t, err)
	require.NotNil(t, leading)
	assert.Equal(t, committed.ID, leading.ID)
}

func TestStore_CommitStaleRead(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()
	ctx := context.Background()

	_, err := store.CommitBid(ctx, newBid(itemID, "alice", "100"), decimal.Zero)
	require.NoError(t, err)

	// A commit against the pre-commit expectation must be rejected.
	_, err = store.CommitBid(ctx, newBid(itemID, "bob", "110"), decimal.Zero)
	assert.ErrorIs(t, err, auction.ErrStaleRead)

	// And succeed with the refreshed expectation.
	_, err = store.CommitBid(ctx, newBid(itemID, "bob", "110"), dec("100"))
	require.NoError(t, err)
}

func TestStore_CommitsAreCopied(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()

	bid := newBid(itemID, "alice", "100")
	committed, err := store.CommitBid(context.Background(), bid, decimal.Zero)
	require.NoError(t, err)

	// Mutating the caller's structs must not reach the ledger.
	bid.Value = dec("999")
	committed.BidderID = "mallory"

	leading, err := store.LeadingBid(context.Background(), itemID)
	require.NoError(t, err)
	assert.True(t, leading.Value.Equal(dec("100")))
	assert.Equal(t, "alice", leading.BidderID)
}

func TestStore_ConcurrentCommitsOneWinnerPerExpectation(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()

	const n = 32
	g := new(errgroup.Group)
	wins := make(chan uuid.UUID, n)
	for i := 0; i < n; i++ {
		bid := newBid(itemID, "alice", "100")
		g.Go(func() error {
			if _, err := store.CommitBid(context.Background(), bid, decimal.Zero); err == nil {
				wins <- bid.ID
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(wins)

	var winners []uuid.UUID
	for id := range wins {
		winners = append(winners, id)
	}
	assert.Len(t, winners, 1, "exactly one commit may win a given expectation")
}

func TestStore_AgentUniqueness(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()
	ctx := context.Background()

	agent := &auction.AutoBidAgent{
		ID: uuid.New(), ItemID: itemID, BidderID: "alice",
		Ceiling: dec("100"), Active: true, CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, agent))

	dup := *agent
	dup.ID = uuid.New()
	assert.ErrorIs(t, store.Create(ctx, &dup), auction.ErrDuplicateAgent)
}

func TestStore_ActiveAgentsFilters(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()
	ctx := context.Background()

	for _, a := range []*auction.AutoBidAgent{
		{ID: uuid.New(), ItemID: itemID, BidderID: "active", Ceiling: dec("100"), Active: true},
		{ID: uuid.New(), ItemID: itemID, BidderID: "inactive", Ceiling: dec("100"), Active: false},
		{ID: uuid.New(), ItemID: itemID, BidderID: "excluded", Ceiling: dec("100"), Active: true},
	} {
		require.NoError(t, store.Create(ctx, a))
	}

	agents, err := store.ActiveAgents(ctx, itemID, "excluded")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "active", agents[0].BidderID)
}

func TestStore_DeactivateThenReactivate(t *testing.T) {
	store := memory.NewStore()
	itemID := uuid.New()
	ctx := context.Background()

	agent := &auction.AutoBidAgent{
		ID: uuid.New(), ItemID: itemID, BidderID: "alice",
		Ceiling: dec("100"), Active: true,
	}
	require.NoError(t, store.Create(ctx, agent))
	require.NoError(t, store.Deactivate(ctx, "alice", itemID))

	got, err := store.AgentFor(ctx, "alice", itemID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)

	got.Active = true
	got.Ceiling = dec("250")
	got.UpdatedAt = time.Now()
	require.NoError(t, store.Update(ctx, got))

	agents, err := store.ActiveAgents(ctx, itemID, "")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.True(t, agents[0].Ceiling.Equal(dec("250")))
}
