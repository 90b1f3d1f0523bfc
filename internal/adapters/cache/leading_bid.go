// Package cache decorates the bid ledger with a redis read cache for the
// leading bid per item. The cache is advisory: any redis failure falls
// through to the underlying ledger, and commits always go to the ledger
// first.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/domain/auction"
)

const leadingBidKeyPrefix = "leading_bid:"

// storeScript writes the entry only when it beats the value already cached.
// Committed values strictly increase per item, so a slow writer carrying an
// older bid can never regress the cache. Unreadable entries are overwritten.
var storeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	if ok and decoded.value and tonumber(decoded.value) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// cachedBid is the redis representation of a bid. Value travels as a string
// to keep the decimal exact.
type cachedBid struct {
	ID          uuid.UUID `json:"id"`
	ItemID      uuid.UUID `json:"item_id"`
	BidderID    string    `json:"bidder_id"`
	Value       string    `json:"value"`
	IsAutomatic bool      `json:"is_automatic"`
	CreatedAt   time.Time `json:"created_at"`
}

// CachedLedger implements auction.BidLedger around another ledger.
type CachedLedger struct {
	ledger auction.BidLedger
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLedger wraps ledger with a leading-bid cache.
func NewCachedLedger(ledger auction.BidLedger, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLedger{
		ledger: ledger,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// LeadingBid serves from redis when possible and falls back to the ledger.
func (c *CachedLedger) LeadingBid(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	key := leadingBidKeyPrefix + itemID.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		bid, decodeErr := decodeBid(raw)
		if decodeErr == nil {
			return bid, nil
		}
		c.logger.Warn("corrupt leading-bid cache entry", "item_id", itemID, "error", decodeErr)
	} else if err != redis.Nil {
		c.logger.Warn("leading-bid cache read failed", "item_id", itemID, "error", err)
	}

	bid, err := c.ledger.LeadingBid(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if bid != nil {
		c.store(ctx, bid)
	}
	return bid, nil
}

// CommitBid delegates to the ledger and refreshes the cache on success. On
// ErrStaleRead the cached entry may itself be the outdated value the caller
// validated against, so it is dropped rather than left to fail every retry
// until the TTL expires.
func (c *CachedLedger) CommitBid(ctx context.Context, bid *auction.Bid, expectedLeading decimal.Decimal) (*auction.Bid, error) {
	committed, err := c.ledger.CommitBid(ctx, bid, expectedLeading)
	if err != nil {
		if errors.Is(err, auction.ErrStaleRead) {
			c.invalidate(ctx, bid.ItemID)
		}
		return nil, err
	}
	c.store(ctx, committed)
	return committed, nil
}

// BidsForItem is a passthrough; history reads are not cached.
func (c *CachedLedger) BidsForItem(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	return c.ledger.BidsForItem(ctx, itemID)
}

func (c *CachedLedger) store(ctx context.Context, bid *auction.Bid) {
	raw, err := json.Marshal(cachedBid{
		ID:          bid.ID,
		ItemID:      bid.ItemID,
		BidderID:    bid.BidderID,
		Value:       bid.Value.String(),
		IsAutomatic: bid.IsAutomatic,
		CreatedAt:   bid.CreatedAt,
	})
	if err != nil {
		c.logger.Warn("failed to encode leading bid", "item_id", bid.ItemID, "error", err)
		return
	}
	key := leadingBidKeyPrefix + bid.ItemID.String()
	err = storeScript.Run(ctx, c.client, []string{key}, raw, bid.Value.String(), c.ttl.Milliseconds()).Err()
	if err != nil {
		c.logger.Warn("leading-bid cache write failed", "item_id", bid.ItemID, "error", err)
	}
}

func (c *CachedLedger) invalidate(ctx context.Context, itemID uuid.UUID) {
	key := leadingBidKeyPrefix + itemID.String()
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("leading-bid cache invalidation failed", "item_id", itemID, "error", err)
	}
}

func decodeBid(raw []byte) (*auction.Bid, error) {
	var cb cachedBid
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, err
	}
	value, err := decimal.NewFromString(cb.Value)
	if err != nil {
		return nil, err
	}
	return &auction.Bid{
		ID:          cb.ID,
		ItemID:      cb.ItemID,
		BidderID:    cb.BidderID,
		Value:       value,
		IsAutomatic: cb.IsAutomatic,
		CreatedAt:   cb.CreatedAt,
	}, nil
}
