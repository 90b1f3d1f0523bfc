package auction

import "errors"

// Rejections are first-class outcomes, not exceptions: every caller of the
// service is expected to branch on them with errors.Is.
var (
	// ErrItemNotFound is returned when the catalog has no item for the ID.
	ErrItemNotFound = errors.New("item not found")

	// ErrAuctionClosed rejects bids placed after the item's closing time.
	ErrAuctionClosed = errors.New("auction has closed")

	// ErrDuplicateLeadingBidder rejects a bid from the bidder who already
	// holds the leading bid on the item.
	ErrDuplicateLeadingBidder = errors.New("bidder already holds the leading bid")

	// ErrValueTooLow rejects a bid that does not strictly exceed the current
	// leading value (or the start price when no bid exists).
	ErrValueTooLow = errors.New("bid value must exceed the current leading bid")

	// ErrExceedsOwnAutoBidCeiling rejects a manual bid at or above the
	// bidder's own active auto-bid ceiling.
	ErrExceedsOwnAutoBidCeiling = errors.New("bid would exceed own auto-bid ceiling")

	// ErrDuplicateAgent is returned when creating an agent for a
	// (bidder, item) pair that already has one.
	ErrDuplicateAgent = errors.New("auto-bid agent already exists for bidder and item")

	// ErrAgentNotFound is returned when updating or deactivating an agent
	// that does not exist.
	ErrAgentNotFound = errors.New("auto-bid agent not found")

	// ErrStaleRead is returned by the ledger when the leading value moved
	// between validation and commit. Recovered internally via bounded retry.
	ErrStaleRead = errors.New("leading bid changed before commit")

	// ErrContention surfaces when StaleRead retries are exhausted. Transient;
	// safe for the caller to retry.
	ErrContention = errors.New("too much contention on item, retry")

	// ErrCascadeLimitExceeded surfaces when the auto-bid cascade hits the
	// depth cap. Fatal misconfiguration signal, never retried.
	ErrCascadeLimitExceeded = errors.New("auto-bid cascade exceeded depth limit")

	// ErrInvalidCeiling rejects agent registration with a non-positive ceiling.
	ErrInvalidCeiling = errors.New("auto-bid ceiling must be positive")

	// ErrInvalidBidValue rejects a non-positive bid value.
	ErrInvalidBidValue = errors.New("bid value must be positive")
)
