package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Validator enforces the bid acceptance rules over a consistent snapshot of
// item, leading bid and the bidder's own agent. It is pure: no side effects,
// no reads beyond its arguments.
type Validator struct {
	// Now is the clock used for the closing-time check. Defaults to time.Now.
	Now func() time.Time
}

// NewValidator creates a validator backed by the wall clock.
func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

// Validate checks the acceptance rules in order; the first failure wins.
//
//  1. the item must not be past its closing time
//  2. the bidder must not already hold the leading bid
//  3. the value must strictly exceed the leading value (or the start price)
//  4. a manual bid must stay below the bidder's own active ceiling
//
// leading and ownAgent may be nil. Automatic bids skip rule 4: an agent is
// allowed to bid exactly its ceiling, the rule only stops a human from
// competing against their own standing commitment.
//
// The closing-time check runs before everything else, including the
// non-positive-value guard: a zero bid on a closed item is a closed-auction
// rejection, not a value one.
func (v *Validator) Validate(item *Item, leading *Bid, ownAgent *AutoBidAgent, bidderID string, value decimal.Decimal, isAutomatic bool) error {
	if item.Closed(v.Now()) {
		return ErrAuctionClosed
	}
	if value.Sign() <= 0 {
		return ErrInvalidBidValue
	}
	if err := validateNotLeadingBidder(leading, bidderID); err != nil {
		return err
	}
	if err := validateValueAboveLeading(item, leading, value); err != nil {
		return err
	}
	if !isAutomatic {
		if err := validateBelowOwnCeiling(ownAgent, value); err != nil {
			return err
		}
	}
	return nil
}

// validateNotLeadingBidder enforces the duplicate-bidder rule: no two
// consecutive leading bids from the same bidder on one item.
func validateNotLeadingBidder(leading *Bid, bidderID string) error {
	if leading != nil && leading.BidderID == bidderID {
		return ErrDuplicateLeadingBidder
	}
	return nil
}

// validateValueAboveLeading enforces strict monotonic increase of committed
// values per item.
func validateValueAboveLeading(item *Item, leading *Bid, value decimal.Decimal) error {
	floor := item.StartPrice
	if leading != nil {
		floor = leading.Value
	}
	if value.LessThanOrEqual(floor) {
		return ErrValueTooLow
	}
	return nil
}

// validateBelowOwnCeiling stops a bidder from out-bidding their own agent.
func validateBelowOwnCeiling(agent *AutoBidAgent, value decimal.Decimal) error {
	if agent != nil && agent.Active && value.GreaterThanOrEqual(agent.Ceiling) {
		return ErrExceedsOwnAutoBidCeiling
	}
	return nil
}
