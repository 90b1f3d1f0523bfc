package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func openItem(startPrice string) *Item {
	return &Item{
		ID:         uuid.New(),
		Title:      "Vintage Guitar",
		StartPrice: dec(startPrice),
		ClosesAt:   time.Now().Add(24 * time.Hour),
	}
}

func TestValidate_RuleOrder(t *testing.T) {
	closedItem := openItem("100")
	closedItem.ClosesAt = time.Now().Add(-time.Minute)

	leading := &Bid{BidderID: "alice", Value: dec("150")}
	aliceAgent := &AutoBidAgent{BidderID: "alice", Ceiling: dec("200"), Active: true}

	tests := []struct {
		name        string
		item        *Item
		leading     *Bid
		ownAgent    *AutoBidAgent
		bidder      string
		value       decimal.Decimal
		isAutomatic bool
		wantErr     error
	}{
		{
			name:    "first bid above start price accepted",
			item:    openItem("100"),
			bidder:  "alice",
			value:   dec("101"),
			wantErr: nil,
		},
		{
			name:    "first bid equal to start price rejected",
			item:    openItem("100"),
			bidder:  "alice",
			value:   dec("100"),
			wantErr: ErrValueTooLow,
		},
		{
			name:    "closed auction rejected before anything else",
			item:    closedItem,
			leading: leading,
			bidder:  "alice", // would also fail the duplicate rule
			value:   dec("50"),
			wantErr: ErrAuctionClosed,
		},
		{
			name:    "leading bidder cannot bid again",
			item:    openItem("100"),
			leading: leading,
			bidder:  "alice",
			value:   dec("200"),
			wantErr: ErrDuplicateLeadingBidder,
		},
		{
			name:    "value equal to leading rejected",
			item:    openItem("100"),
			leading: leading,
			bidder:  "bob",
			value:   dec("150"),
			wantErr: ErrValueTooLow,
		},
		{
			name:    "value below leading rejected",
			item:    openItem("100"),
			leading: leading,
			bidder:  "bob",
			value:   dec("120"),
			wantErr: ErrValueTooLow,
		},
		{
			name:     "manual bid at own ceiling rejected",
			item:     openItem("100"),
			leading:  &Bid{BidderID: "bob", Value: dec("150")},
			ownAgent: aliceAgent,
			bidder:   "alice",
			value:    dec("200"),
			wantErr:  ErrExceedsOwnAutoBidCeiling,
		},
		{
			name:     "manual bid below own ceiling accepted",
			item:     openItem("100"),
			leading:  &Bid{BidderID: "bob", Value: dec("150")},
			ownAgent: aliceAgent,
			bidder:   "alice",
			value:    dec("199"),
			wantErr:  nil,
		},
		{
			name:        "automatic bid at own ceiling accepted",
			item:        openItem("100"),
			leading:     &Bid{BidderID: "bob", Value: dec("199")},
			ownAgent:    aliceAgent,
			bidder:      "alice",
			value:       dec("200"),
			isAutomatic: true,
			wantErr:     nil,
		},
		{
			name:     "inactive agent does not block its owner",
			item:     openItem("100"),
			leading:  &Bid{BidderID: "bob", Value: dec("150")},
			ownAgent: &AutoBidAgent{BidderID: "alice", Ceiling: dec("160"), Active: false},
			bidder:   "alice",
			value:    dec("500"),
			wantErr:  nil,
		},
		{
			name:    "non-positive value rejected",
			item:    openItem("100"),
			bidder:  "alice",
			value:   dec("0"),
			wantErr: ErrInvalidBidValue,
		},
		{
			name:    "zero bid on closed auction reports the closure",
			item:    closedItem,
			bidder:  "bob",
			value:   dec("0"),
			wantErr: ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			err := v.Validate(tt.item, tt.leading, tt.ownAgent, tt.bidder, tt.value, tt.isAutomatic)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_IsPure(t *testing.T) {
	item := openItem("100")
	leading := &Bid{BidderID: "alice", Value: dec("150")}
	agent := &AutoBidAgent{BidderID: "bob", Ceiling: dec("180"), Active: true}

	v := NewValidator()
	_ = v.Validate(item, leading, agent, "bob", dec("151"), false)

	assert.True(t, item.StartPrice.Equal(dec("100")))
	assert.True(t, leading.Value.Equal(dec("150")))
	assert.True(t, agent.Ceiling.Equal(dec("180")))
	assert.True(t, agent.Active)
}
