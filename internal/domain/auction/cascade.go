package auction

import (
	"context"

	"github.com/shopspring/decimal"
)

// AgentSelection decides which agent counter-bids when several are active on
// one item.
type AgentSelection string

const (
	// SelectHighestCeiling picks the eligible agent with the highest ceiling,
	// ties broken by earliest registration. Deterministic; the default.
	SelectHighestCeiling AgentSelection = "highest_ceiling"

	// SelectFirstRegistered picks the earliest registered eligible agent.
	SelectFirstRegistered AgentSelection = "first_registered"
)

// CascadeEngine decides whether a freshly committed bid demands an automatic
// counter-bid. It never commits anything itself: the service feeds each
// counter-bid back through the same validate-and-commit path as a human bid,
// so every cascade step is revalidated against live state.
type CascadeEngine struct {
	registry     AutoBidRegistry
	selection    AgentSelection
	minIncrement decimal.Decimal
}

// NewCascadeEngine creates a cascade engine. minIncrement is the fixed step an
// agent bids above the trigger.
func NewCascadeEngine(registry AutoBidRegistry, selection AgentSelection, minIncrement decimal.Decimal) *CascadeEngine {
	return &CascadeEngine{
		registry:     registry,
		selection:    selection,
		minIncrement: minIncrement,
	}
}

// CounterBid computes the automatic response to trigger: the responding agent
// and the value it will bid. Returns (nil, zero, nil) when the cascade
// terminates, either because no eligible agent exists or because the required
// counter-value exceeds every eligible ceiling.
func (e *CascadeEngine) CounterBid(ctx context.Context, trigger *Bid) (*AutoBidAgent, decimal.Decimal, error) {
	agents, err := e.registry.ActiveAgents(ctx, trigger.ItemID, trigger.BidderID)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	if len(agents) == 0 {
		return nil, decimal.Decimal{}, nil
	}

	value := trigger.Value.Add(e.minIncrement)
	agent := e.selectAgent(agents, value)
	if agent == nil {
		// The trigger stands: nobody can afford the counter.
		return nil, decimal.Decimal{}, nil
	}
	return agent, value, nil
}

// selectAgent applies the configured policy over the agents able to reach
// value. Agents arrive ordered by creation time, which makes both policies
// deterministic for a fixed agent set.
func (e *CascadeEngine) selectAgent(agents []*AutoBidAgent, value decimal.Decimal) *AutoBidAgent {
	var chosen *AutoBidAgent
	for _, a := range agents {
		if !a.CanReach(value) {
			continue
		}
		switch e.selection {
		case SelectFirstRegistered:
			return a
		default: // SelectHighestCeiling
			if chosen == nil || a.Ceiling.GreaterThan(chosen.Ceiling) {
				chosen = a
			}
		}
	}
	return chosen
}
