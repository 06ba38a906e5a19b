package usage

import (
	"fmt"
	"strings"

	"mediabatch/internal/services"
)

// Tier names a pricing and quota plan.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Pricing describes the limits and per-token rates of a tier. TokensPerMinute
// is zero when the plan publishes no token ceiling.
type Pricing struct {
	RequestsPerMinute       int
	RequestsPerDay          int
	TokensPerMinute         int64
	InputCostPerMillionUSD  float64
	OutputCostPerMillionUSD float64
}

var pricingTable = map[Tier]Pricing{
	TierFree: {
		RequestsPerMinute: 15,
		RequestsPerDay:    1500,
		TokensPerMinute:   1_000_000,
	},
	TierPaid: {
		RequestsPerMinute:       360,
		RequestsPerDay:          10000,
		InputCostPerMillionUSD:  0.075,
		OutputCostPerMillionUSD: 0.30,
	},
}

// ParseTier validates a tier name. Unknown names wrap services.ErrInvalidTier.
func ParseTier(value string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := pricingTable[tier]; !ok {
		return "", services.Wrap(services.ErrInvalidTier, "usage", "parse tier",
			fmt.Sprintf("tier must be 'free' or 'paid' (got %q)", value), nil)
	}
	return tier, nil
}

// PricingFor returns the pricing of tier, falling back to the free plan.
func PricingFor(tier Tier) Pricing {
	if p, ok := pricingTable[tier]; ok {
		return p
	}
	return pricingTable[TierFree]
}

// Cost returns the USD cost of a call under p.
func (p Pricing) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1_000_000*p.InputCostPerMillionUSD +
		float64(outputTokens)/1_000_000*p.OutputCostPerMillionUSD
}
