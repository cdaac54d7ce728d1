package plans

import "strings"

// PriceTable maps billing price ids to tiers.
type PriceTable map[string]Tier

// NewPriceTable drops empty ids so that unset configuration never maps the
// empty price id to a paid tier.
func NewPriceTable(entries map[string]Tier) PriceTable {
	t := make(PriceTable, len(entries))
	for id, tier := range entries {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		t[id] = tier
	}
	return t
}

// TierFromPriceID returns the tier for a price id, or free when the id is
// empty or unrecognized.
func (t PriceTable) TierFromPriceID(priceID string) Tier {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return TierFree
	}
	if tier, ok := t[priceID]; ok {
		return tier
	}
	return TierFree
}
