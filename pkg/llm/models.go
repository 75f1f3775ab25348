package llm

// ModelTier names a performance/cost trade-off so pipelines can pick a
// class of model without hardcoding provider-specific IDs.
type ModelTier string

const (
	// ModelTierFast prioritizes latency and cost. Simple extraction,
	// classification, high-volume steps.
	ModelTierFast ModelTier = "fast"

	// ModelTierBalanced is the general-purpose default.
	ModelTierBalanced ModelTier = "balanced"

	// ModelTierStrategic maximizes capability for hard reasoning steps.
	ModelTierStrategic ModelTier = "strategic"
)

// IsTier reports whether s names one of the known model tiers.
func IsTier(s string) bool {
	switch ModelTier(s) {
	case ModelTierFast, ModelTierBalanced, ModelTierStrategic:
		return true
	default:
		return false
	}
}

// TierMap maps tiers to a provider's concrete model IDs.
type TierMap map[ModelTier]string

// Resolve translates a model-or-tier string into a concrete model ID.
// Tier names map through the table, empty falls back to the balanced
// entry, and anything else is treated as an explicit model ID and
// returned unchanged.
func (m TierMap) Resolve(nameOrTier string) string {
	if nameOrTier == "" {
		return m[ModelTierBalanced]
	}
	if IsTier(nameOrTier) {
		if id, ok := m[ModelTier(nameOrTier)]; ok {
			return id
		}
		return m[ModelTierBalanced]
	}
	return nameOrTier
}
