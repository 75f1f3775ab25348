package llm

import "testing"

func TestTierMapResolve(t *testing.T) {
	tiers := TierMap{
		ModelTierFast:      "claude-haiku-4-5",
		ModelTierBalanced:  "claude-sonnet-4-5",
		ModelTierStrategic: "claude-opus-4-1",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty defaults to balanced", "", "claude-sonnet-4-5"},
		{"fast tier", "fast", "claude-haiku-4-5"},
		{"balanced tier", "balanced", "claude-sonnet-4-5"},
		{"strategic tier", "strategic", "claude-opus-4-1"},
		{"explicit model passthrough", "claude-3-opus-20240229", "claude-3-opus-20240229"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tiers.Resolve(tt.in); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTierMapResolveMissingTier(t *testing.T) {
	tiers := TierMap{ModelTierBalanced: "default-model"}
	if got := tiers.Resolve("fast"); got != "default-model" {
		t.Errorf("expected balanced fallback for unmapped tier, got %q", got)
	}
}

func TestIsTier(t *testing.T) {
	for _, s := range []string{"fast", "balanced", "strategic"} {
		if !IsTier(s) {
			t.Errorf("IsTier(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "FAST", "quick", "claude-sonnet-4-5"} {
		if IsTier(s) {
			t.Errorf("IsTier(%q) = true, want false", s)
		}
	}
}
