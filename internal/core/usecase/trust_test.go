package usecase

import (
	"testing"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func fusedWithSources(n int) domain.FusedResult {
	return domain.FusedResult{SourceCount: n}
}

func TestScoreTrustTiers(t *testing.T) {
	tests := []struct {
		name      string
		multi     int
		total     int
		wantRatio float64
		wantTier  domain.TrustTier
	}{
		{name: "mostly corroborated", multi: 3, total: 4, wantRatio: 0.75, wantTier: domain.TrustHigh},
		{name: "exactly half is moderate", multi: 2, total: 4, wantRatio: 0.5, wantTier: domain.TrustModerate},
		{name: "exactly quarter is moderate", multi: 1, total: 4, wantRatio: 0.25, wantTier: domain.TrustModerate},
		{name: "below quarter is low", multi: 1, total: 5, wantRatio: 0.2, wantTier: domain.TrustLow},
		{name: "no corroboration", multi: 0, total: 3, wantRatio: 0, wantTier: domain.TrustLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]domain.FusedResult, 0, tt.total)
			for i := 0; i < tt.multi; i++ {
				results = append(results, fusedWithSources(2))
			}
			for i := tt.multi; i < tt.total; i++ {
				results = append(results, fusedWithSources(1))
			}

			ratio, tier := scoreTrust(results)
			if ratio != tt.wantRatio {
				t.Fatalf("ratio = %v, want %v", ratio, tt.wantRatio)
			}
			if tier != tt.wantTier {
				t.Fatalf("tier = %s, want %s", tier, tt.wantTier)
			}
		})
	}
}

func TestScoreTrustEmptyIsLow(t *testing.T) {
	ratio, tier := scoreTrust(nil)
	if ratio != 0 || tier != domain.TrustLow {
		t.Fatalf("empty set: ratio=%v tier=%s, want 0/LOW", ratio, tier)
	}
}

func TestTrustGuidanceMentionsMultiSourcePreference(t *testing.T) {
	for _, tier := range []domain.TrustTier{domain.TrustHigh, domain.TrustModerate} {
		if got := trustGuidance(tier); got == "" {
			t.Fatalf("expected guidance text for %s", tier)
		}
	}
}
