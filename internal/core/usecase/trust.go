package usecase

import "github.com/olshev/transcript-insight/internal/core/domain"

// scoreTrust classifies the fused result set by how much of it is
// corroborated by more than one source. Boundary values land on MODERATE:
// exactly 0.5 is not HIGH and exactly 0.25 is not LOW.
func scoreTrust(results []domain.FusedResult) (float64, domain.TrustTier) {
	if len(results) == 0 {
		return 0, domain.TrustLow
	}

	multi := 0
	for _, r := range results {
		if r.SourceCount > 1 {
			multi++
		}
	}
	ratio := float64(multi) / float64(len(results))

	switch {
	case ratio > 0.5:
		return ratio, domain.TrustHigh
	case ratio >= 0.25:
		return ratio, domain.TrustModerate
	default:
		return ratio, domain.TrustLow
	}
}

func trustGuidance(tier domain.TrustTier) string {
	switch tier {
	case domain.TrustHigh:
		return "Most retrieved chunks are corroborated by multiple sources. Trust multi-source chunks over single-source ones when they conflict."
	case domain.TrustModerate:
		return "Some retrieved chunks are corroborated by multiple sources. Trust multi-source chunks over single-source ones when they conflict, and hedge claims supported by a single source."
	default:
		return "Retrieved chunks are mostly single-source. Treat every claim as weakly supported and state uncertainty explicitly."
	}
}
