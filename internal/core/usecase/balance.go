package usecase

import (
	"sort"

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
)

// balanceContext selects a token-bounded, source-diverse subset of the fused
// results for answer generation. Tokens are tracked per contributing source: a
// multi-source chunk is charged against every source it touched, and a chunk
// is only admitted while every one of its sources still has budget. This
// keeps one high-volume source from monopolizing the context window.
func balanceContext(results []domain.FusedResult, maxTokensPerSource int, counter ports.TokenCounter) ([]domain.FusedResult, map[domain.SourceName]int) {
	used := make(map[domain.SourceName]int, len(domain.CanonicalSourceOrder))
	if maxTokensPerSource <= 0 {
		return results, used
	}

	ordered := make([]domain.FusedResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FusionScore != ordered[j].FusionScore {
			return ordered[i].FusionScore > ordered[j].FusionScore
		}
		// Multi-source chunks are admitted preferentially on ties.
		return ordered[i].SourceCount > ordered[j].SourceCount
	})

	admitted := make([]domain.FusedResult, 0, len(ordered))
	for _, r := range ordered {
		tokens := r.TokenCount
		if tokens <= 0 && counter != nil {
			tokens = counter.Count(r.Text)
		}
		if tokens <= 0 || tokens > maxTokensPerSource {
			continue
		}

		fits := true
		for _, source := range r.MatchedSources {
			if used[source]+tokens > maxTokensPerSource {
				fits = false
				break
			}
		}
		if !fits {
			continue
		}

		for _, source := range r.MatchedSources {
			used[source] += tokens
		}
		admitted = append(admitted, r)
	}

	return admitted, used
}
