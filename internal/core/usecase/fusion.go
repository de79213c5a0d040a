package usecase

import (
	"sort"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

const defaultRRFK = 60

// fusionInput carries each source's ranked list, keyed by source name.
// Fusion always walks sources in domain.CanonicalSourceOrder, which makes the
// merge independent of the order the sources happened to respond in.
type fusionInput map[domain.SourceName][]domain.SearchResult

type fusedCandidate struct {
	result domain.FusedResult
	// firstSeen is the position of the chunk's first occurrence under
	// canonical source order, used as the final tie-break.
	firstSeen int
}

// fuseResults merges the per-source lists into one deduplicated ranked list.
// RRF scores each occurrence 1/(k+rank); weighted sums weight*rawScore;
// simple keeps every source's native order and only deduplicates.
func fuseResults(lists fusionInput, algo domain.FusionAlgorithm, rrfK int, weights map[domain.SourceName]float64) []domain.FusedResult {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate)
	order := make([]string, 0, 16)
	seen := 0

	for _, source := range domain.CanonicalSourceOrder {
		for i, res := range lists[source] {
			rank := i + 1
			key := res.DedupKey()

			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{
					result: domain.FusedResult{
						SearchResult: res,
						Provenance:   make(map[domain.SourceName]domain.SourceEvidence, 2),
					},
					firstSeen: seen,
				}
				acc[key] = candidate
				order = append(order, key)
				seen++
			}

			if _, dup := candidate.result.Provenance[source]; dup {
				// Same chunk twice from one source: keep the better rank.
				if candidate.result.Provenance[source].Rank <= rank {
					continue
				}
			}
			candidate.result.Provenance[source] = domain.SourceEvidence{
				RawScore: res.RawScore,
				Rank:     rank,
			}

			switch algo {
			case domain.FusionRRF:
				candidate.result.FusionScore += 1.0 / float64(rrfK+rank)
			case domain.FusionWeighted:
				candidate.result.FusionScore += sourceWeight(weights, source) * res.RawScore
			case domain.FusionSimple:
				// No re-scoring; native order is preserved via firstSeen.
			}
		}
	}

	out := make([]domain.FusedResult, 0, len(acc))
	firstSeenByKey := make(map[string]int, len(acc))
	for _, key := range order {
		candidate := acc[key]
		finalizeSources(&candidate.result)
		out = append(out, candidate.result)
		firstSeenByKey[dedupKeyOf(candidate.result)] = candidate.firstSeen
	}

	if algo == domain.FusionSimple {
		// Already in first-seen order.
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusionScore != out[j].FusionScore {
			return out[i].FusionScore > out[j].FusionScore
		}
		if out[i].SourceCount != out[j].SourceCount {
			return out[i].SourceCount > out[j].SourceCount
		}
		return firstSeenByKey[dedupKeyOf(out[i])] < firstSeenByKey[dedupKeyOf(out[j])]
	})

	return out
}

func dedupKeyOf(r domain.FusedResult) string {
	return r.SearchResult.DedupKey()
}

// finalizeSources derives MatchedSources and SourceCount from provenance so
// the sourceCount == |matchedSources| invariant holds by construction.
func finalizeSources(r *domain.FusedResult) {
	r.MatchedSources = r.MatchedSources[:0]
	for _, source := range domain.CanonicalSourceOrder {
		if _, ok := r.Provenance[source]; ok {
			r.MatchedSources = append(r.MatchedSources, source)
		}
	}
	r.SourceCount = len(r.MatchedSources)
}

func sourceWeight(weights map[domain.SourceName]float64, source domain.SourceName) float64 {
	if w, ok := weights[source]; ok {
		return w
	}
	return 1.0 / float64(len(domain.CanonicalSourceOrder))
}

func trimResults(results []domain.FusedResult, limit int) []domain.FusedResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}
