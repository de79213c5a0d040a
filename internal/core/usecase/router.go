package usecase

import (
	"strings"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// routeSources picks the subset of configured sources for one request. It is
// a pure function of the query shape and filters; it performs no I/O.
//
// Conceptual queries (open-ended what/why/how phrasing without structural
// filters) go to the semantic source only. Queries with structural filters go
// to the keyword and structured sources. Everything else fans out to all
// configured sources.
func routeSources(query string, filters domain.SearchFilter, configured []domain.SourceName) []domain.SourceName {
	var wanted []domain.SourceName
	switch {
	case filters.Empty() && isConceptual(query):
		wanted = []domain.SourceName{domain.SourceSemantic}
	case !filters.Empty():
		wanted = []domain.SourceName{domain.SourceKeyword, domain.SourceStructured}
	default:
		wanted = domain.CanonicalSourceOrder
	}

	selected := intersectSources(wanted, configured)
	if len(selected) < len(wanted) {
		// The preferred route cannot be fully served; degrade to everything
		// configured rather than silently narrowing the search.
		return intersectSources(domain.CanonicalSourceOrder, configured)
	}
	return selected
}

var conceptualPrefixes = []string{"what", "why", "how", "explain", "describe"}

func isConceptual(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range conceptualPrefixes {
		if strings.HasPrefix(q, prefix+" ") || q == prefix {
			return true
		}
	}
	return strings.HasSuffix(q, "?")
}

func intersectSources(wanted, configured []domain.SourceName) []domain.SourceName {
	available := make(map[domain.SourceName]struct{}, len(configured))
	for _, s := range configured {
		available[s] = struct{}{}
	}

	out := make([]domain.SourceName, 0, len(wanted))
	for _, s := range wanted {
		if _, ok := available[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
