package usecase

import (
	"reflect"
	"testing"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func TestRouteSources(t *testing.T) {
	all := domain.CanonicalSourceOrder
	channelFilter := domain.SearchFilter{ChannelID: "UC123"}

	tests := []struct {
		name       string
		query      string
		filters    domain.SearchFilter
		configured []domain.SourceName
		want       []domain.SourceName
	}{
		{
			name:       "conceptual question routes to semantic only",
			query:      "why did the channel switch topics",
			configured: all,
			want:       []domain.SourceName{domain.SourceSemantic},
		},
		{
			name:       "question mark counts as conceptual",
			query:      "is this covered in the course?",
			configured: all,
			want:       []domain.SourceName{domain.SourceSemantic},
		},
		{
			name:       "structural filters route to keyword and structured",
			query:      "quarterly revenue",
			filters:    channelFilter,
			configured: all,
			want:       []domain.SourceName{domain.SourceKeyword, domain.SourceStructured},
		},
		{
			name:       "conceptual phrasing with filters still uses filtered route",
			query:      "what was said about pricing",
			filters:    channelFilter,
			configured: all,
			want:       []domain.SourceName{domain.SourceKeyword, domain.SourceStructured},
		},
		{
			name:       "plain keyword query fans out to all configured",
			query:      "kubernetes ingress tutorial",
			configured: all,
			want:       all,
		},
		{
			name:       "selection intersects with configured sources",
			query:      "kubernetes ingress tutorial",
			configured: []domain.SourceName{domain.SourceSemantic, domain.SourceKeyword},
			want:       []domain.SourceName{domain.SourceSemantic, domain.SourceKeyword},
		},
		{
			name:       "falls back to configured when preferred sources are absent",
			query:      "what is attention",
			configured: []domain.SourceName{domain.SourceKeyword},
			want:       []domain.SourceName{domain.SourceKeyword},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := routeSources(tt.query, tt.filters, tt.configured)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("routeSources() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouteSourcesIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		got := routeSources("how does fusion work", domain.SearchFilter{}, domain.CanonicalSourceOrder)
		if !reflect.DeepEqual(got, []domain.SourceName{domain.SourceSemantic}) {
			t.Fatalf("iteration %d: routing changed: %v", i, got)
		}
	}
}
