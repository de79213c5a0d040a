package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type SourceName string

const (
	SourceSemantic   SourceName = "semantic"
	SourceKeyword    SourceName = "keyword"
	SourceStructured SourceName = "structured"
)

// CanonicalSourceOrder fixes the iteration order for everything that merges
// per-source result lists, so fusion output does not depend on which source
// happened to answer first.
var CanonicalSourceOrder = []SourceName{SourceSemantic, SourceKeyword, SourceStructured}

func (s SourceName) Valid() bool {
	switch s {
	case SourceSemantic, SourceKeyword, SourceStructured:
		return true
	}
	return false
}

// SearchResult is one candidate transcript chunk as returned by a single
// source. Adapters produce it once and the engine never mutates it.
type SearchResult struct {
	ChunkID     string     `json:"chunk_id"`
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	TokenCount  int        `json:"token_count"`
	RawScore    float64    `json:"raw_score"`
	Source      SourceName `json:"source"`
	ContentHash string     `json:"content_hash,omitempty"`
}

// DedupKey returns the cross-source identity of the chunk. When the source
// did not supply a content hash the fallback hash is scoped by video id so
// near-identical snippets from different videos never collapse.
func (r SearchResult) DedupKey() string {
	if r.ContentHash != "" {
		return r.ContentHash
	}
	sum := sha256.Sum256([]byte(r.VideoID + "\x00" + normalizeText(r.Text)))
	return hex.EncodeToString(sum[:])
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SourceEvidence is the per-source score/rank a chunk had before fusion.
type SourceEvidence struct {
	RawScore float64 `json:"raw_score"`
	Rank     int     `json:"rank"`
}

// FusedResult is one deduplicated chunk after rank fusion, carrying the
// provenance of every source that returned it.
type FusedResult struct {
	SearchResult

	FusionScore    float64                       `json:"fusion_score"`
	MatchedSources []SourceName                  `json:"matched_sources"`
	SourceCount    int                           `json:"source_count"`
	Provenance     map[SourceName]SourceEvidence `json:"provenance"`
}

type SearchFilter struct {
	ChannelID       string     `json:"channel_id,omitempty"`
	VideoID         string     `json:"video_id,omitempty"`
	PublishedAfter  *time.Time `json:"published_after,omitempty"`
	PublishedBefore *time.Time `json:"published_before,omitempty"`
	MinDurationSec  int        `json:"min_duration_sec,omitempty"`
	MaxDurationSec  int        `json:"max_duration_sec,omitempty"`
}

func (f SearchFilter) Empty() bool {
	return f.ChannelID == "" && f.VideoID == "" &&
		f.PublishedAfter == nil && f.PublishedBefore == nil &&
		f.MinDurationSec == 0 && f.MaxDurationSec == 0
}

type RetrievalRequest struct {
	Query     string       `json:"query"`
	Filters   SearchFilter `json:"filters"`
	TopK      int          `json:"top_k"`
	TimeoutMs int          `json:"timeout_ms,omitempty"`
}

type FusionAlgorithm string

const (
	FusionRRF      FusionAlgorithm = "rrf"
	FusionWeighted FusionAlgorithm = "weighted"
	FusionSimple   FusionAlgorithm = "simple"
)

// ParseFusionAlgorithm maps a configuration string to the fusion variant.
// Anything unrecognized falls back to simple concatenation; the fallback is
// part of the contract, not an error.
func ParseFusionAlgorithm(s string) FusionAlgorithm {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rrf":
		return FusionRRF
	case "weighted":
		return FusionWeighted
	default:
		return FusionSimple
	}
}

type TrustTier string

const (
	TrustHigh     TrustTier = "HIGH"
	TrustModerate TrustTier = "MODERATE"
	TrustLow      TrustTier = "LOW"
)

type SourceStatus string

const (
	SourceStatusSuccess SourceStatus = "success"
	SourceStatusSkipped SourceStatus = "skipped"
	SourceStatusError   SourceStatus = "error"
)

// SourceOutcome reports how one source behaved for one request.
type SourceOutcome struct {
	Source    SourceName   `json:"source"`
	Status    SourceStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
	Results   int          `json:"results"`
}

type RetrievalResponse struct {
	Results            []FusedResult        `json:"results"`
	SourcesUsed        []SourceName         `json:"sources_used"`
	FusionMethod       FusionAlgorithm      `json:"fusion_method"`
	EvidenceQuality    TrustTier            `json:"evidence_quality"`
	MultiSourceRatio   float64              `json:"multi_source_ratio"`
	Coverage           float64              `json:"coverage"`
	LatencyMs          int64                `json:"latency_ms"`
	PerSourceLatencyMs map[SourceName]int64 `json:"per_source_latency_ms"`
	SourceOutcomes     []SourceOutcome      `json:"source_outcomes"`
	PolicyWarning      string               `json:"policy_warning,omitempty"`
	Cached             bool                 `json:"cached"`
	TraceID            string               `json:"trace_id"`
}

// Answer is the citation-grounded output of the answer generation boundary.
type Answer struct {
	Answer      string     `json:"answer"`
	Citations   []Citation `json:"citations"`
	Confidence  string     `json:"confidence"`
	Limitations string     `json:"limitations,omitempty"`
}

type Citation struct {
	ChunkID string `json:"chunk_id"`
	VideoID string `json:"video_id"`
	Title   string `json:"title,omitempty"`
}
