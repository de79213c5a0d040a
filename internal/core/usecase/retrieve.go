package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
)

// EngineConfig holds the static defaults of the fusion pipeline. An active
// experiment may override any of them per request.
type EngineConfig struct {
	TopK               int
	TimeoutMs          int
	RRFK               int
	FusionAlgorithm    domain.FusionAlgorithm
	Weights            map[domain.SourceName]float64
	MaxTokensPerSource int
	CacheTTL           time.Duration
}

func (c EngineConfig) normalize() EngineConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 20
	}
	if out.TimeoutMs <= 0 {
		out.TimeoutMs = 2000
	}
	if out.RRFK <= 0 {
		out.RRFK = defaultRRFK
	}
	if out.FusionAlgorithm == "" {
		out.FusionAlgorithm = domain.FusionRRF
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = 5 * time.Minute
	}
	return out
}

// RetrieveUseCase runs the fused retrieval pipeline: route, fan out, fuse,
// dedup, score trust, enforce policy, cache. All collaborators are injected.
type RetrieveUseCase struct {
	adapters    map[domain.SourceName]ports.SourceAdapter
	cache       ports.ResultCache
	experiments ports.ExperimentStore
	policy      *PolicyEnforcer
	publisher   ports.EventPublisher
	cfg         EngineConfig
}

func NewRetrieveUseCase(
	adapters []ports.SourceAdapter,
	cache ports.ResultCache,
	experiments ports.ExperimentStore,
	policy *PolicyEnforcer,
	publisher ports.EventPublisher,
	cfg EngineConfig,
) *RetrieveUseCase {
	byName := make(map[domain.SourceName]ports.SourceAdapter, len(adapters))
	for _, adapter := range adapters {
		byName[adapter.Name()] = adapter
	}
	return &RetrieveUseCase{
		adapters:    byName,
		cache:       cache,
		experiments: experiments,
		policy:      policy,
		publisher:   publisher,
		cfg:         cfg.normalize(),
	}
}

// resolvedParams is the per-request parameter set after layering
// defaults <- active experiment <- request overrides.
type resolvedParams struct {
	topK         int
	timeout      time.Duration
	rrfK         int
	algorithm    domain.FusionAlgorithm
	weights      map[domain.SourceName]float64
	pinned       []domain.SourceName
	experimentID string
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is required"))
	}
	if req.TopK < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("top_k must not be negative"))
	}

	start := time.Now()
	params := uc.resolveParams(ctx, req)
	key := cacheKey(req.Query, req.Filters, params.topK)

	if uc.cache != nil {
		if cached, hit := uc.cache.Get(ctx, key); hit {
			hitCopy := *cached
			hitCopy.Cached = true
			// A hit still serves a distinct request; give it its own
			// trace id.
			hitCopy.TraceID = uuid.NewString()
			return &hitCopy, nil
		}
	}

	traceID := uuid.NewString()
	selected := uc.selectSources(req, params)
	outcomes := uc.fanOut(ctx, req, params, selected)

	lists := make(fusionInput, len(outcomes))
	attempted := 0
	returnedData := 0
	sourcesUsed := make([]domain.SourceName, 0, len(outcomes))
	perSourceLatency := make(map[domain.SourceName]int64, len(outcomes))
	reported := make([]domain.SourceOutcome, 0, len(outcomes))

	for _, outcome := range outcomes {
		perSourceLatency[outcome.outcome.Source] = outcome.outcome.LatencyMs
		reported = append(reported, outcome.outcome)

		switch outcome.outcome.Status {
		case domain.SourceStatusSkipped:
			// Not configured; excluded from coverage accounting.
			continue
		case domain.SourceStatusError:
			attempted++
			slog.Warn("source_error",
				"trace_id", traceID,
				"source", outcome.outcome.Source,
				"message", outcome.outcome.Message,
			)
			continue
		}

		attempted++
		if len(outcome.results) > 0 {
			returnedData++
			sourcesUsed = append(sourcesUsed, outcome.outcome.Source)
			lists[outcome.outcome.Source] = outcome.results
		}
	}

	fused := fuseResults(lists, params.algorithm, params.rrfK, params.weights)
	ratio, tier := scoreTrust(fused)
	fused, policyWarning := uc.policy.Apply(fused)
	fused = trimResults(fused, params.topK)

	coverage := 0.0
	if attempted > 0 {
		coverage = float64(returnedData) / float64(attempted)
	}

	resp := &domain.RetrievalResponse{
		Results:            fused,
		SourcesUsed:        sourcesUsed,
		FusionMethod:       params.algorithm,
		EvidenceQuality:    tier,
		MultiSourceRatio:   ratio,
		Coverage:           coverage,
		LatencyMs:          time.Since(start).Milliseconds(),
		PerSourceLatencyMs: perSourceLatency,
		SourceOutcomes:     reported,
		PolicyWarning:      policyWarning,
		TraceID:            traceID,
	}

	if uc.cache != nil {
		uc.cache.Set(ctx, key, resp, uc.cfg.CacheTTL)
	}
	uc.recordOutcome(ctx, params, resp)

	return resp, nil
}

func (uc *RetrieveUseCase) resolveParams(ctx context.Context, req domain.RetrievalRequest) resolvedParams {
	params := resolvedParams{
		topK:      uc.cfg.TopK,
		timeout:   time.Duration(uc.cfg.TimeoutMs) * time.Millisecond,
		rrfK:      uc.cfg.RRFK,
		algorithm: uc.cfg.FusionAlgorithm,
		weights:   uc.cfg.Weights,
	}

	if exp := activeExperiment(ctx, uc.experiments); exp != nil {
		params.experimentID = exp.ID
		if exp.Parameters.TopK > 0 {
			params.topK = exp.Parameters.TopK
		}
		if exp.Parameters.TimeoutMs > 0 {
			params.timeout = time.Duration(exp.Parameters.TimeoutMs) * time.Millisecond
		}
		if exp.Parameters.RRFK > 0 {
			params.rrfK = exp.Parameters.RRFK
		}
		if exp.Parameters.FusionAlgorithm != "" {
			params.algorithm = domain.ParseFusionAlgorithm(exp.Parameters.FusionAlgorithm)
		}
		if len(exp.Parameters.Weights) > 0 {
			params.weights = exp.Parameters.Weights
		}
		if len(exp.Parameters.Sources) > 0 {
			params.pinned = exp.Parameters.Sources
		}
	}

	if req.TopK > 0 {
		params.topK = req.TopK
	}
	if req.TimeoutMs > 0 {
		params.timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	return params
}

func (uc *RetrieveUseCase) selectSources(req domain.RetrievalRequest, params resolvedParams) []domain.SourceName {
	configured := make([]domain.SourceName, 0, len(uc.adapters))
	for _, source := range domain.CanonicalSourceOrder {
		if _, ok := uc.adapters[source]; ok {
			configured = append(configured, source)
		}
	}

	if len(params.pinned) > 0 {
		return intersectSources(params.pinned, configured)
	}
	return routeSources(req.Query, req.Filters, configured)
}

type sourceOutcome struct {
	outcome domain.SourceOutcome
	results []domain.SearchResult
}

// fanOut queries every selected source concurrently under its own timeout.
// A slow or failing source never delays the others beyond that timeout, and
// no source failure is allowed to fail the request.
func (uc *RetrieveUseCase) fanOut(ctx context.Context, req domain.RetrievalRequest, params resolvedParams, selected []domain.SourceName) []sourceOutcome {
	outcomes := make([]sourceOutcome, len(selected))
	var group errgroup.Group

	for i, source := range selected {
		adapter := uc.adapters[source]
		group.Go(func() error {
			started := time.Now()
			queryCtx, cancel := context.WithTimeout(ctx, params.timeout)
			defer cancel()

			reply := adapter.Query(queryCtx, ports.SourceQuery{
				Query:   req.Query,
				Filters: req.Filters,
				TopK:    params.topK,
			})

			outcomes[i] = sourceOutcome{
				outcome: domain.SourceOutcome{
					Source:    source,
					Status:    reply.Status,
					Message:   reply.Message,
					LatencyMs: time.Since(started).Milliseconds(),
					Results:   len(reply.Results),
				},
				results: reply.Results,
			}
			return nil
		})
	}

	_ = group.Wait()
	return outcomes
}

func (uc *RetrieveUseCase) recordOutcome(ctx context.Context, params resolvedParams, resp *domain.RetrievalResponse) {
	if uc.publisher != nil {
		uc.publisher.PublishRetrievalTrace(ctx, resp)
	}
	if params.experimentID == "" || uc.experiments == nil {
		return
	}

	outcome := domain.ExperimentOutcome{
		TraceID:    resp.TraceID,
		Coverage:   resp.Coverage,
		ResultLen:  len(resp.Results),
		Trust:      resp.EvidenceQuality,
		LatencyMs:  resp.LatencyMs,
		RecordedAt: time.Now().UTC(),
	}
	if err := uc.experiments.AppendOutcome(ctx, params.experimentID, outcome); err != nil {
		slog.Warn("append_experiment_outcome", "experiment_id", params.experimentID, "error", err)
	}
	if uc.publisher != nil {
		uc.publisher.PublishExperimentOutcome(ctx, params.experimentID, outcome)
	}
}

// cacheKey fingerprints (query, filters, topK). Field order in the struct is
// fixed, so the JSON encoding is stable.
func cacheKey(query string, filters domain.SearchFilter, topK int) string {
	payload, _ := json.Marshal(struct {
		Query   string              `json:"q"`
		Filters domain.SearchFilter `json:"f"`
		TopK    int                 `json:"k"`
	}{query, filters, topK})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
