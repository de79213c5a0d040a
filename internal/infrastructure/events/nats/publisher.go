package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// Publisher emits retrieval traces and experiment outcomes on NATS subjects
// for offline analysis. Publishing is fire-and-forget: a broker outage is
// logged and the request proceeds.
type Publisher struct {
	conn           *nats.Conn
	traceSubject   string
	outcomeSubject string
	log            *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

func New(url, traceSubject, outcomeSubject string, options Options, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("transcript-insight"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:           conn,
		traceSubject:   traceSubject,
		outcomeSubject: outcomeSubject,
		log:            log,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// retrievalTrace is the published shape of a served request: enough for
// offline quality analysis without the chunk texts themselves.
type retrievalTrace struct {
	TraceID          string                      `json:"trace_id"`
	SourcesUsed      []domain.SourceName         `json:"sources_used"`
	FusionMethod     domain.FusionAlgorithm      `json:"fusion_method"`
	EvidenceQuality  domain.TrustTier            `json:"evidence_quality"`
	MultiSourceRatio float64                     `json:"multi_source_ratio"`
	Coverage         float64                     `json:"coverage"`
	LatencyMs        int64                       `json:"latency_ms"`
	ResultCount      int                         `json:"result_count"`
	Outcomes         []domain.SourceOutcome      `json:"outcomes"`
	PerSourceLatency map[domain.SourceName]int64 `json:"per_source_latency_ms"`
}

func (p *Publisher) PublishRetrievalTrace(_ context.Context, resp *domain.RetrievalResponse) {
	if resp == nil {
		return
	}
	p.publish(p.traceSubject, retrievalTrace{
		TraceID:          resp.TraceID,
		SourcesUsed:      resp.SourcesUsed,
		FusionMethod:     resp.FusionMethod,
		EvidenceQuality:  resp.EvidenceQuality,
		MultiSourceRatio: resp.MultiSourceRatio,
		Coverage:         resp.Coverage,
		LatencyMs:        resp.LatencyMs,
		ResultCount:      len(resp.Results),
		Outcomes:         resp.SourceOutcomes,
		PerSourceLatency: resp.PerSourceLatencyMs,
	})
}

func (p *Publisher) PublishExperimentOutcome(_ context.Context, experimentID string, outcome domain.ExperimentOutcome) {
	p.publish(p.outcomeSubject, struct {
		ExperimentID string                   `json:"experiment_id"`
		Outcome      domain.ExperimentOutcome `json:"outcome"`
	}{experimentID, outcome})
}

func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("marshal event", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
