package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/olshev/transcript-insight/internal/core/ports"
	"github.com/olshev/transcript-insight/internal/observability/metrics"
)

const serviceName = "transcript-insight"

type TrafficConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
}

type Router struct {
	retriever   ports.Retriever
	answers     ports.AnswerService
	experiments ports.ExperimentService
	metrics     *metrics.ServerMetrics
	traffic     TrafficConfig
}

func NewRouter(
	retriever ports.Retriever,
	answers ports.AnswerService,
	experiments ports.ExperimentService,
	serverMetrics *metrics.ServerMetrics,
	traffic TrafficConfig,
) *Router {
	return &Router{
		retriever:   retriever,
		answers:     answers,
		experiments: experiments,
		metrics:     serverMetrics,
		traffic:     traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/answer", rt.answer)
	mux.HandleFunc("/v1/experiments", rt.experimentsCollection)
	mux.HandleFunc("/v1/experiments/", rt.experimentsItem)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.traffic.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.traffic.MaxConcurrent, rt.traffic.BackpressureWait)
	}
	if rt.traffic.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Errors go out as {error, message}: a short category plus the detail.
func writeError(w http.ResponseWriter, err error) {
	writeErrorMessage(w, mapErrorToHTTPStatus(err), err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
