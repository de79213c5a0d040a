package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.RetrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := rt.retriever.Retrieve(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordCacheEvent(serviceName, resp.Cached)
		if !resp.Cached {
			rt.metrics.RecordRetrieval(serviceName, resp)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// answerResponse pairs the generated answer with the retrieval evidence it
// was grounded on.
type answerResponse struct {
	Answer    *domain.Answer            `json:"answer"`
	Retrieval *domain.RetrievalResponse `json:"retrieval"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.RetrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, retrieval, err := rt.answers.Answer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, answer.Confidence)
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: answer, Retrieval: retrieval})
}
