package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func (rt *Router) experimentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createExperiment(w, r)
	case http.MethodGet:
		rt.listExperiments(w, r)
	default:
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) experimentsItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/experiments/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeErrorMessage(w, http.StatusBadRequest, "experiment id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.getExperiment(w, r, id)
	case action == "" && r.Method == http.MethodPut:
		rt.updateExperiment(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		rt.deleteExperiment(w, r, id)
	case action == "activate" && r.Method == http.MethodPost:
		rt.toggleExperiment(w, r, id, true)
	case action == "deactivate" && r.Method == http.MethodPost:
		rt.toggleExperiment(w, r, id, false)
	default:
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// writeExperimentResult wraps every successful experiment operation in the
// {operation, status, ...payload} envelope the API promises.
func writeExperimentResult(w http.ResponseWriter, httpStatus int, operation string, payload map[string]any) {
	body := map[string]any{"operation": operation, "status": "success"}
	for key, value := range payload {
		body[key] = value
	}
	writeJSON(w, httpStatus, body)
}

func (rt *Router) createExperiment(w http.ResponseWriter, r *http.Request) {
	var exp domain.Experiment
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	created, err := rt.experiments.Create(r.Context(), exp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeExperimentResult(w, http.StatusCreated, "create", map[string]any{"experiment": created})
}

func (rt *Router) listExperiments(w http.ResponseWriter, r *http.Request) {
	status := domain.ExperimentStatus(r.URL.Query().Get("status"))
	experiments, err := rt.experiments.List(r.Context(), r.URL.Query().Get("tag"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	if experiments == nil {
		experiments = []domain.Experiment{}
	}
	writeExperimentResult(w, http.StatusOK, "list", map[string]any{"experiments": experiments})
}

func (rt *Router) getExperiment(w http.ResponseWriter, r *http.Request, id string) {
	exp, err := rt.experiments.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeExperimentResult(w, http.StatusOK, "read", map[string]any{"experiment": exp})
}

func (rt *Router) updateExperiment(w http.ResponseWriter, r *http.Request, id string) {
	var exp domain.Experiment
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	exp.ID = id

	updated, err := rt.experiments.Update(r.Context(), exp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeExperimentResult(w, http.StatusOK, "update", map[string]any{"experiment": updated})
}

func (rt *Router) deleteExperiment(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.experiments.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeExperimentResult(w, http.StatusOK, "delete", map[string]any{"id": id})
}

func (rt *Router) toggleExperiment(w http.ResponseWriter, r *http.Request, id string, activate bool) {
	operation := "activate"
	call := rt.experiments.Activate
	if !activate {
		operation = "deactivate"
		call = rt.experiments.Deactivate
	}

	exp, err := call(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeExperimentResult(w, http.StatusOK, operation, map[string]any{"experiment": exp})
}
