package httpadapter

import (
	"net/http"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidWeights):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrExperimentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
