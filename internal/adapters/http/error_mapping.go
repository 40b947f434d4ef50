package httpadapter

import (
	"net/http"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrInsufficientEvidence):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrQuotaExhausted):
		return http.StatusPaymentRequired
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps wrapped internals out of responses.
func publicErrorMessage(err error) string {
	for _, kind := range []error{
		domain.ErrInvalidInput,
		domain.ErrUnauthorized,
		domain.ErrInsufficientEvidence,
		domain.ErrRateLimited,
		domain.ErrQuotaExhausted,
		domain.ErrTemporary,
	} {
		if domain.IsKind(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
