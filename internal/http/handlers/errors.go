package handlers

import (
	"context"
	"errors"
	"net/http"

	"promoreel/internal/domain"
)

// statusClientClosedRequest is nginx's code for a client that hung up.
const statusClientClosedRequest = 499

// classify maps an error to its HTTP status, stable code and client message.
// Retryable, filter and configuration kinds are checked before the generic
// generation failures because scene and concept errors wrap them.
func classify(err error) (int, string, string) {
	var input *domain.InputError
	switch {
	case errors.As(err, &input):
		return http.StatusBadRequest, "bad_request", input.Error()
	case errors.Is(err, domain.ErrInputInvalid):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "authentication required"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "insufficient_credits", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "generation backend is rate limited, retry later"
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "generation timed out, retry later"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled", "request canceled"
	case errors.Is(err, domain.ErrContentFiltered):
		return http.StatusUnprocessableEntity, "content_filtered", err.Error()
	case errors.Is(err, domain.ErrConfigurationMissing):
		return http.StatusServiceUnavailable, "configuration_missing", "generation backend is not configured"
	case errors.Is(err, domain.ErrNoViableConcepts):
		return http.StatusBadGateway, "no_viable_concepts", err.Error()
	case errors.Is(err, domain.ErrConceptGenerationFailed):
		return http.StatusBadGateway, "concept_generation_failed", err.Error()
	case errors.Is(err, domain.ErrSceneGenerationFailed):
		return http.StatusBadGateway, "scene_generation_failed", err.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
