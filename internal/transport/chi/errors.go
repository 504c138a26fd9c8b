package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	logpkg "github.com/kailas-cloud/scorpius/internal/logger"
)

// errorHandler maps one domain sentinel onto an HTTP status and code.
type errorHandler struct {
	sentinel error
	status   int
	code     ErrorCode
}

// defaultErrorHandlers are tried in order; the first match wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		{domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed},
		{domain.ErrCollectionNotFound, http.StatusNotFound, CodeCollectionNotFound},
		{domain.ErrRetrieval, http.StatusBadGateway, CodeRetrievalFailed},
		{domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeQuotaExceeded},
		{domain.ErrProviderRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{domain.ErrProviderAuth, http.StatusBadGateway, CodeProviderError},
		{domain.ErrProviderTransient, http.StatusBadGateway, CodeProviderError},
		{domain.ErrProviderMalformed, http.StatusBadGateway, CodeProviderError},
		{domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable},
	}
}

func (s *Server) lookup(err error) (errorHandler, bool) {
	for _, h := range s.errorHandlers {
		if errors.Is(err, h.sentinel) {
			return h, true
		}
	}
	return errorHandler{}, false
}

func (s *Server) statusFor(err error) int {
	if h, ok := s.lookup(err); ok {
		return h.status
	}
	return http.StatusInternalServerError
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	h, ok := s.lookup(err)
	if !ok {
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}
	logger.Warn("domain error", zap.Error(err), zap.Int("status", h.status))
	writeError(w, h.status, h.code, safeDomainMessage(err))
}

// safeDomainMessage returns a message for the client without exposing internals.
// Validation and not-found errors describe caller input and are returned whole.
func safeDomainMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var nf *domain.CollectionNotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	for _, h := range defaultErrorHandlers() {
		if errors.Is(err, h.sentinel) {
			return h.sentinel.Error()
		}
	}
	return "internal error"
}

func errorCodeFor(err error) ErrorCode {
	for _, h := range defaultErrorHandlers() {
		if errors.Is(err, h.sentinel) {
			return h.code
		}
	}
	return CodeInternalError
}
