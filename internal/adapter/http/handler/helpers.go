package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/adapter/http/middleware"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/logger"
)

// maxBodyBytes bounds request bodies, webhooks included.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status of its kind. Unclassified errors
// are logged and reported without details.
func writeDomainError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, message string, err error) {
	status := mapDomainError(err)
	if status == http.StatusInternalServerError {
		l := logger.WithContext(r.Context(), log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		writeError(w, status, message, "")
		return
	}

	details := domain.ReasonOf(err)
	if details == "" {
		details = err.Error()
	}
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Kind:    string(domain.KindOf(err)),
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAdhesionNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrLoanTermsNotFound),
		errors.Is(err, domain.ErrRetraitNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrInstallmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrReconciliationConflict),
		errors.Is(err, domain.ErrStaleState),
		errors.Is(err, domain.ErrActiveTransaction),
		errors.Is(err, domain.ErrScheduleExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBusinessRuleViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidWebhookSignature),
		errors.Is(err, domain.ErrInvalidPhone),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into req and validates it. An empty body is
// accepted for requests whose fields are all optional.
func decode(r *http.Request, req any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(req)
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.InvalidInput("invalid request body: %v", err)
	}
	return dto.Validate(req)
}

// actor returns the caller resolved by the auth middleware.
func actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no actor on request")
	}
	return a, ok
}

// canView reports whether a may read records owned by clientID. Staff see all.
func canView(a domain.Actor, clientID string) bool {
	return a.Role.IsStaff() || a.ID == clientID
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
