package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("error encoding response", zap.Error(err))
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrOutOfStock), errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, model.ErrMarketplaceRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrTransportFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Infrastructure failures are logged
// and hidden behind a generic message.
func writeError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		jsonError(w, status, msg)
		return
	}
	jsonError(w, status, err.Error())
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
