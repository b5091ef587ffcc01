package fault

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPAdapter maps classified errors to HTTP responses.
type HTTPAdapter struct {
	logger *slog.Logger
}

// NewHTTPAdapter creates an adapter; a nil logger falls back to slog.Default.
func NewHTTPAdapter(logger *slog.Logger) *HTTPAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPAdapter{logger: logger}
}

// HTTPErrorResponse is the standard JSON error payload.
type HTTPErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusCodeFor maps an error to an HTTP status code. Unclassified errors
// map to 500.
func (a *HTTPAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	ce, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryRemote:
		return http.StatusBadGateway
	case CategoryStorage, CategoryMigration, CategoryInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteError logs err and writes the JSON error payload.
func (a *HTTPAdapter) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)

	resp := HTTPErrorResponse{Error: "internal error"}
	if ce, ok := AsClassified(err); ok {
		resp.Error = ce.Message()
		resp.Code = string(ce.Category())
		if len(ce.Context()) > 0 {
			resp.Details = ce.Context()
		}
	}

	logAttrs := []any{
		slog.Int("status", status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", append(logAttrs, slog.Any("error", err))...)
	} else {
		a.logger.Warn("request rejected", append(logAttrs, slog.Any("error", err))...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
