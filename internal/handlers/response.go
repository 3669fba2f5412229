package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"digital-concert-hall/internal/models"

	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every error reply
type errorResponse struct {
	Error     string                  `json:"error"`
	Fields    map[string]string       `json:"fields,omitempty"`
	LoginURL  string                  `json:"login_url,omitempty"`
	Reauth    bool                    `json:"reauth,omitempty"`
	Retryable bool                    `json:"retryable,omitempty"`
	Checkout  *models.CheckoutSession `json:"checkout,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeError writes an error response in JSON format
func writeError(w http.ResponseWriter, status int, message string, logger *zap.Logger) {
	writeJSON(w, status, errorResponse{Error: message}, logger)
}

// writeServiceError maps domain errors to HTTP statuses. checkout, when set, is echoed
// so the client can render the state it ended in.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, checkout *models.CheckoutSession, logger *zap.Logger) {
	var (
		vErr    *models.ValidationError
		authErr *models.AuthRequiredError
		upErr   *models.UpstreamError
	)

	resp := errorResponse{Error: err.Error(), Checkout: checkout}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		resp.Fields = vErr.Fields
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
		resp.LoginURL = authErr.LoginURL
		resp.Reauth = authErr.Expired
	case errors.Is(err, models.ErrPaymentInProgress), errors.Is(err, models.ErrOrderAlreadyPaid):
		status = http.StatusConflict
	case errors.Is(err, models.ErrPaymentUnverified):
		status = http.StatusForbidden
	case errors.As(err, &upErr):
		status = http.StatusBadGateway
		resp.Retryable = upErr.Retryable()
	case errors.Is(err, models.ErrNoCheckout), errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled):
		logger.Debug("request canceled", zap.String("path", r.URL.Path))
		return
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Error = "Something went wrong. Please try again."
	}

	writeJSON(w, status, resp, logger)
}

// decodeJSON reads a JSON body into dst. Numbers are kept as json.Number so loosely
// typed fields can be coerced later.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewValidationError("body", "request body is required")
		}
		return models.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
