// Package clients talks to the external Order and Payment APIs.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every upstream request
const DefaultTimeout = 30 * time.Second

// MaxResponseBytes caps how much of an upstream response body is read
const MaxResponseBytes = 1 << 20

// OrderAPI creates and reads orders
type OrderAPI interface {
	CreateOrder(ctx context.Context, cred auth.Credential, req *models.OrderCreateRequest, idempotencyKey string) (*models.Order, error)
	GetOrder(ctx context.Context, cred auth.Credential, orderNumber string) (*models.Order, error)
}

// PaymentAPI starts a hosted payment for an order
type PaymentAPI interface {
	CreatePayment(ctx context.Context, cred auth.Credential, orderNumber string) (*models.PaymentSession, error)
}

// httpClient holds what the order and payment clients share
type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func newHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) httpClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// errorBody is the error envelope returned by the upstream APIs
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends a JSON request and decodes a 2xx response into out.
// A 401 maps to models.ErrAuthExpired; any other failure is an *models.UpstreamError.
func (c *httpClient) do(ctx context.Context, op, method, path string, cred auth.Credential, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		c.logger.Warn("upstream request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
		)
		return &models.UpstreamError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response body"}
	}
	if len(respBody) > MaxResponseBytes {
		c.logger.Warn("upstream response too large",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: "response body too large"}
	}

	c.logger.Debug("upstream request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &models.AuthRequiredError{Expired: true}
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &models.UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body"}
	}
	return nil
}

func errorMessage(status int, body []byte) string {
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(status)
}
