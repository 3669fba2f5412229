package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/models"

	"go.uber.org/zap"
)

// HTTPOrderClient is the OrderAPI over JSON/HTTP
type HTTPOrderClient struct {
	httpClient
}

// NewHTTPOrderClient creates an order client rooted at baseURL (e.g. https://api.example.com/api)
func NewHTTPOrderClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPOrderClient {
	return &HTTPOrderClient{httpClient: newHTTPClient(baseURL, timeout, logger)}
}

// CreateOrder posts a new order. The idempotency key lets the API collapse retries of the same submission.
func (c *HTTPOrderClient) CreateOrder(ctx context.Context, cred auth.Credential, req *models.OrderCreateRequest, idempotencyKey string) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var order models.Order
	if err := c.do(ctx, "create order", http.MethodPost, "/orders", cred, headers, req, &order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return nil, &models.UpstreamError{Op: "create order", StatusCode: http.StatusOK, Message: "response has no order number"}
	}
	return &order, nil
}

// GetOrder fetches the server-authoritative order
func (c *HTTPOrderClient) GetOrder(ctx context.Context, cred auth.Credential, orderNumber string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, models.NewValidationError("orderNumber", "order number is required")
	}

	var order models.Order
	err := c.do(ctx, "get order", http.MethodGet, "/orders/"+url.PathEscape(orderNumber), cred, nil, nil, &order)
	if err != nil {
		return nil, err
	}
	if order.OrderNumber == "" {
		order.OrderNumber = orderNumber
	}
	if err := order.Validate(); err != nil {
		return nil, &models.UpstreamError{Op: "get order", StatusCode: http.StatusOK, Message: fmt.Sprintf("invalid order: %v", err)}
	}
	return &order, nil
}
