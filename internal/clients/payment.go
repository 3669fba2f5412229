package clients

import (
	"context"
	"net/http"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/models"

	"go.uber.org/zap"
)

// HTTPPaymentClient is the PaymentAPI over JSON/HTTP
type HTTPPaymentClient struct {
	httpClient
}

// NewHTTPPaymentClient creates a payment client rooted at baseURL
func NewHTTPPaymentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPPaymentClient {
	return &HTTPPaymentClient{httpClient: newHTTPClient(baseURL, timeout, logger)}
}

type createPaymentRequest struct {
	OrderNumber string `json:"orderNumber"`
}

// CreatePayment asks the payment backend for a hosted payment page
func (c *HTTPPaymentClient) CreatePayment(ctx context.Context, cred auth.Credential, orderNumber string) (*models.PaymentSession, error) {
	if orderNumber == "" {
		return nil, models.NewValidationError("orderNumber", "order number is required")
	}

	var session models.PaymentSession
	err := c.do(ctx, "create payment", http.MethodPost, "/payment/create", cred, nil,
		createPaymentRequest{OrderNumber: orderNumber}, &session)
	if err != nil {
		return nil, err
	}

	if session.OrderNumber == "" {
		session.OrderNumber = orderNumber
	}
	if (session.RedirectURL == "") == (session.FormHTML == "") {
		return nil, &models.UpstreamError{
			Op:         "create payment",
			StatusCode: http.StatusOK,
			Message:    "response must carry exactly one of redirectUrl or redirectFormHtml",
		}
	}
	return &session, nil
}
