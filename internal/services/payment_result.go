package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/clients"
	"digital-concert-hall/internal/models"

	"go.uber.org/zap"
)

// PaymentResultParams are the query parameters the provider returns with, plus the
// shopper whose browser brought them back
type PaymentResultParams struct {
	MerchantTradeNo string
	RtnCode         string
	RtnMsg          string
	Owner           string
}

// Outcome is what the result page shows
type Outcome struct {
	Result        models.PaymentResult `json:"result"`
	State         models.CheckoutState `json:"state"`
	Order         *models.Order        `json:"order,omitempty"`
	OrderError    string               `json:"orderError,omitempty"`
	RedirectTo    string               `json:"redirectTo,omitempty"`
	RedirectAfter time.Duration        `json:"-"`
}

// PaymentResultService interprets the provider's return and finalizes the checkout
type PaymentResultService struct {
	checkout      *CheckoutService
	orders        clients.OrderAPI
	auth          auth.Authenticator
	redirectDelay time.Duration
	logger        *zap.Logger
}

// NewPaymentResultService creates the result handler. A zero delay means DefaultRedirectDelay.
func NewPaymentResultService(checkout *CheckoutService, orders clients.OrderAPI, authenticator auth.Authenticator, redirectDelay time.Duration, logger *zap.Logger) *PaymentResultService {
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}
	if authenticator == nil {
		authenticator = auth.ContextAuthenticator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentResultService{
		checkout:      checkout,
		orders:        orders,
		auth:          authenticator,
		redirectDelay: redirectDelay,
		logger:        logger,
	}
}

// RedirectDelay returns the configured auto-redirect delay
func (s *PaymentResultService) RedirectDelay() time.Duration {
	return s.redirectDelay
}

// Handle classifies the result and resolves the checkout. On success the finalized order is
// fetched for display; a failed fetch is reported but does not change the classification.
func (s *PaymentResultService) Handle(ctx context.Context, p PaymentResultParams) (*Outcome, error) {
	result := models.ClassifyPaymentResult(p.MerchantTradeNo, p.RtnCode, p.RtnMsg)
	if result.OrderNumber == "" {
		return nil, models.NewValidationError("MerchantTradeNo", "order number is required")
	}

	state, err := s.checkout.Resolve(ctx, p.Owner, result)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Result: result, State: state}
	if state != models.CheckoutCompleted {
		return outcome, nil
	}

	outcome.RedirectTo = OrderPath(result.OrderNumber)
	outcome.RedirectAfter = s.redirectDelay

	cred, ok := s.auth.Credential(ctx)
	if !ok {
		outcome.OrderError = "log in to view the order details"
		return outcome, nil
	}

	order, err := s.orders.GetOrder(ctx, cred, result.OrderNumber)
	if err != nil {
		s.logger.Warn("failed to fetch completed order",
			zap.String("order_number", result.OrderNumber),
			zap.Error(err),
		)
		outcome.OrderError = err.Error()
		return outcome, nil
	}
	outcome.Order = order
	return outcome, nil
}

// OrderPath is the order-detail page for orderNumber
func OrderPath(orderNumber string) string {
	return "/orders/" + url.PathEscape(strings.TrimSpace(orderNumber))
}
