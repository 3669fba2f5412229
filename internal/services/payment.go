package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/clients"
	"digital-concert-hall/internal/models"
)

// Gateway names accepted by NewPaymentGateway
const (
	GatewayMock  = "mock"
	GatewayECPay = "ecpay"
)

// PaymentGateway starts a payment for an existing order
type PaymentGateway interface {
	Create(ctx context.Context, cred auth.Credential, orderNumber string) (*models.PaymentSession, error)
}

// NewPaymentGateway selects the gateway named in configuration
func NewPaymentGateway(name string, api clients.PaymentAPI, publicBaseURL string) (PaymentGateway, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GatewayMock:
		return NewMockGateway(publicBaseURL), nil
	case GatewayECPay:
		if api == nil {
			return nil, fmt.Errorf("ecpay gateway requires a payment API client")
		}
		return NewECPayGateway(api), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}
}

// ECPayGateway delegates to the external Payment API
type ECPayGateway struct {
	api clients.PaymentAPI
}

func NewECPayGateway(api clients.PaymentAPI) *ECPayGateway {
	return &ECPayGateway{api: api}
}

func (g *ECPayGateway) Create(ctx context.Context, cred auth.Credential, orderNumber string) (*models.PaymentSession, error) {
	return g.api.CreatePayment(ctx, cred, orderNumber)
}

// MockGateway sends the shopper to an in-app payment screen instead of a real provider
type MockGateway struct {
	baseURL string
}

// NewMockGateway creates a mock gateway. baseURL prefixes the generated links and may be empty.
func NewMockGateway(baseURL string) *MockGateway {
	return &MockGateway{baseURL: strings.TrimRight(baseURL, "/")}
}

// Create returns a redirect to the mock payment screen without any network call
func (g *MockGateway) Create(ctx context.Context, cred auth.Credential, orderNumber string) (*models.PaymentSession, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, models.NewValidationError("orderNumber", "order number is required")
	}

	q := url.Values{}
	q.Set("MerchantTradeNo", orderNumber)
	return &models.PaymentSession{
		OrderNumber: orderNumber,
		RedirectURL: g.baseURL + "/payment/mock?" + q.Encode(),
	}, nil
}

// Simulate builds the result URL the provider would redirect back to
func (g *MockGateway) Simulate(orderNumber string, success bool, message string) string {
	code := models.RtnCodeFailure
	if success {
		code = models.RtnCodeSuccess
	}
	if message == "" {
		if success {
			message = "Succeeded"
		} else {
			message = "Payment failed"
		}
	}

	q := url.Values{}
	q.Set("MerchantTradeNo", orderNumber)
	q.Set("RtnCode", code)
	q.Set("RtnMsg", message)
	return g.baseURL + "/payment/result?" + q.Encode()
}

// MockPaymentScreen describes the simulated provider page
type MockPaymentScreen struct {
	OrderNumber string `json:"orderNumber"`
	SuccessURL  string `json:"successUrl"`
	FailureURL  string `json:"failureUrl"`
}

// Screen returns the two outcomes the mock payment page offers
func (g *MockGateway) Screen(orderNumber string) MockPaymentScreen {
	return MockPaymentScreen{
		OrderNumber: orderNumber,
		SuccessURL:  g.Simulate(orderNumber, true, ""),
		FailureURL:  g.Simulate(orderNumber, false, ""),
	}
}
