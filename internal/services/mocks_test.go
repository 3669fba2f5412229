package services

import (
	"context"
	"testing"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/storage"

	"github.com/stretchr/testify/mock"
)

type mockOrderAPI struct {
	mock.Mock
}

func (m *mockOrderAPI) CreateOrder(ctx context.Context, cred auth.Credential, req *models.OrderCreateRequest, idempotencyKey string) (*models.Order, error) {
	args := m.Called(ctx, cred, req, idempotencyKey)
	if order := args.Get(0); order != nil {
		return order.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderAPI) GetOrder(ctx context.Context, cred auth.Credential, orderNumber string) (*models.Order, error) {
	args := m.Called(ctx, cred, orderNumber)
	if order := args.Get(0); order != nil {
		return order.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Create(ctx context.Context, cred auth.Credential, orderNumber string) (*models.PaymentSession, error) {
	args := m.Called(ctx, cred, orderNumber)
	if session := args.Get(0); session != nil {
		return session.(*models.PaymentSession), args.Error(1)
	}
	return nil, args.Error(1)
}

var testCred = auth.Credential{Token: "token-123", User: auth.User{ID: "user-1"}}

func authedContext() context.Context {
	return auth.WithCredential(context.Background(), testCred)
}

// checkoutFixture wires a CheckoutService over in-memory stores and mocks
type checkoutFixture struct {
	service  *CheckoutService
	carts    *CartService
	orders   *mockOrderAPI
	gateway  *mockGateway
	backing  *storage.MemoryStore
	session  *storage.MemoryStore
	notifier *CartNotifier
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	backing := storage.NewMemoryStore()
	notifier := NewCartNotifier(nil)
	carts := NewCartService(storage.Namespaced(backing, "cart"), notifier, nil)
	orders := &mockOrderAPI{}
	gateway := &mockGateway{}

	service := NewCheckoutService(CheckoutConfig{
		Orders:  orders,
		Gateway: gateway,
		Carts:   carts,
		Records: storage.Namespaced(backing, "checkout"),
	})

	t.Cleanup(func() {
		orders.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	return &checkoutFixture{
		service:  service,
		carts:    carts,
		orders:   orders,
		gateway:  gateway,
		backing:  backing,
		session:  storage.NewMemoryStore(),
		notifier: notifier,
	}
}
