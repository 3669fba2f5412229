package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/clients"
	"digital-concert-hall/internal/config"
	"digital-concert-hall/internal/handlers"
	"digital-concert-hall/internal/middleware"
	"digital-concert-hall/internal/services"
	"digital-concert-hall/internal/storage"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Payment attempts allowed per shopper per window
const (
	paymentAttempts = 10
	paymentWindow   = time.Minute
)

// Dependencies are the external resources the server is assembled from
type Dependencies struct {
	// Store backs carts and checkout records and must outlive a restart in production
	Store    storage.Store
	Sessions sessions.Store
	Orders   clients.OrderAPI
	Payments clients.PaymentAPI
	DB       *sql.DB
	Logger   *zap.Logger
}

// App is the assembled storefront
type App struct {
	Handler     http.Handler
	Carts       *services.CartService
	Checkout    *services.CheckoutService
	Redirector  *services.Redirector
	RateLimiter *middleware.RateLimiter
}

// New wires services and handlers from configuration
func New(cfg *config.Config, deps Dependencies) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gateway, err := services.NewPaymentGateway(cfg.Payment.Gateway, deps.Payments, cfg.Payment.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure payment gateway: %w", err)
	}
	mock, _ := gateway.(*services.MockGateway)

	authenticator := auth.NewBearerAuthenticator(deps.Sessions, cfg.Session.Name, logger)
	notifier := services.NewCartNotifier(logger)
	carts := services.NewCartService(storage.Namespaced(deps.Store, "cart"), notifier, logger)

	checkout := services.NewCheckoutService(services.CheckoutConfig{
		Orders:        deps.Orders,
		Gateway:       gateway,
		Carts:         carts,
		Records:       storage.Namespaced(deps.Store, "checkout"),
		Authenticator: authenticator,
		LoginPath:     cfg.Payment.LoginPath,
		ConfirmPaid:   mock == nil,
		Logger:        logger,
	})
	results := services.NewPaymentResultService(checkout, deps.Orders, authenticator, cfg.Payment.RedirectDelay, logger)
	redirector := services.NewRedirector()
	limiter := middleware.NewRateLimiter(paymentAttempts, paymentWindow)

	handler := NewRouter(RouterConfig{
		Logger:         logger,
		Sessions:       middleware.NewSessionMiddleware(deps.Sessions, cfg.Session.Name, logger),
		Auth:           authenticator,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health:         handlers.NewHealthHandler(deps.DB, logger),
		Session:        handlers.NewSessionHandler(authenticator, logger),
		Cart:           handlers.NewCartHandler(carts, logger),
		Checkout:       handlers.NewCheckoutHandler(checkout, storage.NewSessionStore(deps.Sessions, cfg.Session.Name), logger),
		Payment:        handlers.NewPaymentHandler(results, checkout, mock, redirector, logger),
	})

	return &App{
		Handler:     handler,
		Carts:       carts,
		Checkout:    checkout,
		Redirector:  redirector,
		RateLimiter: limiter,
	}, nil
}

// NewCookieStore creates the session store shared by the shopper id, the bearer token
// and the buy-now descriptor
func NewCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
