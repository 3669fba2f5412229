package server

import (
	"net/http"
	"time"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/handlers"
	"digital-concert-hall/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds every non-streaming request
const DefaultRequestTimeout = 60 * time.Second

// RouterConfig carries everything the router mounts
type RouterConfig struct {
	Logger         *zap.Logger
	Sessions       *middleware.SessionMiddleware
	Auth           *auth.BearerAuthenticator
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	RequestTimeout time.Duration

	Health   *handlers.HealthHandler
	Session  *handlers.SessionHandler
	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Payment  *handlers.PaymentHandler
}

// NewRouter builds the HTTP routes of the storefront
func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = middleware.RateLimit(cfg.RateLimiter)
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", cfg.Health.Health)

	withTimeout := chimiddleware.Timeout(timeout)

	// Everything below knows the shopper and, when present, their credential
	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Shopper)
		r.Use(cfg.Auth.Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Route("/session", func(r chi.Router) {
				r.Use(withTimeout)
				r.Get("/", cfg.Session.Me)
				r.Put("/token", cfg.Session.StoreToken)
				r.Delete("/token", cfg.Session.ClearToken)
			})

			r.Route("/cart", func(r chi.Router) {
				// Streams until the client disconnects
				r.Get("/events", cfg.Cart.Events)

				r.Group(func(r chi.Router) {
					r.Use(withTimeout)
					r.Get("/", cfg.Cart.GetCart)
					r.Delete("/", cfg.Cart.Clear)
					r.Get("/count", cfg.Cart.Count)
					r.Post("/items", cfg.Cart.AddItem)
					r.Patch("/items/{type}/{id}", cfg.Cart.UpdateItem)
					r.Delete("/items/{type}/{id}", cfg.Cart.RemoveItem)
				})
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Use(withTimeout)
				r.Get("/", cfg.Checkout.GetCheckout)
				r.Post("/direct", cfg.Checkout.StartDirect)
				r.Post("/cart", cfg.Checkout.CheckoutCart)
				r.With(limit).Post("/pay", cfg.Checkout.Pay)
				r.Get("/{orderNumber}", cfg.Checkout.GetCheckout)
				r.With(limit).Post("/{orderNumber}/pay", cfg.Checkout.Pay)
			})
		})

		r.Route("/payment", func(r chi.Router) {
			// Held open for the redirect delay
			r.Get("/result/redirect", cfg.Payment.ResultRedirect)

			r.Group(func(r chi.Router) {
				r.Use(withTimeout)
				r.Get("/mock", cfg.Payment.MockScreen)
				r.With(limit).Post("/mock/simulate", cfg.Payment.MockSimulate)
				r.Get("/result", cfg.Payment.Result)
			})
		})
	})

	return r
}
