package handlers

import (
	"net/http"
	"strings"

	"digital-concert-hall/internal/middleware"
	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/services"
	"digital-concert-hall/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CheckoutHandler serves the checkout page data and starts payments
type CheckoutHandler struct {
	checkout *services.CheckoutService
	sessions *storage.SessionStore
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout *services.CheckoutService, sessions *storage.SessionStore, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		sessions: sessions,
		logger:   logger,
	}
}

type cartCheckoutResponse struct {
	OrderNumber string        `json:"orderNumber"`
	CheckoutURL string        `json:"checkoutUrl"`
	Order       *models.Order `json:"order"`
}

// StartDirect stores a buy-now selection and returns the checkout it opens
func (h *CheckoutHandler) StartDirect(w http.ResponseWriter, r *http.Request) {
	var direct models.DirectCheckout
	if err := decodeJSON(r, &direct); err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	session, err := h.checkout.SaveDirect(r.Context(), h.sessions.ForRequest(w, r), &direct)
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, session, h.logger)
}

// CheckoutCart turns the shopper's cart into an order
func (h *CheckoutHandler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.CheckoutCart(r.Context(), middleware.OwnerFromContext(r.Context()), returnPath(r, "/cart"))
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, cartCheckoutResponse{
		OrderNumber: order.OrderNumber,
		CheckoutURL: "/checkout/" + order.OrderNumber,
		Order:       order,
	}, h.logger)
}

// GetCheckout resolves the order or buy-now selection shown on the checkout page
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))

	session, err := h.checkout.Enter(r.Context(), services.EntryParams{
		OrderNumber: orderNumber,
		Owner:       middleware.OwnerFromContext(r.Context()),
		Session:     h.sessions.ForRequest(w, r),
		ReturnPath:  returnPath(r, ""),
	})
	if err != nil {
		writeServiceError(w, r, err, session, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, session, h.logger)
}

// Pay creates a payment for the checkout. The response carries either a redirect URL or
// an auto-submitting form for the browser.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))

	session, err := h.checkout.InitiatePayment(r.Context(), services.PaymentParams{
		OrderNumber: orderNumber,
		Owner:       middleware.OwnerFromContext(r.Context()),
		Session:     h.sessions.ForRequest(w, r),
		ReturnPath:  returnPath(r, ""),
	})
	if err != nil {
		writeServiceError(w, r, err, session, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, session, h.logger)
}

// returnPath reads the page the shopper should come back to after logging in.
// Only same-site paths are honored.
func returnPath(r *http.Request, fallback string) string {
	p := strings.TrimSpace(r.URL.Query().Get("return"))
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}
