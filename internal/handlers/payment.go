package handlers

import (
	"net/http"
	"strings"

	"digital-concert-hall/internal/middleware"
	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/services"

	"go.uber.org/zap"
)

// PaymentHandler serves the payment return page and the mock provider
type PaymentHandler struct {
	results    *services.PaymentResultService
	checkout   *services.CheckoutService
	mock       *services.MockGateway
	redirector *services.Redirector
	logger     *zap.Logger
}

// NewPaymentHandler creates a new payment handler. mock is nil when a real provider is configured.
func NewPaymentHandler(results *services.PaymentResultService, checkout *services.CheckoutService, mock *services.MockGateway, redirector *services.Redirector, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		results:    results,
		checkout:   checkout,
		mock:       mock,
		redirector: redirector,
		logger:     logger,
	}
}

type resultResponse struct {
	*services.Outcome
	RedirectAfterSeconds int `json:"redirectAfterSeconds,omitempty"`
}

// MockScreen describes the simulated provider page for an order
func (h *PaymentHandler) MockScreen(w http.ResponseWriter, r *http.Request) {
	if h.mock == nil {
		writeError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}

	orderNumber := strings.TrimSpace(r.URL.Query().Get("MerchantTradeNo"))
	if orderNumber == "" {
		writeServiceError(w, r, models.NewValidationError("MerchantTradeNo", "order number is required"), nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, h.mock.Screen(orderNumber), h.logger)
}

// MockSimulate sends the browser back to the result page as the provider would
func (h *PaymentHandler) MockSimulate(w http.ResponseWriter, r *http.Request) {
	if h.mock == nil {
		writeError(w, http.StatusNotFound, "Not found", h.logger)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeServiceError(w, r, models.NewValidationError("body", "invalid form"), nil, h.logger)
		return
	}

	orderNumber := strings.TrimSpace(r.PostForm.Get("MerchantTradeNo"))
	if orderNumber == "" {
		writeServiceError(w, r, models.NewValidationError("MerchantTradeNo", "order number is required"), nil, h.logger)
		return
	}

	var success bool
	switch r.PostForm.Get("outcome") {
	case "success":
		success = true
	case "failure":
	default:
		writeServiceError(w, r, models.NewValidationError("outcome", "outcome must be success or failure"), nil, h.logger)
		return
	}

	h.logger.Info("simulating payment result",
		zap.String("order_number", orderNumber),
		zap.Bool("success", success),
	)
	http.Redirect(w, r, h.mock.Simulate(orderNumber, success, r.PostForm.Get("message")), http.StatusSeeOther)
}

// Result interprets the provider's return parameters and finalizes the checkout
func (h *PaymentHandler) Result(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	outcome, err := h.results.Handle(r.Context(), services.PaymentResultParams{
		MerchantTradeNo: q.Get("MerchantTradeNo"),
		RtnCode:         q.Get("RtnCode"),
		RtnMsg:          q.Get("RtnMsg"),
		Owner:           middleware.OwnerFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	resp := resultResponse{Outcome: outcome}
	if outcome.RedirectTo != "" {
		resp.RedirectAfterSeconds = int(outcome.RedirectAfter.Seconds())
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// ResultRedirect holds the request until the redirect delay elapses, then sends the
// shopper to the order page. A client that leaves first cancels the redirect.
func (h *PaymentHandler) ResultRedirect(w http.ResponseWriter, r *http.Request) {
	orderNumber := strings.TrimSpace(r.URL.Query().Get("MerchantTradeNo"))
	if orderNumber == "" {
		writeServiceError(w, r, models.NewValidationError("MerchantTradeNo", "order number is required"), nil, h.logger)
		return
	}
	if !h.checkout.IsCompleted(r.Context(), orderNumber) {
		writeError(w, http.StatusConflict, "Payment has not completed for this order", h.logger)
		return
	}

	redirect := h.redirector.Schedule(h.results.RedirectDelay(), func() {})

	select {
	case <-redirect.Done():
		http.Redirect(w, r, services.OrderPath(orderNumber), http.StatusSeeOther)
	case <-redirect.Stopped():
		writeError(w, http.StatusServiceUnavailable, "Server is shutting down", h.logger)
	case <-r.Context().Done():
		redirect.Cancel()
	}
}
