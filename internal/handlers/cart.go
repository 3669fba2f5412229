package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"digital-concert-hall/internal/middleware"
	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultHeartbeat is how often an idle cart event stream sends a comment line
const DefaultHeartbeat = 15 * time.Second

// CartHandler handles shopping cart requests
type CartHandler struct {
	carts     *services.CartService
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *services.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:     carts,
		logger:    logger,
		heartbeat: DefaultHeartbeat,
	}
}

type updateQuantityRequest struct {
	Quantity any `json:"quantity"`
}

type countResponse struct {
	Count int `json:"count"`
}

// GetCart returns the shopper's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart, h.logger)
}

// AddItem adds an item to the cart, merging with an existing line of the same id and type
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input models.CartItemInput
	if err := decodeJSON(r, &input); err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	quantity, err := parseQuantity(input.Quantity, services.DefaultQuantity)
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), middleware.OwnerFromContext(r.Context()), input, quantity)
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart, h.logger)
}

// UpdateItem sets a line's quantity; zero or less removes it
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	if req.Quantity == nil {
		writeServiceError(w, r, models.NewValidationError("quantity", "quantity is required"), nil, h.logger)
		return
	}

	quantity, err := parseQuantity(req.Quantity, 0)
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), middleware.OwnerFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "type"), quantity)
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart, h.logger)
}

// RemoveItem deletes a line from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), middleware.OwnerFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "type"))
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart, h.logger)
}

// Clear empties the cart. The caller must confirm with ?confirm=true.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeServiceError(w, r, models.NewValidationError("confirm", "clearing the cart must be confirmed"), nil, h.logger)
		return
	}

	cart, err := h.carts.Clear(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart, h.logger)
}

// Count returns the number of units in the cart for the header badge
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.carts.Count(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count}, h.logger)
}

// Events streams cart changes as server-sent events until the client disconnects
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	events, unsubscribe := h.carts.Notifier().Subscribe(owner)
	defer unsubscribe()

	cart, err := h.carts.GetCart(ctx, owner)
	if err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, services.CartChanged{Owner: owner, Count: cart.Count(), Total: cart.Total}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("cart event stream cannot flush", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, evt); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, evt services.CartChanged) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data)
	return err
}

// parseQuantity coerces a loosely typed quantity to a whole number. nil yields def.
func parseQuantity(v any, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	n, ok := models.CoerceNumber(v)
	if !ok || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, models.NewValidationError("quantity", "quantity must be a whole number")
	}
	return int(n), nil
}
