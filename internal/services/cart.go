package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/storage"

	"go.uber.org/zap"
)

// DefaultQuantity is used when an add request does not say how many units to add
const DefaultQuantity = 1

// CartService owns the shopper's cart. Operations on one owner's cart are serialized.
type CartService struct {
	store    storage.Store
	notifier *CartNotifier
	logger   *zap.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// NewCartService creates a cart service persisting into store. Keys are shopper ids.
func NewCartService(store storage.Store, notifier *CartNotifier, logger *zap.Logger) *CartService {
	if notifier == nil {
		notifier = NewCartNotifier(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Notifier returns the notifier cart changes are published on
func (s *CartService) Notifier() *CartNotifier {
	return s.notifier
}

// GetCart returns the persisted cart. A missing or unreadable value yields an empty cart.
func (s *CartService) GetCart(ctx context.Context, owner string) (*models.Cart, error) {
	unlock := s.locks.Lock(owner)
	defer unlock()

	return s.load(ctx, owner)
}

// AddItem adds quantity units of item, merging with an existing (id, type) line
func (s *CartService) AddItem(ctx context.Context, owner string, item models.CartItemInput, quantity int) (*models.Cart, error) {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return nil, models.NewValidationError("id", "item id is required")
	}
	if quantity < 1 {
		return nil, models.NewValidationError("quantity", "quantity must be at least 1")
	}

	return s.mutate(ctx, owner, func(cart *models.Cart) {
		itemType := models.NormalizeItemType(item.Type)
		if i := cart.Find(id, itemType); i >= 0 {
			cart.Items[i].Quantity += quantity
			return
		}
		cart.Items = append(cart.Items, models.CartItem{
			ID:            id,
			Type:          itemType,
			Name:          item.Name,
			Price:         models.SanitizePrice(item.Price),
			Quantity:      quantity,
			ConcertID:     item.ConcertID,
			PerformanceID: item.PerformanceID,
		})
	})
}

// RemoveItem deletes the (id, type) line. Removing a missing line is not an error.
func (s *CartService) RemoveItem(ctx context.Context, owner, id, itemType string) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(cart *models.Cart) {
		if i := cart.Find(id, itemType); i >= 0 {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		}
	})
}

// UpdateQuantity sets the line's quantity. Zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, owner, id, itemType string, quantity int) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(cart *models.Cart) {
		i := cart.Find(id, itemType)
		if i < 0 {
			return
		}
		if quantity <= 0 {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return
		}
		cart.Items[i].Quantity = quantity
	})
}

// Clear resets the cart to empty and persists it
func (s *CartService) Clear(ctx context.Context, owner string) (*models.Cart, error) {
	return s.mutate(ctx, owner, func(cart *models.Cart) {
		cart.Items = []models.CartItem{}
	})
}

// Count returns the number of units in the cart
func (s *CartService) Count(ctx context.Context, owner string) (int, error) {
	cart, err := s.GetCart(ctx, owner)
	if err != nil {
		return 0, err
	}
	return cart.Count(), nil
}

// mutate applies fn under the owner's lock, then persists and publishes the change before releasing it.
// The new cart is returned only when the write succeeded.
func (s *CartService) mutate(ctx context.Context, owner string, fn func(cart *models.Cart)) (*models.Cart, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, models.NewValidationError("owner", "cart owner is required")
	}

	unlock := s.locks.Lock(owner)
	cart, err := s.load(ctx, owner)
	if err != nil {
		unlock()
		return nil, err
	}

	fn(cart)
	cart.Recalculate()
	cart.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, owner, cart); err != nil {
		unlock()
		return nil, err
	}

	s.notifier.Publish(CartChanged{Owner: owner, Count: cart.Count(), Total: cart.Total})
	unlock()
	return cart, nil
}

func (s *CartService) load(ctx context.Context, owner string) (*models.Cart, error) {
	data, err := s.store.Get(ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewEmptyCart(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		s.logger.Warn("discarding unreadable cart",
			zap.String("owner", owner),
			zap.Error(err),
		)
		return models.NewEmptyCart(), nil
	}

	cart.Sanitize()
	return &cart, nil
}

func (s *CartService) save(ctx context.Context, owner string, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.store.Set(ctx, owner, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}
