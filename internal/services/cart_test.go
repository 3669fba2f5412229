package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"digital-concert-hall/internal/models"
	"digital-concert-hall/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// failingStore rejects every write
type failingStore struct {
	storage.Store
}

func (f failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func newCartService() (*CartService, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewCartService(store, NewCartNotifier(nil), nil), store
}

func ticket(id string, price any) models.CartItemInput {
	return models.CartItemInput{ID: id, Type: "ticket", Name: "Seat " + id, Price: price}
}

func TestCartService_GetCartEmpty(t *testing.T) {
	service, _ := newCartService()

	cart, err := service.GetCart(context.Background(), "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)
}

func TestCartService_GetCartIsIdempotent(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 2)
	require.NoError(t, err)

	first, err := service.GetCart(ctx, "shopper-1")
	require.NoError(t, err)
	second, err := service.GetCart(ctx, "shopper-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCartService_AddMergesDuplicates(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)
	cart, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 1000.0, cart.Total)
}

func TestCartService_AddDistinguishesTypes(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)
	cart, err := service.AddItem(ctx, "shopper-1", models.CartItemInput{ID: "T1", Type: "merch", Price: 300}, 1)
	require.NoError(t, err)

	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 800.0, cart.Total)
}

func TestCartService_AddDefaultsTypeAndSanitizesPrice(t *testing.T) {
	service, _ := newCartService()

	cart, err := service.AddItem(context.Background(), "shopper-1", models.CartItemInput{ID: "T1", Price: "not a number"}, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, models.DefaultItemType, cart.Items[0].Type)
	assert.Zero(t, cart.Items[0].Price)
	assert.Zero(t, cart.Total)
}

func TestCartService_AddValidation(t *testing.T) {
	service, store := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", models.CartItemInput{Price: 100}, 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = service.AddItem(ctx, "shopper-1", ticket("T1", 100), 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Zero(t, store.Len())
}

func TestCartService_UpdateQuantity(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)

	cart, err := service.UpdateQuantity(ctx, "shopper-1", "T1", "ticket", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, 2000.0, cart.Total)

	cart, err = service.UpdateQuantity(ctx, "shopper-1", "T1", "ticket", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	count, err := service.Count(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCartService_UpdateQuantityNegativeRemoves(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 2)
	require.NoError(t, err)

	cart, err := service.UpdateQuantity(ctx, "shopper-1", "T1", "", -3)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_RemoveItem(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "shopper-1", ticket("T2", 250), 2)
	require.NoError(t, err)

	cart, err := service.RemoveItem(ctx, "shopper-1", "T1", "ticket")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "T2", cart.Items[0].ID)
	assert.Equal(t, 500.0, cart.Total)

	// Removing something that is not there is not an error
	cart, err = service.RemoveItem(ctx, "shopper-1", "T9", "ticket")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestCartService_Clear(t *testing.T) {
	service, store := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)

	cart, err := service.Clear(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	persisted, err := store.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Contains(t, string(persisted), `"items":[]`)
}

func TestCartService_CorruptStorageRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := storage.NewMemoryStore()
	service := NewCartService(store, nil, zap.New(core))
	ctx := context.Background()

	for _, raw := range []string{"{not json", `"a string"`, `{"items":"nope"}`} {
		require.NoError(t, store.Set(ctx, "shopper-1", []byte(raw)))

		cart, err := service.GetCart(ctx, "shopper-1")
		require.NoError(t, err, raw)
		assert.Empty(t, cart.Items, raw)
		assert.Zero(t, cart.Total, raw)
	}

	assert.Equal(t, 3, logs.FilterMessage("discarding unreadable cart").Len())

	// The next mutation overwrites the corrupt value
	cart, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestCartService_SanitizesPersistedData(t *testing.T) {
	service, store := newCartService()
	ctx := context.Background()

	raw := `{"items":[{"id":"T1","type":"ticket","price":500,"quantity":1},{"id":"T1","type":"ticket","price":500,"quantity":1},{"id":"","price":1,"quantity":1}],"total":12345}`
	require.NoError(t, store.Set(ctx, "shopper-1", []byte(raw)))

	cart, err := service.GetCart(ctx, "shopper-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 1000.0, cart.Total)
}

func TestCartService_WriteFailureIsReturned(t *testing.T) {
	service := NewCartService(failingStore{Store: storage.NewMemoryStore()}, nil, nil)

	cart, err := service.AddItem(context.Background(), "shopper-1", ticket("T1", 500), 1)
	assert.Error(t, err)
	assert.Nil(t, cart)
}

func TestCartService_OwnersAreIsolated(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 1)
	require.NoError(t, err)

	other, err := service.GetCart(ctx, "shopper-2")
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestCartService_ConcurrentAdds(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 100), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := service.GetCart(ctx, "shopper-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 50, cart.Items[0].Quantity)
	assert.Equal(t, 5000.0, cart.Total)
}

func TestCartService_PublishesChanges(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	events, unsubscribe := service.Notifier().Subscribe("shopper-1")
	defer unsubscribe()

	_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 500), 2)
	require.NoError(t, err)

	evt := <-events
	assert.Equal(t, CartChanged{Owner: "shopper-1", Count: 2, Total: 1000}, evt)
}

func TestCartService_LatestEventMatchesFinalCart(t *testing.T) {
	service, _ := newCartService()
	ctx := context.Background()

	events, unsubscribe := service.Notifier().Subscribe("shopper-1")
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddItem(ctx, "shopper-1", ticket("T1", 100), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The buffer holds one event and keeps the newest
	evt := <-events
	assert.Equal(t, CartChanged{Owner: "shopper-1", Count: 50, Total: 5000}, evt)
}
