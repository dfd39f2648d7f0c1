package repository

import (
	"context"
	"testing"
	"time"

	"catalog_service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestMemoryStore() *MemoryStore {
	store := NewMemoryStore(testLogger())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	store.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return store
}

func TestMemoryStore_CategoryCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()

	created, err := store.CreateCategory(ctx, &domain.Category{Name: "Teclados", ImageURL: "https://img/k.png"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.GetCategoryByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Teclados", got.Name)

	updated, err := store.UpdateCategory(ctx, created.ID, domain.CategoryUpdate{Description: ptr("Mecánicos")})
	require.NoError(t, err)
	assert.Equal(t, "Teclados", updated.Name)
	assert.Equal(t, "Mecánicos", updated.Description)

	require.NoError(t, store.DeleteCategory(ctx, created.ID))

	_, err = store.GetCategoryByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.DeleteCategory(ctx, created.ID), domain.ErrNotFound)

	_, err = store.UpdateCategory(ctx, "missing", domain.CategoryUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_ListOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()

	for _, name := range []string{"C", "A", "B"} {
		_, err := store.CreateCategory(ctx, &domain.Category{Name: name, ImageURL: "x"})
		require.NoError(t, err)
	}

	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, categoryNames(categories))
}

func TestMemoryStore_ProductFilterIsExactMatch(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()

	for _, p := range []domain.Product{
		{Name: "K1", Price: 10, Category: "Teclados"},
		{Name: "K2", Price: 20, Category: "teclados"},
		{Name: "M1", Price: 30, Category: "Mouses"},
		{Name: "K3", Price: 40, Category: "Teclados "},
	} {
		p := p
		_, err := store.CreateProduct(ctx, &p)
		require.NoError(t, err)
	}

	filtered, err := store.ListProducts(ctx, domain.ProductFilter{Category: "Teclados"})
	require.NoError(t, err)
	assert.Equal(t, []string{"K1"}, productNames(filtered))

	all, err := store.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryStore_ProductPartialUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore()

	created, err := store.CreateProduct(ctx, &domain.Product{Name: "K1", Price: 10, Category: "Teclados", VideoURL: "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)

	updated, err := store.UpdateProduct(ctx, created.ID, domain.ProductUpdate{Price: ptr(12.5)})
	require.NoError(t, err)
	assert.Equal(t, 12.5, updated.Price)
	assert.Equal(t, "K1", updated.Name)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", updated.VideoURL)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	require.NoError(t, store.DeleteProduct(ctx, created.ID))
	_, err = store.GetProductByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_SubscribeDeliversFullSnapshots(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store := newTestMemoryStore()
	_, err := store.CreateCategory(ctx, &domain.Category{Name: "A", ImageURL: "x"})
	require.NoError(t, err)

	got := newSnapshots[domain.Category]()
	unsubscribe, err := store.SubscribeCategories(ctx, got.push, func(err error) { t.Errorf("unexpected error: %v", err) })
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, categoryNames(got.next(t)))

	b, err := store.CreateCategory(ctx, &domain.Category{Name: "B", ImageURL: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, categoryNames(got.until(t, func(c []domain.Category) bool { return len(c) == 2 })))

	require.NoError(t, store.DeleteCategory(ctx, b.ID))
	assert.Equal(t, []string{"A"}, categoryNames(got.until(t, func(c []domain.Category) bool { return len(c) == 1 })))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, store.Feed().Subscribers(CategoriesCollection))
}

func TestMemoryStore_SubscribeProductsFiltered(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	store := newTestMemoryStore()

	got := newSnapshots[domain.Product]()
	unsubscribe, err := store.SubscribeProducts(ctx, domain.ProductFilter{Category: "Mouses"}, got.push, nil)
	require.NoError(t, err)
	defer unsubscribe()

	assert.Empty(t, got.next(t))

	_, err = store.CreateProduct(ctx, &domain.Product{Name: "K1", Price: 1, Category: "Teclados"})
	require.NoError(t, err)
	_, err = store.CreateProduct(ctx, &domain.Product{Name: "M1", Price: 1, Category: "Mouses"})
	require.NoError(t, err)

	products := got.until(t, func(p []domain.Product) bool { return len(p) > 0 })
	assert.Equal(t, []string{"M1"}, productNames(products))
}

func TestMemoryStore_CancelledContextEndsSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	store := newTestMemoryStore()

	got := newSnapshots[domain.Category]()
	unsubscribe, err := store.SubscribeCategories(ctx, got.push, nil)
	require.NoError(t, err)
	got.next(t)

	cancel()
	unsubscribe()
	assert.Equal(t, 0, store.Feed().Subscribers(CategoriesCollection))
}
