package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog_service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MemoryStore is an in-process document store for both collections. It backs the
// "memory" store backend and the tests.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	products   map[string]domain.Product
	feed       *ChangeFeed
	now        func() time.Time
	log        *logrus.Logger
}

func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		feed:       NewChangeFeed(),
		now:        time.Now,
		log:        logger,
	}
}

// Feed exposes the store's change feed.
func (s *MemoryStore) Feed() *ChangeFeed {
	return s.feed
}

func (s *MemoryStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	created := *category
	created.ID = uuid.NewString()
	created.CreatedAt = s.now().UTC()
	s.categories[created.ID] = created
	s.mu.Unlock()

	s.log.Infof("Repository: Category created successfully with ID: %s, Name: %s", created.ID, created.Name)
	s.feed.Notify(CategoriesCollection)
	return &created, nil
}

func (s *MemoryStore) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[id]
	if !ok {
		s.log.Warnf("Repository: Category with ID %s not found", id)
		return nil, fmt.Errorf("category with id %s %w", id, domain.ErrNotFound)
	}
	return &category, nil
}

func (s *MemoryStore) UpdateCategory(ctx context.Context, id string, updates domain.CategoryUpdate) (*domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	category, ok := s.categories[id]
	if !ok {
		s.mu.Unlock()
		s.log.Warnf("Repository: Category with ID %s not found for update", id)
		return nil, fmt.Errorf("category with id %s %w", id, domain.ErrNotFound)
	}
	updates.Apply(&category)
	s.categories[id] = category
	s.mu.Unlock()

	s.log.Infof("Repository: Category updated successfully with ID: %s", id)
	s.feed.Notify(CategoriesCollection)
	return &category, nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.categories[id]; !ok {
		s.mu.Unlock()
		s.log.Warnf("Repository: Attempted to delete non-existent category ID %s", id)
		return fmt.Errorf("category with id %s %w", id, domain.ErrNotFound)
	}
	delete(s.categories, id)
	s.mu.Unlock()

	s.log.Infof("Repository: Category deleted successfully with ID: %s", id)
	s.feed.Notify(CategoriesCollection)
	return nil
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	s.mu.RUnlock()

	sortCategories(categories)
	return categories, nil
}

func (s *MemoryStore) SubscribeCategories(ctx context.Context, onSnapshot func([]domain.Category), onError func(error)) (domain.Unsubscribe, error) {
	refresh := func(ctx context.Context) error {
		categories, err := s.ListCategories(ctx)
		if err != nil {
			return err
		}
		onSnapshot(categories)
		return nil
	}
	return s.feed.subscribe(ctx, CategoriesCollection, refresh, onError), nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	created := *product
	created.ID = uuid.NewString()
	created.CreatedAt = s.now().UTC()
	s.products[created.ID] = created
	s.mu.Unlock()

	s.log.Infof("Repository: Product created successfully with ID: %s, Name: %s", created.ID, created.Name)
	s.feed.Notify(ProductsCollection)
	return &created, nil
}

func (s *MemoryStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		s.log.Warnf("Repository: Product with ID %s not found", id)
		return nil, fmt.Errorf("product with id %s %w", id, domain.ErrNotFound)
	}
	return &product, nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, id string, updates domain.ProductUpdate) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	product, ok := s.products[id]
	if !ok {
		s.mu.Unlock()
		s.log.Warnf("Repository: Product with ID %s not found for update", id)
		return nil, fmt.Errorf("product with id %s %w", id, domain.ErrNotFound)
	}
	updates.Apply(&product)
	s.products[id] = product
	s.mu.Unlock()

	s.log.Infof("Repository: Partial update successful for product ID %s", id)
	s.feed.Notify(ProductsCollection)
	return &product, nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.products[id]; !ok {
		s.mu.Unlock()
		s.log.Warnf("Repository: Attempted to delete non-existent product ID %s", id)
		return fmt.Errorf("product with id %s %w", id, domain.ErrNotFound)
	}
	delete(s.products, id)
	s.mu.Unlock()

	s.log.Infof("Repository: Product deleted successfully with ID: %s", id)
	s.feed.Notify(ProductsCollection)
	return nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Match(p) {
			products = append(products, p)
		}
	}
	s.mu.RUnlock()

	sortProducts(products)
	return products, nil
}

func (s *MemoryStore) SubscribeProducts(ctx context.Context, filter domain.ProductFilter, onSnapshot func([]domain.Product), onError func(error)) (domain.Unsubscribe, error) {
	refresh := func(ctx context.Context) error {
		products, err := s.ListProducts(ctx, filter)
		if err != nil {
			return err
		}
		onSnapshot(products)
		return nil
	}
	return s.feed.subscribe(ctx, ProductsCollection, refresh, onError), nil
}
