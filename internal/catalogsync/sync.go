// Package catalogsync keeps a live mirror of the catalog collections and turns
// every snapshot into re-rendered page fragments.
package catalogsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog_service/internal/domain"
	"catalog_service/internal/render"

	"github.com/sirupsen/logrus"
)

// Store is the subset of the remote store the mirror reads from.
type Store interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SubscribeCategories(ctx context.Context, onSnapshot func([]domain.Category), onError func(error)) (domain.Unsubscribe, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	SubscribeProducts(ctx context.Context, filter domain.ProductFilter, onSnapshot func([]domain.Product), onError func(error)) (domain.Unsubscribe, error)
}

type Renderer interface {
	CategoryFragments(categories []domain.Category, products []domain.Product) ([]render.Fragment, error)
	ProductFragments(products []domain.Product, filter domain.ProductFilter, categories []domain.Category) ([]render.Fragment, error)
}

// Publisher receives what changed on the page. Implementations must not block.
type Publisher interface {
	PublishFragments(fragments []render.Fragment)
	PublishMessage(msg render.Message)
}

type Status struct {
	Ready            bool      `json:"ready"`
	SignedIn         bool      `json:"signedIn"`
	CategoriesLoaded bool      `json:"categoriesLoaded"`
	ProductsLoaded   bool      `json:"productsLoaded"`
	Categories       int       `json:"categories"`
	Products         int       `json:"products"`
	Filter           string    `json:"filter"`
	LastError        string    `json:"lastError,omitempty"`
	LastErrorAt      time.Time `json:"lastErrorAt,omitempty"`
}

const (
	msgCategoriesFailed = "Error al cargar las categorías. Por favor, inténtalo de nuevo."
	msgProductsFailed   = "Error al cargar productos. Inténtalo más tarde."
	msgFilteredFailed   = "Error al cargar productos por categoría. Inténtalo más tarde."
)

type Sync struct {
	store     Store
	renderer  Renderer
	publisher Publisher
	log       *logrus.Logger

	mu               sync.RWMutex
	categories       []domain.Category
	products         []domain.Product
	filter           domain.ProductFilter
	signedIn         bool
	categoriesLoaded bool
	productsLoaded   bool
	message          *render.Message
	loadMessage      *render.Message
	categoriesFailed bool
	productsFailed   bool
	lastErr          error
	lastErrAt        time.Time
	ready            chan struct{}

	// subMu serialises subscription changes. It is never taken from a snapshot callback.
	subMu          sync.Mutex
	subCtx         context.Context
	stopCategories domain.Unsubscribe
	stopProducts   domain.Unsubscribe
}

// New returns an idle mirror; it starts subscribing on HandleAuthState or an explicit Subscribe call.
// A nil publisher discards page updates.
func New(store Store, renderer Renderer, publisher Publisher, logger *logrus.Logger) *Sync {
	if publisher == nil {
		publisher = discardPublisher{}
	}
	return &Sync{
		store:     store,
		renderer:  renderer,
		publisher: publisher,
		log:       logger,
		ready:     make(chan struct{}),
		subCtx:    context.Background(),
	}
}

// SubscribeCategories opens (or re-opens) the standing category subscription.
func (s *Sync) SubscribeCategories(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	_, err := s.subscribeCategoriesLocked(ctx)
	return err
}

func (s *Sync) SubscribeProductsAll(ctx context.Context) error {
	return s.SubscribeProductsByCategory(ctx, "")
}

// SubscribeProductsByCategory replaces the current product view. The previous
// product subscription is torn down before the new one opens.
func (s *Sync) SubscribeProductsByCategory(ctx context.Context, category string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	_, err := s.subscribeProductsLocked(ctx, domain.ProductFilter{Category: category})
	return err
}

func (s *Sync) subscribeCategoriesLocked(ctx context.Context) (<-chan struct{}, error) {
	if s.stopCategories != nil {
		s.stopCategories()
		s.stopCategories = nil
	}
	s.subCtx = ctx

	first := newFirstSignal()
	stop, err := s.store.SubscribeCategories(ctx,
		func(categories []domain.Category) {
			s.applyCategories(categories)
			first.fire()
		},
		func(err error) {
			s.loadFailed(true, msgCategoriesFailed, err)
			first.fire()
		},
	)
	if err != nil {
		s.loadFailed(true, msgCategoriesFailed, err)
		return nil, fmt.Errorf("could not subscribe to categories: %w", err)
	}
	s.stopCategories = stop
	s.log.Debug("Sync: Subscribed to categories")
	return first.done, nil
}

func (s *Sync) subscribeProductsLocked(ctx context.Context, filter domain.ProductFilter) (<-chan struct{}, error) {
	if s.stopProducts != nil {
		s.stopProducts()
		s.stopProducts = nil
	}

	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()

	failure := msgProductsFailed
	if !filter.All() {
		failure = msgFilteredFailed
	}

	first := newFirstSignal()
	stop, err := s.store.SubscribeProducts(ctx, filter,
		func(products []domain.Product) {
			s.applyProducts(filter, products)
			first.fire()
		},
		func(err error) {
			s.loadFailed(false, failure, err)
			first.fire()
		},
	)
	if err != nil {
		s.loadFailed(false, failure, err)
		return nil, fmt.Errorf("could not subscribe to products: %w", err)
	}
	s.stopProducts = stop
	s.log.Debugf("Sync: Subscribed to products (category %q)", filter.Category)
	return first.done, nil
}

// HandleAuthState follows the signed-in identity: signing in opens both standing
// subscriptions, signing out drops them and clears the mirror.
func (s *Sync) HandleAuthState(ctx context.Context, event domain.AuthEvent) error {
	if event.SignedIn {
		s.mu.Lock()
		s.signedIn = true
		s.mu.Unlock()

		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, err := s.subscribeCategoriesLocked(ctx); err != nil {
			return err
		}
		_, err := s.subscribeProductsLocked(ctx, domain.ProductFilter{})
		return err
	}

	s.subMu.Lock()
	s.stopAllLocked()
	s.subMu.Unlock()

	s.mu.Lock()
	s.signedIn = false
	s.categories = nil
	s.products = nil
	s.filter = domain.ProductFilter{}
	s.categoriesLoaded = true
	s.productsLoaded = true
	s.categoriesFailed = false
	s.productsFailed = false
	s.clearLoadErrorLocked()
	s.markReadyLocked()
	s.mu.Unlock()

	s.log.Info("Sync: Signed out, catalog mirror cleared")
	s.publishCategories(nil, nil)
	s.publishProducts(nil, domain.ProductFilter{}, nil)
	return nil
}

// Reload re-opens the active subscriptions and waits until each has delivered
// its first snapshot, so a caller that just wrote sees its own write.
func (s *Sync) Reload(ctx context.Context) error {
	s.subMu.Lock()
	if s.stopCategories == nil && s.stopProducts == nil {
		s.subMu.Unlock()
		return nil
	}
	subCtx := s.subCtx
	s.mu.RLock()
	filter := s.filter
	s.mu.RUnlock()

	var waits []<-chan struct{}
	if s.stopCategories != nil {
		done, err := s.subscribeCategoriesLocked(subCtx)
		if err != nil {
			s.subMu.Unlock()
			return err
		}
		waits = append(waits, done)
	}
	if s.stopProducts != nil {
		done, err := s.subscribeProductsLocked(subCtx, filter)
		if err != nil {
			s.subMu.Unlock()
			return err
		}
		waits = append(waits, done)
	}
	s.subMu.Unlock()

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops every subscription.
func (s *Sync) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.stopAllLocked()
}

func (s *Sync) stopAllLocked() {
	if s.stopCategories != nil {
		s.stopCategories()
		s.stopCategories = nil
	}
	if s.stopProducts != nil {
		s.stopProducts()
		s.stopProducts = nil
	}
}

func (s *Sync) applyCategories(categories []domain.Category) {
	s.mu.Lock()
	s.categories = categories
	s.categoriesLoaded = true
	s.categoriesFailed = false
	s.clearLoadErrorLocked()
	products := s.products
	s.markReadyLocked()
	s.mu.Unlock()

	s.log.Debugf("Sync: Category snapshot with %d categories", len(categories))
	s.publishCategories(categories, products)
}

func (s *Sync) applyProducts(filter domain.ProductFilter, products []domain.Product) {
	s.mu.Lock()
	if s.filter != filter {
		s.mu.Unlock()
		return
	}
	s.products = products
	s.productsLoaded = true
	s.productsFailed = false
	s.clearLoadErrorLocked()
	categories := s.categories
	s.markReadyLocked()
	s.mu.Unlock()

	s.log.Debugf("Sync: Product snapshot with %d products (category %q)", len(products), filter.Category)
	s.publishProducts(products, filter, categories)
	// slideshow samples on the category cards follow the product view
	s.publishCategories(categories, products)
}

// loadFailed shows the error and still counts the load as complete so the page
// never waits on it forever. The error stays visible through Status.
func (s *Sync) loadFailed(categories bool, text string, err error) {
	s.mu.Lock()
	if categories {
		s.categoriesLoaded = true
		s.categoriesFailed = true
	} else {
		s.productsLoaded = true
		s.productsFailed = true
	}
	s.lastErr = err
	s.lastErrAt = time.Now().UTC()
	msg := render.Message{Kind: render.MessageError, Text: text}
	s.message = &msg
	s.loadMessage = &msg
	s.markReadyLocked()
	s.mu.Unlock()

	s.log.Errorf("Sync: %s: %v", text, err)
	s.publisher.PublishMessage(msg)
}

// clearLoadErrorLocked forgets the last load failure once every failed collection
// has delivered a snapshot again. A newer message from Notify is kept.
func (s *Sync) clearLoadErrorLocked() {
	if s.categoriesFailed || s.productsFailed || s.lastErr == nil {
		return
	}
	if s.message == s.loadMessage {
		s.message = nil
	}
	s.loadMessage = nil
	s.lastErr = nil
	s.lastErrAt = time.Time{}
}

func (s *Sync) markReadyLocked() {
	if s.categoriesLoaded && s.productsLoaded {
		select {
		case <-s.ready:
		default:
			close(s.ready)
		}
	}
}

func (s *Sync) publishCategories(categories []domain.Category, products []domain.Product) {
	fragments, err := s.renderer.CategoryFragments(categories, products)
	if err != nil {
		s.log.Errorf("Sync: Skipping category fragments: %v", err)
		return
	}
	s.publisher.PublishFragments(fragments)
}

func (s *Sync) publishProducts(products []domain.Product, filter domain.ProductFilter, categories []domain.Category) {
	fragments, err := s.renderer.ProductFragments(products, filter, categories)
	if err != nil {
		s.log.Errorf("Sync: Skipping product fragments: %v", err)
		return
	}
	s.publisher.PublishFragments(fragments)
}

// Notify sends a transient message to the page without touching the mirror.
func (s *Sync) Notify(msg render.Message) {
	s.mu.Lock()
	s.message = &msg
	s.mu.Unlock()
	s.publisher.PublishMessage(msg)
}

// Ready is closed once both initial loads have completed, successfully or not.
func (s *Sync) Ready() <-chan struct{} {
	return s.ready
}

func (s *Sync) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

func (s *Sync) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

func (s *Sync) Filter() domain.ProductFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// LastMessage is the most recent transient message, if any.
func (s *Sync) LastMessage() *render.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.message == nil {
		return nil
	}
	msg := *s.message
	return &msg
}

func (s *Sync) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Ready:            s.categoriesLoaded && s.productsLoaded,
		SignedIn:         s.signedIn,
		CategoriesLoaded: s.categoriesLoaded,
		ProductsLoaded:   s.productsLoaded,
		Categories:       len(s.categories),
		Products:         len(s.products),
		Filter:           s.filter.Category,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		st.LastErrorAt = s.lastErrAt
	}
	return st
}

type firstSignal struct {
	once sync.Once
	done chan struct{}
}

func newFirstSignal() *firstSignal {
	return &firstSignal{done: make(chan struct{})}
}

func (f *firstSignal) fire() {
	f.once.Do(func() { close(f.done) })
}

type discardPublisher struct{}

func (discardPublisher) PublishFragments([]render.Fragment) {}
func (discardPublisher) PublishMessage(render.Message)      {}
