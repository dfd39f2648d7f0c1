package repository

import (
	"context"
	"sort"
	"sync"

	"catalog_service/internal/domain"
)

const (
	CategoriesCollection = "categories"
	ProductsCollection   = "products"
)

// ChangeFeed fans change signals for a collection out to every open subscription on it.
// Backends call Notify after a write (or when the store reports one); each subscription
// then reloads its full snapshot.
type ChangeFeed struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Notify wakes every subscription on collection.
func (f *ChangeFeed) Notify(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for w := range f.watchers[collection] {
		w.kick()
	}
}

// NotifyAll wakes every subscription, e.g. after a lost connection to the store.
func (f *ChangeFeed) NotifyAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, set := range f.watchers {
		for w := range set {
			w.kick()
		}
	}
}

// Subscribers reports the number of open subscriptions on collection.
func (f *ChangeFeed) Subscribers(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[collection])
}

func (f *ChangeFeed) subscribe(ctx context.Context, collection string, refresh func(context.Context) error, onError func(error)) domain.Unsubscribe {
	w := newWatcher(refresh, onError)

	f.mu.Lock()
	if f.watchers[collection] == nil {
		f.watchers[collection] = make(map[*watcher]struct{})
	}
	f.watchers[collection][w] = struct{}{}
	f.mu.Unlock()

	w.onExit = func() { f.remove(collection, w) }
	w.start(ctx)

	return w.stop
}

func (f *ChangeFeed) remove(collection string, w *watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.watchers[collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(f.watchers, collection)
		}
	}
}

// watcher runs one subscription. Signals are coalesced: many writes between two
// loads produce a single reload, and loads never overlap.
type watcher struct {
	refresh func(context.Context) error
	onError func(error)
	onExit  func()

	signal chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newWatcher(refresh func(context.Context) error, onError func(error)) *watcher {
	return &watcher{
		refresh: refresh,
		onError: onError,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (w *watcher) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.kick()
	go w.run(ctx)
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if w.onExit != nil {
			w.onExit()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signal:
			err := w.refresh(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil && w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *watcher) kick() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// stop cancels the subscription and waits for its goroutine to exit.
// It must not be called from inside the snapshot callback.
func (w *watcher) stop() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

func sortCategories(categories []domain.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		if !categories[i].CreatedAt.Equal(categories[j].CreatedAt) {
			return categories[i].CreatedAt.Before(categories[j].CreatedAt)
		}
		return categories[i].ID < categories[j].ID
	})
}

func sortProducts(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
}
