package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalog_service/internal/domain"

	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	defaultFirestoreBaseURL = "https://firestore.googleapis.com/v1"
	firestorePageSize       = "300"
)

type FirestoreConfig struct {
	ProjectID         string
	APIKey            string
	BaseURL           string
	AppID             string
	PollInterval      time.Duration
	RequestsPerSecond int
	Timeout           time.Duration
}

// FirestoreStore keeps both collections under artifacts/{appId}/public/data in a
// Firestore database, talking to its REST API. Subscriptions are driven by Run,
// which polls the store and only delivers snapshots that changed.
type FirestoreStore struct {
	client       *resty.Client
	limiter      ratelimit.Limiter
	documents    string
	dataPath     string
	feed         *ChangeFeed
	pollInterval time.Duration
	now          func() time.Time
	log          *logrus.Logger
}

func NewFirestoreStore(cfg FirestoreConfig, logger *logrus.Logger) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: firestore project id is required", domain.ErrInvalidInput)
	}
	if cfg.AppID == "" {
		return nil, fmt.Errorf("%w: app id is required", domain.ErrInvalidInput)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFirestoreBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetQueryParam("key", cfg.APIKey)
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.New(cfg.RequestsPerSecond)
	}

	return &FirestoreStore{
		client:       client,
		limiter:      limiter,
		documents:    fmt.Sprintf("/projects/%s/databases/(default)/documents", cfg.ProjectID),
		dataPath:     fmt.Sprintf("artifacts/%s/public/data", cfg.AppID),
		feed:         NewChangeFeed(),
		pollInterval: pollInterval,
		now:          time.Now,
		log:          logger,
	}, nil
}

func (s *FirestoreStore) Feed() *ChangeFeed {
	return s.feed
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Run wakes every subscription once per poll interval until ctx is cancelled.
func (s *FirestoreStore) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	s.log.Infof("Repository: Polling Firestore every %s", s.pollInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.feed.NotifyAll()
		}
	}
}

func (s *FirestoreStore) collectionURL(collection string) string {
	return s.documents + "/" + s.dataPath + "/" + collection
}

func (s *FirestoreStore) documentURL(collection, id string) string {
	return s.collectionURL(collection) + "/" + url.PathEscape(id)
}

// request waits for a limiter slot. A context cancelled meanwhile ends the call before it is sent.
func (s *FirestoreStore) request(ctx context.Context) (*resty.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.limiter.Take()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.client.R().
		SetContext(ctx).
		SetError(&firestoreErrorResponse{}), nil
}

// responseError turns a failed call into an error, mapping NOT_FOUND to domain.ErrNotFound.
func responseError(res *resty.Response, what string) error {
	apiErr, _ := res.Error().(*firestoreErrorResponse)
	if res.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %w", what, domain.ErrNotFound)
	}
	if res.StatusCode() == http.StatusBadRequest {
		return fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, what, apiErr.String())
	}
	return fmt.Errorf("%s: firestore returned %d (%s)", what, res.StatusCode(), apiErr.String())
}

func (s *FirestoreStore) createDocument(ctx context.Context, collection string, fields map[string]firestoreValue) (*firestoreDocument, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	doc := &firestoreDocument{}
	res, err := req.
		SetBody(firestoreDocument{Fields: fields}).
		SetResult(doc).
		Post(s.collectionURL(collection))
	if err != nil {
		return nil, fmt.Errorf("could not create %s document: %w", collection, err)
	}
	if res.IsError() {
		return nil, responseError(res, "create "+collection+" document")
	}
	return doc, nil
}

func (s *FirestoreStore) getDocument(ctx context.Context, collection, id string) (*firestoreDocument, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	doc := &firestoreDocument{}
	res, err := req.
		SetResult(doc).
		Get(s.documentURL(collection, id))
	if err != nil {
		return nil, fmt.Errorf("could not get %s document: %w", collection, err)
	}
	if res.IsError() {
		return nil, responseError(res, fmt.Sprintf("%s with id %s", strings.TrimSuffix(collection, "s"), id))
	}
	return doc, nil
}

func (s *FirestoreStore) patchDocument(ctx context.Context, collection, id string, fields map[string]firestoreValue) (*firestoreDocument, error) {
	params := url.Values{}
	for _, field := range fieldMask(fields) {
		params.Add("updateMask.fieldPaths", field)
	}
	params.Set("currentDocument.exists", "true")

	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	doc := &firestoreDocument{}
	res, err := req.
		SetQueryParamsFromValues(params).
		SetBody(firestoreDocument{Fields: fields}).
		SetResult(doc).
		Patch(s.documentURL(collection, id))
	if err != nil {
		return nil, fmt.Errorf("could not update %s document: %w", collection, err)
	}
	if res.IsError() {
		return nil, responseError(res, fmt.Sprintf("%s with id %s", strings.TrimSuffix(collection, "s"), id))
	}
	return doc, nil
}

func (s *FirestoreStore) deleteDocument(ctx context.Context, collection, id string) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}
	res, err := req.
		SetQueryParam("currentDocument.exists", "true").
		Delete(s.documentURL(collection, id))
	if err != nil {
		return fmt.Errorf("could not delete %s document: %w", collection, err)
	}
	if res.IsError() {
		return responseError(res, fmt.Sprintf("%s with id %s", strings.TrimSuffix(collection, "s"), id))
	}
	return nil
}

func (s *FirestoreStore) listDocuments(ctx context.Context, collection string) ([]firestoreDocument, error) {
	var docs []firestoreDocument
	pageToken := ""
	for {
		req, err := s.request(ctx)
		if err != nil {
			return nil, err
		}
		page := &firestoreListResponse{}
		req.
			SetQueryParam("pageSize", firestorePageSize).
			SetResult(page)
		if pageToken != "" {
			req.SetQueryParam("pageToken", pageToken)
		}
		res, err := req.Get(s.collectionURL(collection))
		if err != nil {
			return nil, fmt.Errorf("could not list %s: %w", collection, err)
		}
		if res.IsError() {
			return nil, responseError(res, "list "+collection)
		}
		docs = append(docs, page.Documents...)
		if page.NextPageToken == "" {
			return docs, nil
		}
		pageToken = page.NextPageToken
	}
}

func (s *FirestoreStore) queryByField(ctx context.Context, collection, field, value string) ([]firestoreDocument, error) {
	body := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": collection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]string{"fieldPath": field},
					"op":    "EQUAL",
					"value": stringValue(value),
				},
			},
		},
	}
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	var results []firestoreQueryResult
	res, err := req.
		SetBody(body).
		SetResult(&results).
		Post(s.documents + "/" + s.dataPath + ":runQuery")
	if err != nil {
		return nil, fmt.Errorf("could not query %s: %w", collection, err)
	}
	if res.IsError() {
		return nil, responseError(res, "query "+collection)
	}
	docs := make([]firestoreDocument, 0, len(results))
	for _, r := range results {
		if r.Document != nil {
			docs = append(docs, *r.Document)
		}
	}
	return docs, nil
}

func (s *FirestoreStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	created := *category
	created.CreatedAt = s.now().UTC()
	doc, err := s.createDocument(ctx, CategoriesCollection, categoryFields(&created))
	if err != nil {
		s.log.Errorf("Repository: Failed to create category '%s': %v", created.Name, err)
		return nil, err
	}
	created.ID = documentID(doc.Name)
	s.log.Infof("Repository: Category created successfully with ID: %s, Name: %s", created.ID, created.Name)
	s.feed.Notify(CategoriesCollection)
	return &created, nil
}

func (s *FirestoreStore) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	doc, err := s.getDocument(ctx, CategoriesCollection, id)
	if err != nil {
		s.log.Warnf("Repository: Failed to get category by ID %s: %v", id, err)
		return nil, err
	}
	category := decodeCategory(*doc)
	return &category, nil
}

func (s *FirestoreStore) UpdateCategory(ctx context.Context, id string, updates domain.CategoryUpdate) (*domain.Category, error) {
	if updates.Empty() {
		return s.GetCategoryByID(ctx, id)
	}
	doc, err := s.patchDocument(ctx, CategoriesCollection, id, categoryUpdateFields(updates))
	if err != nil {
		s.log.Errorf("Repository: Failed to update category ID %s: %v", id, err)
		return nil, err
	}
	category := decodeCategory(*doc)
	s.log.Infof("Repository: Category updated successfully with ID: %s", id)
	s.feed.Notify(CategoriesCollection)
	return &category, nil
}

func (s *FirestoreStore) DeleteCategory(ctx context.Context, id string) error {
	if err := s.deleteDocument(ctx, CategoriesCollection, id); err != nil {
		s.log.Errorf("Repository: Failed to delete category ID %s: %v", id, err)
		return err
	}
	s.log.Infof("Repository: Category deleted successfully with ID: %s", id)
	s.feed.Notify(CategoriesCollection)
	return nil
}

func (s *FirestoreStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	docs, err := s.listDocuments(ctx, CategoriesCollection)
	if err != nil {
		s.log.Errorf("Repository: Failed to list categories: %v", err)
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, d := range docs {
		categories = append(categories, decodeCategory(d))
	}
	sortCategories(categories)
	return categories, nil
}

func (s *FirestoreStore) SubscribeCategories(ctx context.Context, onSnapshot func([]domain.Category), onError func(error)) (domain.Unsubscribe, error) {
	var last snapshotFingerprint
	refresh := func(ctx context.Context) error {
		categories, err := s.ListCategories(ctx)
		if err != nil {
			return err
		}
		if last.unchanged(categories) {
			return nil
		}
		onSnapshot(categories)
		return nil
	}
	return s.feed.subscribe(ctx, CategoriesCollection, refresh, onError), nil
}

func (s *FirestoreStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := *product
	created.CreatedAt = s.now().UTC()
	doc, err := s.createDocument(ctx, ProductsCollection, productFields(&created))
	if err != nil {
		s.log.Errorf("Repository: Failed to create product '%s': %v", created.Name, err)
		return nil, err
	}
	created.ID = documentID(doc.Name)
	s.log.Infof("Repository: Product created successfully with ID: %s, Name: %s", created.ID, created.Name)
	s.feed.Notify(ProductsCollection)
	return &created, nil
}

func (s *FirestoreStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	doc, err := s.getDocument(ctx, ProductsCollection, id)
	if err != nil {
		s.log.Warnf("Repository: Failed to get product by ID %s: %v", id, err)
		return nil, err
	}
	product := decodeProduct(*doc)
	return &product, nil
}

func (s *FirestoreStore) UpdateProduct(ctx context.Context, id string, updates domain.ProductUpdate) (*domain.Product, error) {
	if updates.Empty() {
		return s.GetProductByID(ctx, id)
	}
	doc, err := s.patchDocument(ctx, ProductsCollection, id, productUpdateFields(updates))
	if err != nil {
		s.log.Errorf("Repository: Failed to update product ID %s: %v", id, err)
		return nil, err
	}
	product := decodeProduct(*doc)
	s.log.Infof("Repository: Partial update successful for product ID %s", id)
	s.feed.Notify(ProductsCollection)
	return &product, nil
}

func (s *FirestoreStore) DeleteProduct(ctx context.Context, id string) error {
	if err := s.deleteDocument(ctx, ProductsCollection, id); err != nil {
		s.log.Errorf("Repository: Failed to delete product ID %s: %v", id, err)
		return err
	}
	s.log.Infof("Repository: Product deleted successfully with ID: %s", id)
	s.feed.Notify(ProductsCollection)
	return nil
}

func (s *FirestoreStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		docs []firestoreDocument
		err  error
	)
	if filter.All() {
		docs, err = s.listDocuments(ctx, ProductsCollection)
	} else {
		docs, err = s.queryByField(ctx, ProductsCollection, "category", filter.Category)
	}
	if err != nil {
		s.log.Errorf("Repository: Failed to list products (category %q): %v", filter.Category, err)
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, decodeProduct(d))
	}
	sortProducts(products)
	return products, nil
}

func (s *FirestoreStore) SubscribeProducts(ctx context.Context, filter domain.ProductFilter, onSnapshot func([]domain.Product), onError func(error)) (domain.Unsubscribe, error) {
	var last snapshotFingerprint
	refresh := func(ctx context.Context) error {
		products, err := s.ListProducts(ctx, filter)
		if err != nil {
			return err
		}
		if last.unchanged(products) {
			return nil
		}
		onSnapshot(products)
		return nil
	}
	return s.feed.subscribe(ctx, ProductsCollection, refresh, onError), nil
}

// snapshotFingerprint remembers the encoded form of the last delivered snapshot.
// It is only touched from the owning watcher goroutine.
type snapshotFingerprint struct {
	last  []byte
	valid bool
}

func (f *snapshotFingerprint) unchanged(snapshot any) bool {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return false
	}
	if f.valid && string(encoded) == string(f.last) {
		return true
	}
	f.last = encoded
	f.valid = true
	return false
}

var _ interface {
	domain.CategoryRepository
	domain.ProductRepository
} = (*FirestoreStore)(nil)
