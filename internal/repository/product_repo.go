package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catalog_service/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type postgresProductRepository struct {
	db    *sql.DB
	appID string
	feed  *ChangeFeed
	log   *logrus.Logger
}

func NewPostgresProductRepository(db *sql.DB, appID string, feed *ChangeFeed, logger *logrus.Logger) domain.ProductRepository {
	return &postgresProductRepository{
		db:    db,
		appID: appID,
		feed:  feed,
		log:   logger,
	}
}

const productColumns = `id, name, price, image_url, category, description, components_url, video_url, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Category, &p.Description, &p.ComponentsURL, &p.VideoURL, &p.CreatedAt)
	return p, err
}

func (r *postgresProductRepository) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := *product
	created.ID = uuid.NewString()

	query := `
        INSERT INTO products (id, app_id, name, price, image_url, category, description, components_url, video_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		created.ID, r.appID, created.Name, created.Price, created.ImageURL,
		created.Category, created.Description, created.ComponentsURL, created.VideoURL,
	).Scan(&created.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			r.log.Warnf("Repository: Check constraint violation for product '%s': %s", created.Name, pqErr.Message)
			return nil, fmt.Errorf("%w: product data constraint violation: %s", domain.ErrInvalidInput, pqErr.Message)
		}
		r.log.Errorf("Repository: Failed to create product '%s': %v", created.Name, err)
		return nil, fmt.Errorf("could not create product: %w", err)
	}

	r.log.Infof("Repository: Product created successfully with ID: %s, Name: %s", created.ID, created.Name)
	notifyChange(ctx, r.db, r.appID, ProductsCollection, r.log)
	return &created, nil
}

func (r *postgresProductRepository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE app_id = $1 AND id = $2`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, r.appID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Product with ID %s not found", id)
			return nil, fmt.Errorf("product with id %s %w", id, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get product by ID %s: %v", id, err)
		return nil, fmt.Errorf("could not get product by id: %w", err)
	}
	return &product, nil
}

func (r *postgresProductRepository) UpdateProduct(ctx context.Context, id string, updates domain.ProductUpdate) (*domain.Product, error) {
	if updates.Empty() {
		r.log.Infof("Repository: No fields provided for product update ID %s. Returning current product.", id)
		return r.GetProductByID(ctx, id)
	}

	setClauses := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if updates.Name != nil {
		add("name", *updates.Name)
	}
	if updates.Price != nil {
		add("price", *updates.Price)
	}
	if updates.ImageURL != nil {
		add("image_url", *updates.ImageURL)
	}
	if updates.Category != nil {
		add("category", *updates.Category)
	}
	if updates.Description != nil {
		add("description", *updates.Description)
	}
	if updates.ComponentsURL != nil {
		add("components_url", *updates.ComponentsURL)
	}
	if updates.VideoURL != nil {
		add("video_url", *updates.VideoURL)
	}

	args = append(args, r.appID, id)
	query := "UPDATE products SET " + strings.Join(setClauses, ", ") +
		fmt.Sprintf(" WHERE app_id = $%d AND id = $%d", len(args)-1, len(args))

	r.log.Debugf("Repository: Executing partial update query for ID %s: %s", id, query)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			r.log.Warnf("Repository: Check constraint violation for product update ID %s: %s", id, pqErr.Message)
			return nil, fmt.Errorf("%w: product data constraint violation: %s", domain.ErrInvalidInput, pqErr.Message)
		}
		r.log.Errorf("Repository: Failed to execute partial update for product ID %s: %v", id, err)
		return nil, fmt.Errorf("could not partially update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorf("Repository: Failed to get rows affected after partial update for ID %s: %v", id, err)
		return nil, fmt.Errorf("could not confirm product update: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnf("Repository: Product with ID %s not found for update (0 rows affected)", id)
		return nil, fmt.Errorf("product with id %s %w", id, domain.ErrNotFound)
	}

	r.log.Infof("Repository: Partial update successful for product ID %s. Fetching updated product.", id)
	notifyChange(ctx, r.db, r.appID, ProductsCollection, r.log)
	return r.GetProductByID(ctx, id)
}

func (r *postgresProductRepository) DeleteProduct(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE app_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, r.appID, id)
	if err != nil {
		r.log.Errorf("Repository: Failed to delete product ID %s: %v", id, err)
		return fmt.Errorf("could not delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorf("Repository: Failed to get rows affected after deleting product ID %s: %v", id, err)
		return fmt.Errorf("could not confirm product deletion: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnf("Repository: Attempted to delete non-existent product ID %s", id)
		return fmt.Errorf("product with id %s %w", id, domain.ErrNotFound)
	}

	r.log.Infof("Repository: Product deleted successfully with ID: %s", id)
	notifyChange(ctx, r.db, r.appID, ProductsCollection, r.log)
	return nil
}

func (r *postgresProductRepository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE app_id = $1`
	args := []interface{}{r.appID}
	if !filter.All() {
		query += ` AND category = $2`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Errorf("Repository: Failed to list products (category %q): %v", filter.Category, err)
		return nil, fmt.Errorf("could not list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			r.log.Errorf("Repository: Failed to scan product row: %v", err)
			return nil, fmt.Errorf("error scanning product data: %w", err)
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Repository: Error during products list iteration: %v", err)
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	r.log.Debugf("Repository: Retrieved %d products (category %q)", len(products), filter.Category)
	return products, nil
}

func (r *postgresProductRepository) SubscribeProducts(ctx context.Context, filter domain.ProductFilter, onSnapshot func([]domain.Product), onError func(error)) (domain.Unsubscribe, error) {
	refresh := func(ctx context.Context) error {
		products, err := r.ListProducts(ctx, filter)
		if err != nil {
			return err
		}
		onSnapshot(products)
		return nil
	}
	return r.feed.subscribe(ctx, ProductsCollection, refresh, onError), nil
}
