package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catalog_service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type postgresCategoryRepository struct {
	db    *sql.DB
	appID string
	feed  *ChangeFeed
	log   *logrus.Logger
}

// NewPostgresCategoryRepository returns a category store scoped to appID. Writes are announced
// on the catalog_changes channel so every instance's subscriptions reload.
func NewPostgresCategoryRepository(db *sql.DB, appID string, feed *ChangeFeed, logger *logrus.Logger) domain.CategoryRepository {
	return &postgresCategoryRepository{
		db:    db,
		appID: appID,
		feed:  feed,
		log:   logger,
	}
}

func (r *postgresCategoryRepository) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	created := *category
	created.ID = uuid.NewString()

	query := `
        INSERT INTO categories (id, app_id, name, description, image_url)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, created.ID, r.appID, created.Name, created.Description, created.ImageURL).
		Scan(&created.CreatedAt)
	if err != nil {
		r.log.Errorf("Repository: Failed to create category '%s': %v", created.Name, err)
		return nil, fmt.Errorf("could not create category: %w", err)
	}

	r.log.Infof("Repository: Category created successfully with ID: %s, Name: %s", created.ID, created.Name)
	notifyChange(ctx, r.db, r.appID, CategoriesCollection, r.log)
	return &created, nil
}

func (r *postgresCategoryRepository) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	query := `
        SELECT id, name, description, image_url, created_at
        FROM categories
        WHERE app_id = $1 AND id = $2`
	category := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, r.appID, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.ImageURL,
		&category.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Category with ID %s not found", id)
			return nil, fmt.Errorf("category with id %s %w", id, domain.ErrNotFound)
		}
		r.log.Errorf("Repository: Failed to get category by ID %s: %v", id, err)
		return nil, fmt.Errorf("could not get category by id: %w", err)
	}
	return category, nil
}

func (r *postgresCategoryRepository) UpdateCategory(ctx context.Context, id string, updates domain.CategoryUpdate) (*domain.Category, error) {
	if updates.Empty() {
		r.log.Infof("Repository: No fields provided for category update ID %s. Returning current category.", id)
		return r.GetCategoryByID(ctx, id)
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
	if updates.Description != nil {
		add("description", *updates.Description)
	}
	if updates.ImageURL != nil {
		add("image_url", *updates.ImageURL)
	}

	args = append(args, r.appID, id)
	query := "UPDATE categories SET " + strings.Join(setClauses, ", ") +
		fmt.Sprintf(" WHERE app_id = $%d AND id = $%d", len(args)-1, len(args))

	r.log.Debugf("Repository: Executing partial update query for category ID %s: %s", id, query)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Errorf("Repository: Failed to update category ID %s: %v", id, err)
		return nil, fmt.Errorf("could not update category: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorf("Repository: Failed to get rows affected after updating category ID %s: %v", id, err)
		return nil, fmt.Errorf("could not confirm category update: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnf("Repository: Category with ID %s not found for update", id)
		return nil, fmt.Errorf("category with id %s %w", id, domain.ErrNotFound)
	}

	r.log.Infof("Repository: Category updated successfully with ID: %s", id)
	notifyChange(ctx, r.db, r.appID, CategoriesCollection, r.log)
	return r.GetCategoryByID(ctx, id)
}

func (r *postgresCategoryRepository) DeleteCategory(ctx context.Context, id string) error {
	query := `DELETE FROM categories WHERE app_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, r.appID, id)
	if err != nil {
		r.log.Errorf("Repository: Failed to delete category ID %s: %v", id, err)
		return fmt.Errorf("could not delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorf("Repository: Failed to get rows affected after deleting category ID %s: %v", id, err)
		return fmt.Errorf("could not confirm category deletion: %w", err)
	}
	if rowsAffected == 0 {
		r.log.Warnf("Repository: Attempted to delete non-existent category ID %s", id)
		return fmt.Errorf("category with id %s %w", id, domain.ErrNotFound)
	}

	r.log.Infof("Repository: Category deleted successfully with ID: %s", id)
	notifyChange(ctx, r.db, r.appID, CategoriesCollection, r.log)
	return nil
}

func (r *postgresCategoryRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `
        SELECT id, name, description, image_url, created_at
        FROM categories
        WHERE app_id = $1
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, r.appID)
	if err != nil {
		r.log.Errorf("Repository: Failed to list categories: %v", err)
		return nil, fmt.Errorf("could not list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Description, &category.ImageURL, &category.CreatedAt); err != nil {
			r.log.Errorf("Repository: Failed to scan category row: %v", err)
			return nil, fmt.Errorf("error scanning category data: %w", err)
		}
		categories = append(categories, category)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Repository: Error during categories list iteration: %v", err)
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	r.log.Debugf("Repository: Retrieved %d categories", len(categories))
	return categories, nil
}

func (r *postgresCategoryRepository) SubscribeCategories(ctx context.Context, onSnapshot func([]domain.Category), onError func(error)) (domain.Unsubscribe, error) {
	refresh := func(ctx context.Context) error {
		categories, err := r.ListCategories(ctx)
		if err != nil {
			return err
		}
		onSnapshot(categories)
		return nil
	}
	return r.feed.subscribe(ctx, CategoriesCollection, refresh, onError), nil
}
