package domain

import "context"

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *Category) (*Category, error)
	GetCategoryByID(ctx context.Context, id string) (*Category, error)
	UpdateCategory(ctx context.Context, id string, updates CategoryUpdate) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)

	// SubscribeCategories delivers the full collection once and again after every change.
	// onError is called when a snapshot cannot be loaded; the subscription stays open.
	SubscribeCategories(ctx context.Context, onSnapshot func([]Category), onError func(error)) (Unsubscribe, error)
}
