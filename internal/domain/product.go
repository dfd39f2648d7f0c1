package domain

import "context"

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	GetProductByID(ctx context.Context, id string) (*Product, error)
	UpdateProduct(ctx context.Context, id string, updates ProductUpdate) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)

	SubscribeProducts(ctx context.Context, filter ProductFilter, onSnapshot func([]Product), onError func(error)) (Unsubscribe, error)
}
