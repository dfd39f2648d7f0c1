package usecase

import (
	"context"
	"strings"

	"catalog_service/internal/domain"

	"github.com/sirupsen/logrus"
)

type ProductUseCase interface {
	CreateProduct(ctx context.Context, form ProductForm) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, form ProductForm) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string, confirmed bool) error
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
}

type productUseCase struct {
	productRepo  domain.ProductRepository
	categoryRepo domain.CategoryRepository
	reloader     Reloader
	log          *logrus.Logger
}

func NewProductUseCase(pRepo domain.ProductRepository, cRepo domain.CategoryRepository, reloader Reloader, logger *logrus.Logger) ProductUseCase {
	return &productUseCase{
		productRepo:  pRepo,
		categoryRepo: cRepo,
		reloader:     reloader,
		log:          logger,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, form ProductForm) (*domain.Product, error) {
	form = form.normalize()
	product, err := form.product()
	if err != nil {
		uc.log.Warnf("Use Case: Rejected product creation '%s': %v", form.Name, err)
		return nil, err
	}
	if err := uc.requireCategory(ctx, product.Category); err != nil {
		return nil, err
	}

	uc.log.Infof("Use Case: Attempting to create product '%s'", product.Name)
	created, err := uc.productRepo.CreateProduct(ctx, product)
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to create product '%s': %v", product.Name, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Product '%s' created successfully with ID %s", created.Name, created.ID)
	uc.reload(ctx)
	return created, nil
}

func (uc *productUseCase) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		uc.log.Warn("Use Case: Attempted to get product with empty ID")
		return nil, domain.NewValidationError(msgSelectProduct)
	}
	product, err := uc.productRepo.GetProductByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to get product ID %s: %v", id, err)
		return nil, err
	}
	return product, nil
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, id string, form ProductForm) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		uc.log.Warn("Use Case: Attempted product update without a selected product")
		return nil, domain.NewValidationError(msgSelectProduct)
	}
	form = form.normalize()
	product, err := form.product()
	if err != nil {
		uc.log.Warnf("Use Case: Rejected update for product ID %s: %v", id, err)
		return nil, err
	}

	current, err := uc.productRepo.GetProductByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Product ID %s not found for update: %v", id, err)
		return nil, err
	}
	// an orphan may keep its stale category; moving it requires an existing one
	if product.Category != current.Category {
		if err := uc.requireCategory(ctx, product.Category); err != nil {
			return nil, err
		}
	}

	updated, err := uc.productRepo.UpdateProduct(ctx, id, domain.ProductUpdate{
		Name:          &product.Name,
		Price:         &product.Price,
		ImageURL:      &product.ImageURL,
		Category:      &product.Category,
		Description:   &product.Description,
		ComponentsURL: &product.ComponentsURL,
		VideoURL:      &product.VideoURL,
	})
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to update product ID %s: %v", id, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Product ID %s updated successfully", id)
	uc.reload(ctx)
	return updated, nil
}

func (uc *productUseCase) DeleteProduct(ctx context.Context, id string, confirmed bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		uc.log.Warn("Use Case: Attempted product delete without a selected product")
		return domain.NewValidationError(msgSelectProduct)
	}
	if !confirmed {
		uc.log.Infof("Use Case: Delete of product ID %s awaiting confirmation", id)
		return domain.ErrConfirmationRequired
	}

	uc.log.Infof("Use Case: Attempting to delete product ID %s", id)
	if err := uc.productRepo.DeleteProduct(ctx, id); err != nil {
		uc.log.Errorf("Use Case: Repository failed to delete product ID %s: %v", id, err)
		return err
	}

	uc.log.Infof("Use Case: Product ID %s deleted successfully", id)
	uc.reload(ctx)
	return nil
}

func (uc *productUseCase) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := uc.productRepo.ListProducts(ctx, filter)
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to list products (category %q): %v", filter.Category, err)
		return nil, err
	}
	return products, nil
}

func (uc *productUseCase) requireCategory(ctx context.Context, name string) error {
	categories, err := uc.categoryRepo.ListCategories(ctx)
	if err != nil {
		uc.log.Errorf("Use Case: Could not verify category '%s': %v", name, err)
		return err
	}
	for _, c := range categories {
		if c.Name == name {
			return nil
		}
	}
	uc.log.Warnf("Use Case: Category '%s' does not exist", name)
	return domain.NewValidationError(msgProductCategory)
}

func (uc *productUseCase) reload(ctx context.Context) {
	if uc.reloader == nil {
		return
	}
	if err := uc.reloader.Reload(ctx); err != nil {
		uc.log.Warnf("Use Case: Catalog reload after write failed: %v", err)
	}
}
