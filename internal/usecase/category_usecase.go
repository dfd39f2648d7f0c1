package usecase

import (
	"context"
	"strings"

	"catalog_service/internal/domain"

	"github.com/sirupsen/logrus"
)

type CategoryUseCase interface {
	CreateCategory(ctx context.Context, form CategoryForm) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, form CategoryForm) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string, confirmed bool) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type categoryUseCase struct {
	categoryRepo domain.CategoryRepository
	productRepo  domain.ProductRepository
	reloader     Reloader
	log          *logrus.Logger
}

func NewCategoryUseCase(cRepo domain.CategoryRepository, pRepo domain.ProductRepository, reloader Reloader, logger *logrus.Logger) CategoryUseCase {
	return &categoryUseCase{
		categoryRepo: cRepo,
		productRepo:  pRepo,
		reloader:     reloader,
		log:          logger,
	}
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, form CategoryForm) (*domain.Category, error) {
	form = form.normalize()
	if err := form.validate(); err != nil {
		uc.log.Warnf("Use Case: Rejected category creation '%s': %v", form.Name, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Attempting to create category '%s'", form.Name)
	created, err := uc.categoryRepo.CreateCategory(ctx, &domain.Category{
		Name:        form.Name,
		Description: form.Description,
		ImageURL:    form.ImageURL,
	})
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to create category '%s': %v", form.Name, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Category '%s' created successfully with ID %s", created.Name, created.ID)
	uc.reload(ctx)
	return created, nil
}

func (uc *categoryUseCase) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		uc.log.Warn("Use Case: Attempted to get category with empty ID")
		return nil, domain.NewValidationError(msgSelectCategory)
	}
	category, err := uc.categoryRepo.GetCategoryByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to get category ID %s: %v", id, err)
		return nil, err
	}
	return category, nil
}

func (uc *categoryUseCase) UpdateCategory(ctx context.Context, id string, form CategoryForm) (*domain.Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		uc.log.Warn("Use Case: Attempted category update without a selected category")
		return nil, domain.NewValidationError(msgSelectCategory)
	}
	form = form.normalize()
	if err := form.validate(); err != nil {
		uc.log.Warnf("Use Case: Rejected update for category ID %s: %v", id, err)
		return nil, err
	}

	current, err := uc.categoryRepo.GetCategoryByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Category ID %s not found for update: %v", id, err)
		return nil, err
	}

	updated, err := uc.categoryRepo.UpdateCategory(ctx, id, domain.CategoryUpdate{
		Name:        &form.Name,
		Description: &form.Description,
		ImageURL:    &form.ImageURL,
	})
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to update category ID %s: %v", id, err)
		return nil, err
	}

	if current.Name != updated.Name {
		uc.warnOrphans(ctx, current.Name, "renamed")
	}
	uc.log.Infof("Use Case: Category ID %s updated successfully", id)
	uc.reload(ctx)
	return updated, nil
}

func (uc *categoryUseCase) DeleteCategory(ctx context.Context, id string, confirmed bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		uc.log.Warn("Use Case: Attempted category delete without a selected category")
		return domain.NewValidationError(msgSelectCategory)
	}
	if !confirmed {
		uc.log.Infof("Use Case: Delete of category ID %s awaiting confirmation", id)
		return domain.ErrConfirmationRequired
	}

	category, err := uc.categoryRepo.GetCategoryByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Category ID %s not found for deletion: %v", id, err)
		return err
	}

	uc.log.Infof("Use Case: Attempting to delete category ID %s", id)
	if err := uc.categoryRepo.DeleteCategory(ctx, id); err != nil {
		uc.log.Errorf("Use Case: Repository failed to delete category ID %s: %v", id, err)
		return err
	}

	uc.warnOrphans(ctx, category.Name, "deleted")
	uc.log.Infof("Use Case: Category ID %s deleted successfully", id)
	uc.reload(ctx)
	return nil
}

func (uc *categoryUseCase) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := uc.categoryRepo.ListCategories(ctx)
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to list categories: %v", err)
		return nil, err
	}
	return categories, nil
}

// warnOrphans logs products left pointing at a category name that no longer exists.
// Products are not rewritten.
func (uc *categoryUseCase) warnOrphans(ctx context.Context, name, what string) {
	if uc.productRepo == nil {
		return
	}
	products, err := uc.productRepo.ListProducts(ctx, domain.ProductFilter{Category: name})
	if err != nil {
		uc.log.Warnf("Use Case: Could not count products of %s category '%s': %v", what, name, err)
		return
	}
	if len(products) > 0 {
		uc.log.Warnf("Use Case: %d products still reference %s category '%s'", len(products), what, name)
	}
}

func (uc *categoryUseCase) reload(ctx context.Context) {
	if uc.reloader == nil {
		return
	}
	if err := uc.reloader.Reload(ctx); err != nil {
		uc.log.Warnf("Use Case: Catalog reload after write failed: %v", err)
	}
}
