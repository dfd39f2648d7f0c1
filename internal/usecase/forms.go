package usecase

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"catalog_service/internal/domain"
)

// Reloader refreshes the catalog mirror after a successful write.
type Reloader interface {
	Reload(ctx context.Context) error
}

// CategoryForm is the raw admin input for a category.
type CategoryForm struct {
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
	ImageURL    string `form:"imageUrl" json:"imageUrl"`
}

// ProductForm is the raw admin input for a product. Price stays a string so that
// parsing it is part of validation.
type ProductForm struct {
	Name          string `form:"name" json:"name"`
	Price         string `form:"price" json:"price"`
	Category      string `form:"category" json:"category"`
	ImageURL      string `form:"imageUrl" json:"imageUrl"`
	Description   string `form:"description" json:"description"`
	ComponentsURL string `form:"componentsUrl" json:"componentsUrl"`
	VideoURL      string `form:"videoUrl" json:"videoUrl"`
}

const (
	msgCategoryFieldsRequired = "Ambos campos (nombre y URL de imagen) son requeridos."
	msgSelectCategory         = "Por favor, selecciona una categoría."
	msgProductNameRequired    = "El nombre del producto es requerido."
	msgPriceInvalid           = "El precio del producto debe ser un número mayor a 0."
	msgProductCategory        = "Por favor, selecciona una categoría existente para el producto."
	msgSelectProduct          = "Por favor, selecciona un producto."
)

func (f CategoryForm) normalize() CategoryForm {
	return CategoryForm{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		ImageURL:    strings.TrimSpace(f.ImageURL),
	}
}

func (f CategoryForm) validate() error {
	if f.Name == "" || f.ImageURL == "" {
		return domain.NewValidationError(msgCategoryFieldsRequired)
	}
	return nil
}

func (f ProductForm) normalize() ProductForm {
	return ProductForm{
		Name:          strings.TrimSpace(f.Name),
		Price:         strings.TrimSpace(f.Price),
		Category:      strings.TrimSpace(f.Category),
		ImageURL:      strings.TrimSpace(f.ImageURL),
		Description:   strings.TrimSpace(f.Description),
		ComponentsURL: strings.TrimSpace(f.ComponentsURL),
		VideoURL:      strings.TrimSpace(f.VideoURL),
	}
}

// plainDecimal is digits with an optional fraction after "." or ",".
var plainDecimal = regexp.MustCompile(`^[0-9]+(?:[.,][0-9]+)?$`)

// ParsePrice accepts "1234.5" and "1234,5"; anything that is not a plain decimal above zero is rejected.
func ParsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if !plainDecimal.MatchString(raw) {
		return 0, domain.NewValidationError(msgPriceInvalid)
	}
	if !strings.Contains(raw, ".") && strings.Count(raw, ",") == 1 {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, domain.NewValidationError(msgPriceInvalid)
	}
	return price, nil
}

// product validates the form and builds the record it describes.
func (f ProductForm) product() (*domain.Product, error) {
	if f.Name == "" {
		return nil, domain.NewValidationError(msgProductNameRequired)
	}
	price, err := ParsePrice(f.Price)
	if err != nil {
		return nil, err
	}
	if f.Category == "" {
		return nil, domain.NewValidationError(msgProductCategory)
	}
	return &domain.Product{
		Name:          f.Name,
		Price:         price,
		Category:      f.Category,
		ImageURL:      f.ImageURL,
		Description:   f.Description,
		ComponentsURL: f.ComponentsURL,
		VideoURL:      f.VideoURL,
	}, nil
}
