package render

import (
	"catalog_service/internal/domain"
	"catalog_service/internal/media"
)

type CategoryCard struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	Samples     []string
}

type ProductCard struct {
	ID            string
	Name          string
	Price         string
	Category      string
	Description   string
	ComponentsURL string
	Media         media.Media
}

type ProductGrid struct {
	Filter   string
	Products []ProductCard
}

type AdminProductRow struct {
	domain.Product
	Orphan bool
}

type CatalogPage struct {
	Title      string
	Categories []CategoryCard
	Grid       ProductGrid
	Message    *Message
	Loading    bool
}

type AdminPage struct {
	Title      string
	Email      string
	Categories []domain.Category
	Products   []AdminProductRow
	Message    *Message
	Category   *domain.Category
	Product    *domain.Product
}

type LoginPage struct {
	Title   string
	Email   string
	Message *Message
}

type ConfirmDeletePage struct {
	Title  string
	Kind   string
	ID     string
	Name   string
	Action string
}
