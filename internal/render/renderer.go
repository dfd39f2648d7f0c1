// Package render turns catalog records into HTML pages and the fragments pushed
// to live pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"catalog_service/internal/domain"
	"catalog_service/internal/media"

	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

const DefaultSampleSize = 4

type Options struct {
	PlaceholderURL string
	PriceFormat    string
	CurrencySymbol string
	SampleSize     int
}

type Renderer struct {
	tmpl       *template.Template
	media      media.Resolver
	price      PriceFormatter
	sampleSize int
	log        *logrus.Logger
}

func New(opts Options, logger *logrus.Logger) (*Renderer, error) {
	r := &Renderer{
		media:      media.NewResolver(opts.PlaceholderURL),
		price:      NewPriceFormatter(opts.PriceFormat, opts.CurrencySymbol),
		sampleSize: opts.SampleSize,
		log:        logger,
	}
	if err := ValidatePriceFormat(r.price.Format); err != nil {
		return nil, err
	}
	if r.sampleSize <= 0 {
		r.sampleSize = DefaultSampleSize
	}

	tmpl, err := template.New("catalog").Funcs(template.FuncMap{
		"price": r.price.FormatPrice,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("could not parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Templates exposes the parsed set so the HTTP layer can render full pages.
func (r *Renderer) Templates() *template.Template {
	return r.tmpl
}

func (r *Renderer) execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		r.log.Errorf("Render: Failed to execute template %s: %v", name, err)
		return "", fmt.Errorf("could not render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// CategoryCards builds the cards with up to SampleSize product images per category
// taken from products, in order.
func (r *Renderer) CategoryCards(categories []domain.Category, products []domain.Product) []CategoryCard {
	samples := make(map[string][]string, len(categories))
	for _, p := range products {
		if p.ImageURL == "" || len(samples[p.Category]) >= r.sampleSize {
			continue
		}
		samples[p.Category] = append(samples[p.Category], p.ImageURL)
	}

	cards := make([]CategoryCard, 0, len(categories))
	for _, c := range categories {
		cards = append(cards, CategoryCard{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ImageURL:    r.media.ImageOrPlaceholder(c.ImageURL),
			Samples:     samples[c.Name],
		})
	}
	return cards
}

func (r *Renderer) ProductCard(p domain.Product) ProductCard {
	return ProductCard{
		ID:            p.ID,
		Name:          p.Name,
		Price:         r.price.FormatPrice(p.Price),
		Category:      p.Category,
		Description:   p.Description,
		ComponentsURL: p.ComponentsURL,
		Media:         r.media.Resolve(p.VideoURL, p.ImageURL),
	}
}

func (r *Renderer) ProductGrid(products []domain.Product, filter domain.ProductFilter) ProductGrid {
	cards := make([]ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, r.ProductCard(p))
	}
	return ProductGrid{Filter: filter.Category, Products: cards}
}

// AdminProducts marks products whose category no longer exists.
func AdminProducts(products []domain.Product, categories []domain.Category) []AdminProductRow {
	names := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		names[c.Name] = struct{}{}
	}
	rows := make([]AdminProductRow, 0, len(products))
	for _, p := range products {
		_, ok := names[p.Category]
		rows = append(rows, AdminProductRow{Product: p, Orphan: !ok})
	}
	return rows
}

// CategoryFragments re-renders everything derived from the category list: the grid,
// the navigation submenu and the admin select list.
func (r *Renderer) CategoryFragments(categories []domain.Category, products []domain.Product) ([]Fragment, error) {
	cards := r.CategoryCards(categories, products)

	grid, err := r.execute("category_grid", cards)
	if err != nil {
		return nil, err
	}
	submenu, err := r.execute("category_submenu", categories)
	if err != nil {
		return nil, err
	}
	selectList, err := r.execute("category_select", categories)
	if err != nil {
		return nil, err
	}
	return []Fragment{
		{Target: TargetCategoryGrid, HTML: grid},
		{Target: TargetSubmenu, HTML: submenu},
		{Target: TargetCategorySelect, HTML: selectList},
	}, nil
}

// ProductFragments re-renders the product grid, its title and the admin select list.
func (r *Renderer) ProductFragments(products []domain.Product, filter domain.ProductFilter, categories []domain.Category) ([]Fragment, error) {
	grid, err := r.execute("product_grid", r.ProductGrid(products, filter))
	if err != nil {
		return nil, err
	}
	title, err := r.execute("products_title", filter.Category)
	if err != nil {
		return nil, err
	}
	selectList, err := r.execute("product_select", AdminProducts(products, categories))
	if err != nil {
		return nil, err
	}
	return []Fragment{
		{Target: TargetProductGrid, HTML: grid},
		{Target: TargetProductsTitle, HTML: title},
		{Target: TargetProductSelect, HTML: selectList},
	}, nil
}

func (r *Renderer) MessageFragment(msg Message) (Fragment, error) {
	html, err := r.execute("message", &msg)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Target: TargetMessage, HTML: html}, nil
}

// CatalogPage assembles the public page from the current mirror contents.
func (r *Renderer) CatalogPage(categories []domain.Category, products []domain.Product, filter domain.ProductFilter, msg *Message, loading bool) CatalogPage {
	return CatalogPage{
		Title:      "Catálogo",
		Categories: r.CategoryCards(categories, products),
		Grid:       r.ProductGrid(products, filter),
		Message:    msg,
		Loading:    loading,
	}
}
