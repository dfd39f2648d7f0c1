package domain

import "time"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Category      string    `json:"category"` // Category.Name, not an id
	Description   string    `json:"description,omitempty"`
	ComponentsURL string    `json:"componentsUrl,omitempty"`
	VideoURL      string    `json:"videoUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CategoryUpdate holds the fields of a partial category write. Nil fields are left untouched.
type CategoryUpdate struct {
	Name        *string
	Description *string
	ImageURL    *string
}

func (u CategoryUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.ImageURL == nil
}

// Apply copies the set fields onto c.
func (u CategoryUpdate) Apply(c *Category) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.ImageURL != nil {
		c.ImageURL = *u.ImageURL
	}
}

// ProductUpdate holds the fields of a partial product write. Nil fields are left untouched.
type ProductUpdate struct {
	Name          *string
	Price         *float64
	ImageURL      *string
	Category      *string
	Description   *string
	ComponentsURL *string
	VideoURL      *string
}

func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Price == nil && u.ImageURL == nil && u.Category == nil &&
		u.Description == nil && u.ComponentsURL == nil && u.VideoURL == nil
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.ComponentsURL != nil {
		p.ComponentsURL = *u.ComponentsURL
	}
	if u.VideoURL != nil {
		p.VideoURL = *u.VideoURL
	}
}

// ProductFilter selects products by exact, case-sensitive category name. The zero value selects all products.
type ProductFilter struct {
	Category string
}

func (f ProductFilter) All() bool {
	return f.Category == ""
}

func (f ProductFilter) Match(p Product) bool {
	return f.Category == "" || p.Category == f.Category
}

// Unsubscribe stops a standing subscription. Calling it more than once is a no-op.
type Unsubscribe func()
