package render

import "html/template"

// Element ids the live page updates in place.
const (
	TargetCategoryGrid   = "category-grid"
	TargetSubmenu        = "category-submenu"
	TargetProductGrid    = "product-grid"
	TargetProductsTitle  = "products-title"
	TargetCategorySelect = "admin-category-select"
	TargetProductSelect  = "admin-product-select"
	TargetMessage        = "message"
)

const (
	MessageError   = "error"
	MessageInfo    = "info"
	MessageSuccess = "success"
)

// Fragment is rendered HTML destined for one element of the page.
type Fragment struct {
	Target string        `json:"target"`
	HTML   template.HTML `json:"html"`
}

// Message is a transient notice shown in the message banner.
type Message struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}
