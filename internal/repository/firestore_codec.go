package repository

import (
	"fmt"
	"path"
	"strconv"
	"time"

	"catalog_service/internal/domain"
)

// firestoreValue is the typed value encoding of the Firestore REST API.
// Only the variants the catalog writes or may read back are modelled.
type firestoreValue struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
	NullValue      *string  `json:"nullValue,omitempty"`
}

type firestoreDocument struct {
	Name       string                    `json:"name,omitempty"`
	Fields     map[string]firestoreValue `json:"fields"`
	CreateTime string                    `json:"createTime,omitempty"`
	UpdateTime string                    `json:"updateTime,omitempty"`
}

type firestoreListResponse struct {
	Documents     []firestoreDocument `json:"documents"`
	NextPageToken string              `json:"nextPageToken"`
}

type firestoreQueryResult struct {
	Document *firestoreDocument `json:"document,omitempty"`
	ReadTime string             `json:"readTime,omitempty"`
}

type firestoreErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func stringValue(s string) firestoreValue {
	return firestoreValue{StringValue: &s}
}

func doubleValue(f float64) firestoreValue {
	return firestoreValue{DoubleValue: &f}
}

func timestampValue(t time.Time) firestoreValue {
	s := t.UTC().Format(time.RFC3339Nano)
	return firestoreValue{TimestampValue: &s}
}

func (v firestoreValue) asString() string {
	if v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

// asFloat accepts both numeric encodings; prices written by other clients may be integers.
func (v firestoreValue) asFloat() float64 {
	switch {
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err == nil {
			return float64(n)
		}
	case v.StringValue != nil:
		f, err := strconv.ParseFloat(*v.StringValue, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func (v firestoreValue) asTime() time.Time {
	if v.TimestampValue == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return time.Time{}
	}
	return t
}

func documentID(name string) string {
	return path.Base(name)
}

func (d firestoreDocument) createdAt() time.Time {
	if v, ok := d.Fields["createdAt"]; ok {
		if t := v.asTime(); !t.IsZero() {
			return t
		}
	}
	t, _ := time.Parse(time.RFC3339Nano, d.CreateTime)
	return t
}

func categoryFields(c *domain.Category) map[string]firestoreValue {
	return map[string]firestoreValue{
		"name":        stringValue(c.Name),
		"description": stringValue(c.Description),
		"imageUrl":    stringValue(c.ImageURL),
		"createdAt":   timestampValue(c.CreatedAt),
	}
}

func categoryUpdateFields(u domain.CategoryUpdate) map[string]firestoreValue {
	fields := map[string]firestoreValue{}
	if u.Name != nil {
		fields["name"] = stringValue(*u.Name)
	}
	if u.Description != nil {
		fields["description"] = stringValue(*u.Description)
	}
	if u.ImageURL != nil {
		fields["imageUrl"] = stringValue(*u.ImageURL)
	}
	return fields
}

func decodeCategory(d firestoreDocument) domain.Category {
	return domain.Category{
		ID:          documentID(d.Name),
		Name:        d.Fields["name"].asString(),
		Description: d.Fields["description"].asString(),
		ImageURL:    d.Fields["imageUrl"].asString(),
		CreatedAt:   d.createdAt(),
	}
}

func productFields(p *domain.Product) map[string]firestoreValue {
	return map[string]firestoreValue{
		"name":          stringValue(p.Name),
		"price":         doubleValue(p.Price),
		"imageUrl":      stringValue(p.ImageURL),
		"category":      stringValue(p.Category),
		"description":   stringValue(p.Description),
		"componentsUrl": stringValue(p.ComponentsURL),
		"videoUrl":      stringValue(p.VideoURL),
		"createdAt":     timestampValue(p.CreatedAt),
	}
}

func productUpdateFields(u domain.ProductUpdate) map[string]firestoreValue {
	fields := map[string]firestoreValue{}
	if u.Name != nil {
		fields["name"] = stringValue(*u.Name)
	}
	if u.Price != nil {
		fields["price"] = doubleValue(*u.Price)
	}
	if u.ImageURL != nil {
		fields["imageUrl"] = stringValue(*u.ImageURL)
	}
	if u.Category != nil {
		fields["category"] = stringValue(*u.Category)
	}
	if u.Description != nil {
		fields["description"] = stringValue(*u.Description)
	}
	if u.ComponentsURL != nil {
		fields["componentsUrl"] = stringValue(*u.ComponentsURL)
	}
	if u.VideoURL != nil {
		fields["videoUrl"] = stringValue(*u.VideoURL)
	}
	return fields
}

func decodeProduct(d firestoreDocument) domain.Product {
	return domain.Product{
		ID:            documentID(d.Name),
		Name:          d.Fields["name"].asString(),
		Price:         d.Fields["price"].asFloat(),
		ImageURL:      d.Fields["imageUrl"].asString(),
		Category:      d.Fields["category"].asString(),
		Description:   d.Fields["description"].asString(),
		ComponentsURL: d.Fields["componentsUrl"].asString(),
		VideoURL:      d.Fields["videoUrl"].asString(),
		CreatedAt:     d.createdAt(),
	}
}

func fieldMask(fields map[string]firestoreValue) []string {
	mask := make([]string, 0, len(fields))
	for name := range fields {
		mask = append(mask, name)
	}
	return mask
}

func (e *firestoreErrorResponse) String() string {
	if e == nil || e.Error.Status == "" {
		return "unknown error"
	}
	return fmt.Sprintf("%s: %s", e.Error.Status, e.Error.Message)
}
