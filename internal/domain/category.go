package domain

import (
	"net/url"
	"time"
)

// Category is a catalog category. Children are populated only for top-level
// categories in a listing.
type Category struct {
	ID             string     `json:"_id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug,omitempty"`
	Description    string     `json:"description,omitempty"`
	ParentCategory string     `json:"parentCategory,omitempty"`
	ProductCount   int        `json:"productCount"`
	Children       []Category `json:"children,omitempty"`
	Image          string     `json:"image,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CategoryFilter narrows a category listing. By default only categories with
// products are listed.
type CategoryFilter struct {
	IncludeEmpty bool
	ParentOnly   bool
}

// Query encodes the filter as URL query values.
func (f CategoryFilter) Query() url.Values {
	q := url.Values{}
	if f.IncludeEmpty {
		q.Set("includeEmpty", "true")
	}
	if f.ParentOnly {
		q.Set("parentOnly", "true")
	}
	return q
}
