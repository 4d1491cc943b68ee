package domain

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/pkg/pagination"
)

// ProductImage is one gallery image of a product.
type ProductImage struct {
	URL        string `json:"url"`
	Alt        string `json:"alt,omitempty"`
	IsFeatured bool   `json:"isFeatured"`
}

// CategoryRef is the populated category of a product.
type CategoryRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Product is a catalog entry. Cart and order lines embed it as a populated
// reference.
type Product struct {
	ID                 string         `json:"_id"`
	Name               string         `json:"name"`
	Slug               string         `json:"slug,omitempty"`
	Description        string         `json:"description,omitempty"`
	Price              float64        `json:"price"`
	DiscountPercentage float64        `json:"discountPercentage"`
	DiscountedPrice    float64        `json:"discountedPrice"`
	Stock              int            `json:"stock"`
	Category           *CategoryRef   `json:"category,omitempty"`
	Images             []ProductImage `json:"images,omitempty"`
	AverageRating      float64        `json:"averageRating"`
	ReviewCount        int            `json:"reviewCount"`
	IsInStock          bool           `json:"isInStock"`
	Brand              string         `json:"brand,omitempty"`
}

// UnmarshalJSON accepts either a populated product object or a bare ID
// string, which the server sends when a reference is not populated.
func (p *Product) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*p = Product{ID: id}
		return nil
	}
	type plain Product
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Product(v)
	return nil
}

// EffectivePrice is the price a buyer pays for one unit.
func (p Product) EffectivePrice() float64 {
	if p.DiscountedPrice > 0 {
		return p.DiscountedPrice
	}
	return p.Price
}

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Search   string
	Category string
	MinPrice float64
	MaxPrice float64
	Sort     string // price, name, rating, newest, popularity
	Order    string // asc, desc
	InStock  bool
	Page     int
	Limit    int
}

// Query encodes the filter as URL query values, omitting empty fields.
func (f ProductFilter) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.MinPrice > 0 {
		q.Set("minPrice", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		q.Set("maxPrice", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Order != "" {
		q.Set("order", f.Order)
	}
	if f.InStock {
		q.Set("inStock", "true")
	}
	pagination.Params{Page: f.Page, Limit: f.Limit}.Apply(q)
	return q
}

// ProductPage is one page of a catalog listing.
type ProductPage struct {
	Products   []Product       `json:"products"`
	Pagination pagination.Meta `json:"pagination"`
}
