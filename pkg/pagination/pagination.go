package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

// MaxLimit caps the page size a caller may request.
const MaxLimit = 100

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// DefaultParams returns the storefront pagination defaults.
func DefaultParams() Params {
	return Params{Page: 1, Limit: 10}
}

// FromRequest extracts ?page= and ?limit= from an HTTP request.
func FromRequest(r *http.Request) Params {
	return FromValues(r.URL.Query())
}

// FromValues extracts pagination parameters from query values. Invalid or
// out-of-range values fall back to the defaults.
func FromValues(q url.Values) Params {
	p := DefaultParams()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if limit := q.Get("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 && v <= MaxLimit {
			p.Limit = v
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// Apply writes the parameters back into query values, omitting zero fields.
func (p Params) Apply(q url.Values) {
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
}

// Meta is the pagination block returned next to every list payload.
type Meta struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// NewMeta computes the pagination block for total items under params.
func NewMeta(total int, params Params) Meta {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultParams().Limit
	}
	pages := total / limit
	if total%limit > 0 {
		pages++
	}
	return Meta{
		Total:   total,
		Page:    params.Page,
		Limit:   limit,
		Pages:   pages,
		HasNext: params.Page < pages,
		HasPrev: params.Page > 1,
	}
}

// Slice returns the window of items selected by params.
func Slice[T any](items []T, params Params) []T {
	if params.Offset >= len(items) {
		return []T{}
	}
	end := params.Offset + params.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[params.Offset:end]
}
