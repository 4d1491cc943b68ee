package mockapi

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

var productSorts = map[string]func(a, b *domain.Product) int{
	"price": func(a, b *domain.Product) int {
		return cmpFloat(a.EffectivePrice(), b.EffectivePrice())
	},
	"name": func(a, b *domain.Product) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	},
	"rating": func(a, b *domain.Product) int {
		return cmpFloat(a.AverageRating, b.AverageRating)
	},
	"popularity": func(a, b *domain.Product) int {
		return a.ReviewCount - b.ReviewCount
	},
	// Catalog order is creation order, so newest sorts by position.
	"newest": nil,
}

// listProducts handles GET /public/products.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := q.Get("sort")
	if _, ok := productSorts[sortBy]; sortBy != "" && !ok {
		s.fail(w, r, apperrors.Validation("Invalid sort field", map[string]string{"sort": "must be one of price, name, rating, newest, popularity"}))
		return
	}
	match, err := productMatcher(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.mu.Lock()
	var found []*domain.Product
	for _, p := range s.st.products {
		if match(p) {
			found = append(found, p)
		}
	}
	s.mu.Unlock()

	desc := q.Get("order") == "desc"
	if cmp := productSorts[sortBy]; cmp != nil {
		slices.SortStableFunc(found, func(a, b *domain.Product) int {
			if desc {
				return cmp(b, a)
			}
			return cmp(a, b)
		})
	} else if sortBy == "newest" {
		slices.Reverse(found)
	}

	params := pagination.FromRequest(r)
	page := domain.ProductPage{Products: []domain.Product{}, Pagination: pagination.NewMeta(len(found), params)}
	for _, p := range window(found, params) {
		page.Products = append(page.Products, *p)
	}
	httputil.WriteData(w, http.StatusOK, page)
}

// searchProducts handles GET /public/products/search.
func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		s.fail(w, r, apperrors.Validation("Search query is required", map[string]string{"q": "is required"}))
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > pagination.MaxLimit {
		limit = 10
	}
	match := containsTerm(term)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	for _, p := range s.st.products {
		if match(p) {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// getProduct handles GET /public/products/{idOrSlug}.
func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idOrSlug")
	s.mu.Lock()
	p := s.st.product(key)
	var out domain.Product
	if p != nil {
		out = *p
	}
	s.mu.Unlock()
	if p == nil {
		s.fail(w, r, apperrors.NotFound("product", key))
		return
	}
	httputil.WriteData(w, http.StatusOK, out)
}

func productMatcher(q url.Values) (func(*domain.Product) bool, error) {
	var preds []func(*domain.Product) bool
	if term := strings.TrimSpace(q.Get("search")); term != "" {
		preds = append(preds, containsTerm(term))
	}
	if c := q.Get("category"); c != "" {
		preds = append(preds, func(p *domain.Product) bool {
			return p.Category != nil && (p.Category.ID == c || strings.EqualFold(p.Category.Name, c))
		})
	}
	for _, bound := range []struct {
		key string
		ok  func(price, limit float64) bool
	}{
		{"minPrice", func(price, limit float64) bool { return price >= limit }},
		{"maxPrice", func(price, limit float64) bool { return price <= limit }},
	} {
		raw := q.Get(bound.key)
		if raw == "" {
			continue
		}
		limit, err := strconv.ParseFloat(raw, 64)
		if err != nil || limit < 0 {
			return nil, apperrors.Validation("Invalid price filter", map[string]string{bound.key: "must be a non-negative number"})
		}
		ok := bound.ok
		preds = append(preds, func(p *domain.Product) bool { return ok(p.EffectivePrice(), limit) })
	}
	if q.Get("inStock") == "true" {
		preds = append(preds, func(p *domain.Product) bool { return p.Stock > 0 })
	}
	return func(p *domain.Product) bool {
		for _, pred := range preds {
			if !pred(p) {
				return false
			}
		}
		return true
	}, nil
}

func containsTerm(term string) func(*domain.Product) bool {
	term = strings.ToLower(term)
	return func(p *domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Brand), term) ||
			strings.Contains(strings.ToLower(p.Description), term)
	}
}

// window returns the slice of items on the requested page.
func window[T any](items []T, p pagination.Params) []T {
	if p.Offset >= len(items) {
		return nil
	}
	end := min(p.Offset+p.Limit, len(items))
	return items[p.Offset:end]
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
