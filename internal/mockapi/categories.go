package mockapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// listCategories handles GET /public/categories. Empty categories are hidden
// unless includeEmpty=true; parentOnly=true lists top-level categories with
// their children nested.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeEmpty := q.Get("includeEmpty") == "true"
	parentOnly := q.Get("parentOnly") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Category{}
	for _, c := range s.st.categories {
		if parentOnly && c.ParentCategory != "" {
			continue
		}
		rc := s.st.renderCategory(c, parentOnly)
		if rc.ProductCount == 0 && !includeEmpty {
			continue
		}
		if !includeEmpty {
			kept := rc.Children[:0]
			for _, child := range rc.Children {
				if child.ProductCount > 0 {
					kept = append(kept, child)
				}
			}
			rc.Children = kept
		}
		out = append(out, rc)
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// getCategory handles GET /public/categories/{id}. The ID may also be a slug.
func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st.category(id)
	if c == nil {
		s.fail(w, r, apperrors.NotFound("category", id))
		return
	}
	httputil.WriteData(w, http.StatusOK, s.st.renderCategory(c, true))
}
