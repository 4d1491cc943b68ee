package mockapi

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// getWishlist handles GET /user/wishlist, newest additions first.
func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	params := pagination.FromRequest(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Clone(s.st.wishlists[uid])
	slices.Reverse(ids)
	page := domain.WishlistPage{Products: []domain.Product{}, Pagination: pagination.NewMeta(len(ids), params)}
	for _, id := range window(ids, params) {
		if p := s.st.product(id); p != nil {
			page.Products = append(page.Products, *p)
		}
	}
	httputil.WriteData(w, http.StatusOK, page)
}

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var req domain.AddToWishlistRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.product(req.ProductID)
	if p == nil {
		s.fail(w, r, apperrors.NotFound("product", req.ProductID))
		return
	}
	if slices.Contains(s.st.wishlists[uid], p.ID) {
		s.fail(w, r, apperrors.Conflict("Product already in wishlist"))
		return
	}
	s.st.wishlists[uid] = append(s.st.wishlists[uid], p.ID)
	httputil.WriteMessage(w, http.StatusCreated, "Product added to wishlist")
}

func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	pid := chi.URLParam(r, "productId")

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.st.wishlists[uid]
	i := slices.Index(ids, pid)
	if i < 0 {
		s.fail(w, r, apperrors.NotFound("wishlist item", pid))
		return
	}
	s.st.wishlists[uid] = slices.Delete(ids, i, i+1)
	httputil.WriteMessage(w, http.StatusOK, "Product removed from wishlist")
}
