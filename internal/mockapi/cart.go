package mockapi

import (
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	httputil.WriteData(w, http.StatusOK, s.st.renderCart(uid))
}

func (s *Server) cartSummary(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	httputil.WriteData(w, http.StatusOK, s.st.summary(uid))
}

// addToCart handles POST /user/cart. Adding a product already in the cart
// increases the existing line.
func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.AddToCartRequest
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
	c := s.st.cart(uid)
	qty := req.Quantity
	i := c.find(p.ID)
	if i >= 0 {
		qty += c.lines[i].quantity
	}
	if err := checkStock(p, qty); err != nil {
		s.fail(w, r, err)
		return
	}

	now := time.Now().UTC()
	if i >= 0 {
		c.lines[i].quantity = qty
		if req.Customizations != nil {
			c.lines[i].customizations = maps.Clone(req.Customizations)
		}
	} else {
		c.lines = append(c.lines, &cartLine{
			productID:      p.ID,
			lineID:         uuid.NewString(),
			quantity:       qty,
			customizations: maps.Clone(req.Customizations),
			addedAt:        now,
		})
	}
	c.updatedAt = now
	httputil.WriteData(w, http.StatusOK, s.st.renderCart(uid))
}

// updateCartItem handles PATCH /user/cart/{productId} and sets the line's
// quantity.
func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateCartItemRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())
	pid := chi.URLParam(r, "productId")

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st.cart(uid)
	i := c.find(pid)
	if i < 0 {
		s.fail(w, r, apperrors.NotFound("cart item", pid))
		return
	}
	if p := s.st.product(pid); p != nil {
		if err := checkStock(p, req.Quantity); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	c.lines[i].quantity = req.Quantity
	c.updatedAt = time.Now().UTC()
	httputil.WriteData(w, http.StatusOK, s.st.renderCart(uid))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	pid := chi.URLParam(r, "productId")

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st.cart(uid)
	i := c.find(pid)
	if i < 0 {
		s.fail(w, r, apperrors.NotFound("cart item", pid))
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.updatedAt = time.Now().UTC()
	httputil.WriteData(w, http.StatusOK, s.st.renderCart(uid))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.st.cart(uid)
	c.lines = nil
	c.updatedAt = time.Now().UTC()
	httputil.WriteMessage(w, http.StatusOK, "Cart cleared")
}

func checkStock(p *domain.Product, qty int) *apperrors.AppError {
	if p.Stock <= 0 {
		return apperrors.Validation("Product is out of stock", map[string]string{"quantity": "product is out of stock"})
	}
	if qty > p.Stock {
		return apperrors.Validation(fmt.Sprintf("Only %d items in stock", p.Stock), map[string]string{"quantity": fmt.Sprintf("must be at most %d", p.Stock)})
	}
	return nil
}
