package mockapi

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// listReviews handles GET /user/reviews?productId=, newest first.
func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	pid := strings.TrimSpace(r.URL.Query().Get("productId"))
	if pid == "" {
		s.fail(w, r, apperrors.Validation("Product ID is required", map[string]string{"productId": "is required"}))
		return
	}
	params := pagination.FromRequest(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.product(pid)
	if p == nil {
		s.fail(w, r, apperrors.NotFound("product", pid))
		return
	}
	reviews := slices.Clone(s.st.reviews[p.ID])
	slices.Reverse(reviews)
	page := domain.ReviewPage{Reviews: []domain.Review{}, Pagination: pagination.NewMeta(len(reviews), params)}
	for _, rv := range window(reviews, params) {
		page.Reviews = append(page.Reviews, *rv)
	}
	httputil.WriteData(w, http.StatusOK, page)
}

// createReview handles POST /user/reviews. A user reviews a product once;
// the product's rating aggregate is updated in place.
func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req domain.ReviewInput
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[uid]
	if !ok {
		s.fail(w, r, apperrors.NotFound("user", uid))
		return
	}
	p := s.st.product(req.ProductID)
	if p == nil {
		s.fail(w, r, apperrors.NotFound("product", req.ProductID))
		return
	}
	if slices.ContainsFunc(s.st.reviews[p.ID], func(rv *domain.Review) bool { return rv.User.ID == uid }) {
		s.fail(w, r, apperrors.Conflict("You have already reviewed this product"))
		return
	}

	now := time.Now().UTC()
	rv := &domain.Review{
		ID:        uuid.NewString(),
		User:      domain.User{ID: a.user.ID, Name: a.user.Name, Avatar: a.user.Avatar},
		Product:   p.ID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		Verified:  s.st.hasOrdered(uid, p.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.st.reviews[p.ID] = append(s.st.reviews[p.ID], rv)
	total := p.AverageRating*float64(p.ReviewCount) + float64(req.Rating)
	p.ReviewCount++
	p.AverageRating = round2(total / float64(p.ReviewCount))
	httputil.WriteData(w, http.StatusCreated, rv)
}
