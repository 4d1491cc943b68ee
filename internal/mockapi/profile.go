package mockapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// getProfile handles GET /user/profile.
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[uid]
	if !ok {
		s.fail(w, r, apperrors.NotFound("user", uid))
		return
	}
	httputil.WriteData(w, http.StatusOK, a.user)
}

// updateProfile handles PUT /user/profile. Only name and phone change.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdate
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
	a.user.Name = strings.TrimSpace(req.Name)
	a.user.Phone = req.Phone
	a.user.UpdatedAt = time.Now().UTC()
	httputil.WriteData(w, http.StatusOK, a.user)
}

// changePassword handles PATCH /user/change-password. Existing tokens stay
// valid.
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordChange
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())

	s.mu.Lock()
	a, ok := s.st.accounts[uid]
	var hash []byte
	if ok {
		hash = a.passwordHash
	}
	s.mu.Unlock()
	if !ok {
		s.fail(w, r, apperrors.NotFound("user", uid))
		return
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.CurrentPassword)) != nil {
		s.fail(w, r, apperrors.Validation("Current password is incorrect", map[string]string{"currentPassword": "is incorrect"}))
		return
	}
	next, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.fail(w, r, apperrors.Internal(fmt.Errorf("hash password: %w", err)))
		return
	}

	s.mu.Lock()
	a.passwordHash = next
	a.user.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.log(r).InfoContext(r.Context(), "password changed", slog.String("user_id", uid))
	httputil.WriteMessage(w, http.StatusOK, "Password changed successfully")
}
