package mockapi

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Address, 0, len(s.st.addresses[uid]))
	for _, a := range s.st.addresses[uid] {
		out = append(out, *a)
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// addAddress handles POST /user/addresses. The first saved address becomes
// the default.
func (s *Server) addAddress(w http.ResponseWriter, r *http.Request) {
	var in domain.AddressInput
	if !httputil.DecodeAndValidate(w, r, &in) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	a := &domain.Address{ID: uuid.NewString(), IsDefault: len(s.st.addresses[uid]) == 0}
	applyAddress(a, in)
	s.st.addresses[uid] = append(s.st.addresses[uid], a)
	httputil.WriteData(w, http.StatusCreated, *a)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var in domain.AddressInput
	if !httputil.DecodeAndValidate(w, r, &in) {
		return
	}
	uid := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.st.address(uid, id)
	if a == nil {
		s.fail(w, r, apperrors.NotFound("address", id))
		return
	}
	applyAddress(a, in)
	httputil.WriteData(w, http.StatusOK, *a)
}

// deleteAddress handles DELETE /user/addresses/{id}. Removing the default
// promotes the next remaining address.
func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := s.st.addresses[uid]
	i := slices.IndexFunc(addrs, func(a *domain.Address) bool { return a.ID == id })
	if i < 0 {
		s.fail(w, r, apperrors.NotFound("address", id))
		return
	}
	wasDefault := addrs[i].IsDefault
	addrs = slices.Delete(addrs, i, i+1)
	if wasDefault && len(addrs) > 0 {
		addrs[0].IsDefault = true
	}
	s.st.addresses[uid] = addrs
	httputil.WriteMessage(w, http.StatusOK, "Address deleted")
}

func (s *Server) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.st.address(uid, id)
	if target == nil {
		s.fail(w, r, apperrors.NotFound("address", id))
		return
	}
	for _, a := range s.st.addresses[uid] {
		a.IsDefault = a == target
	}
	httputil.WriteData(w, http.StatusOK, *target)
}

func applyAddress(a *domain.Address, in domain.AddressInput) {
	a.Label = in.Label
	a.Street = in.Street
	a.City = in.City
	a.State = in.State
	a.Country = in.Country
	a.PostalCode = in.PostalCode
}
