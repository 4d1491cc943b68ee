package mockapi

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

const otpTTL = 10 * time.Minute

type registerRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,phone10"`
	CountryCode string `json:"countryCode"`
	Password    string `json:"password" validate:"required,min=8,strongpw"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// register handles POST /auth/register. The account stays unverified until
// the emailed code is confirmed.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.fail(w, r, apperrors.Internal(fmt.Errorf("hash password: %w", err)))
		return
	}

	s.mu.Lock()
	if s.st.accountByEmail(req.Email) != nil {
		s.mu.Unlock()
		s.fail(w, r, apperrors.Conflict("User already exists with this email"))
		return
	}
	now := time.Now().UTC()
	a := s.st.addAccount(domain.User{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
		Role:        domain.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, hash)
	code, err := s.issueOTP(a)
	s.mu.Unlock()
	if err != nil {
		s.fail(w, r, apperrors.Internal(err))
		return
	}

	s.log(r).InfoContext(r.Context(), "verification code issued",
		slog.String("email", req.Email),
		slog.String("otp", code),
	)
	httputil.WriteMessage(w, http.StatusCreated, "Registration successful. Please verify your email.")
}

// login handles POST /auth/login. Unverified accounts are refused with 403.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.Credentials
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	s.mu.Lock()
	a := s.st.accountByEmail(req.Email)
	var hash []byte
	if a != nil {
		hash = a.passwordHash
	}
	s.mu.Unlock()

	if a == nil || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		s.fail(w, r, apperrors.InvalidCredentials("Invalid email or password"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !a.user.EmailVerified {
		s.fail(w, r, apperrors.EmailUnverified("Please verify your email before logging in"))
		return
	}
	s.writeAuth(w, r, a)
}

// verifyEmail handles POST /auth/verify-email and signs the user in.
func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailVerification
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.st.accountByEmail(req.Email)
	switch {
	case a == nil:
		s.fail(w, r, apperrors.NotFound("user", req.Email))
		return
	case a.user.EmailVerified:
		s.fail(w, r, apperrors.Validation("Email is already verified", nil))
		return
	case a.otp == "" || a.otp != req.OTP || time.Now().After(a.otpExpires):
		s.fail(w, r, apperrors.Validation("Invalid or expired OTP", map[string]string{"otp": "is invalid or expired"}))
		return
	}
	a.user.EmailVerified = true
	a.user.UpdatedAt = time.Now().UTC()
	a.otp = ""
	s.writeAuth(w, r, a)
}

// resendOTP handles POST /auth/resend-otp.
func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	s.mu.Lock()
	a := s.st.accountByEmail(req.Email)
	if a == nil {
		s.mu.Unlock()
		s.fail(w, r, apperrors.NotFound("user", req.Email))
		return
	}
	if a.user.EmailVerified {
		s.mu.Unlock()
		s.fail(w, r, apperrors.Validation("Email is already verified", nil))
		return
	}
	code, err := s.issueOTP(a)
	s.mu.Unlock()
	if err != nil {
		s.fail(w, r, apperrors.Internal(err))
		return
	}

	s.log(r).InfoContext(r.Context(), "verification code reissued",
		slog.String("email", req.Email),
		slog.String("otp", code),
	)
	httputil.WriteMessage(w, http.StatusOK, "OTP sent to your email")
}

// refreshToken handles POST /auth/refresh-token. Refresh tokens rotate: the
// presented token is spent and a new pair is returned.
func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	claims, err := s.tokens.parseRefresh(req.RefreshToken)
	if err != nil {
		s.fail(w, r, apperrors.NotAuthenticated("Invalid refresh token"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[claims.Subject]
	if !ok || claims.Gen != a.tokenGen || s.st.spent[claims.ID] {
		s.fail(w, r, apperrors.NotAuthenticated("Refresh token revoked"))
		return
	}
	s.st.spent[claims.ID] = true

	access, err := s.tokens.access(a, s.st.accessEpoch)
	if err != nil {
		s.fail(w, r, apperrors.Internal(err))
		return
	}
	refresh, _, err := s.tokens.refresh(a)
	if err != nil {
		s.fail(w, r, apperrors.Internal(err))
		return
	}
	httputil.WriteData(w, http.StatusOK, domain.TokenPair{AccessToken: access, RefreshToken: refresh})
}

// logout handles POST /auth/logout and revokes every token of the user.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	if a, ok := s.st.accounts[uid]; ok {
		a.tokenGen++
	}
	s.mu.Unlock()
	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// me handles GET /auth/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserIDFromContext(r.Context())
	s.mu.Lock()
	a, ok := s.st.accounts[uid]
	var u domain.User
	if ok {
		u = a.user
	}
	s.mu.Unlock()
	if !ok {
		s.fail(w, r, apperrors.NotFound("user", uid))
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]domain.User{"user": u})
}

// writeAuth issues a token pair for a. Caller holds s.mu.
func (s *Server) writeAuth(w http.ResponseWriter, r *http.Request, a *account) {
	access, err := s.tokens.access(a, s.st.accessEpoch)
	if err != nil {
		s.fail(w, r, apperrors.Internal(err))
		return
	}
	refresh, _, err := s.tokens.refresh(a)
	if err != nil {
		s.fail(w, r, apperrors.Internal(err))
		return
	}
	httputil.WriteData(w, http.StatusOK, domain.AuthResponse{User: a.user, AccessToken: access, RefreshToken: refresh})
}

// issueOTP stores a fresh six-digit code on a. Caller holds s.mu.
func (s *Server) issueOTP(a *account) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	a.otp = fmt.Sprintf("%06d", n.Int64())
	a.otpExpires = time.Now().Add(otpTTL)
	return a.otp, nil
}
