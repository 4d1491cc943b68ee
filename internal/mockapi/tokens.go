package mockapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "storefront-mockapi"

// accessClaims are carried by access tokens. Epoch ties the token to the
// server's current access epoch so tests can force a 401.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Gen   int    `json:"gen"`
	Epoch int    `json:"epoch"`
	jwt.RegisteredClaims
}

// refreshClaims are carried by refresh tokens. Each refresh token is
// single-use: its ID is spent when exchanged.
type refreshClaims struct {
	Gen int `json:"gen"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and parses HS256 tokens.
type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func newTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *tokenIssuer {
	return &tokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (t *tokenIssuer) access(u *account, epoch int) (string, error) {
	now := t.now().UTC()
	claims := &accessClaims{
		Email: u.user.Email,
		Role:  string(u.user.Role),
		Gen:   u.tokenGen,
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"access"},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (t *tokenIssuer) refresh(u *account) (token, id string, err error) {
	now := t.now().UTC()
	id = uuid.NewString()
	claims := &refreshClaims{
		Gen: u.tokenGen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.user.ID,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"refresh"},
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, id, nil
}

func (t *tokenIssuer) parseAccess(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if err := t.parse(token, claims, jwt.WithAudience("access")); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

func (t *tokenIssuer) parseRefresh(token string) (*refreshClaims, error) {
	claims := &refreshClaims{}
	if err := t.parse(token, claims, jwt.WithAudience("refresh")); err != nil {
		return nil, fmt.Errorf("parse refresh token: %w", err)
	}
	return claims, nil
}

func (t *tokenIssuer) parse(token string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}
