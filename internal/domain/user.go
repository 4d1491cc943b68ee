package domain

import "time"

// Role is the account role reported by the server.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the authenticated account.
type User struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	CountryCode   string    `json:"countryCode,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up request. ConfirmPassword is checked locally and
// never sent.
type Registration struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,phone10"`
	CountryCode     string `json:"countryCode,omitempty"`
	Password        string `json:"password" validate:"required,min=8,strongpw"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
}

// EmailVerification confirms an account with the one-time code sent by email.
type EmailVerification struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// AuthResponse is returned by login and email verification.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is returned by the refresh endpoint. The refresh token is
// optional; servers that do not rotate it omit the field.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// ProfileUpdate is the body of PUT /user/profile. Email is not editable.
type ProfileUpdate struct {
	Name  string `json:"name" validate:"required,min=2"`
	Phone string `json:"phone" validate:"required,phone10"`
}

// PasswordChange is the body of PATCH /user/change-password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,strongpw,nefield=CurrentPassword"`
}
