package auth

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Name     string  `json:"name" validate:"required,min=1,max=255"`
	Password string  `json:"password" validate:"required,strongpass"`
}

// LoginRequest represents the expected JSON body for email/password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse represents the successful JSON response carrying a fresh
// access/refresh pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// RefreshTokenRequest represents the expected JSON body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// PasswordResetRequest represents the expected JSON body when requesting a
// reset token.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest represents the expected JSON body confirming a
// reset with the delivered token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,strongpass"`
}

// ChangePasswordRequest represents the expected JSON body for changing the
// authenticated user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strongpass"`
}

var (
	phoneRegex       = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
	upperRegex       = regexp.MustCompile(`[A-Z]`)
	lowerRegex       = regexp.MustCompile(`[a-z]`)
	digitRegex       = regexp.MustCompile(`\d`)
	specialCharRegex = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// NewValidator builds the request validator with the marketplace's custom
// rules: E.164-style phone numbers and the password strength policy
// (min 8 chars, upper, lower, digit, special).
func NewValidator() *validator.Validate {
	v := validator.New()

	// Registration errors are impossible here: the rule names are constant
	// and the functions are non-nil.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpass", func(fl validator.FieldLevel) bool {
		pw := fl.Field().String()
		if len(pw) < 8 || len(pw) > 128 {
			return false
		}
		return upperRegex.MatchString(pw) &&
			lowerRegex.MatchString(pw) &&
			digitRegex.MatchString(pw) &&
			specialCharRegex.MatchString(pw)
	})
	return v
}
