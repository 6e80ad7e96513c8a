package types

import "github.com/golang-jwt/jwt/v5"

// TokenType discriminates the purpose a token was issued for. Decode does
// not scope by purpose; every caller must check this field.
type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypePasswordReset TokenType = "password_reset"
)

// Claims is the signed payload carried by every token. Access tokens embed
// the email and a roles snapshot taken at issuance; the snapshot may go
// stale relative to the user record until the token expires.
type Claims struct {
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}
