package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gharnest/gharnest/config"
	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/types"
)

// TokenService issues and decodes the three token purposes. Tokens are
// HMAC-signed with a process-wide secret and carry their own expiry; there
// is no revocation list, invalidation is solely via expiry.
type TokenService struct {
	secretKey []byte
	issuer    string
	cfg       config.AuthConfig
}

// NewTokenService constructs a TokenService from the fixed auth config.
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		cfg:       cfg,
	}
}

// IssueAccessToken signs a short-lived access token embedding the email and
// a roles snapshot. The snapshot may go stale against the user record; role
// changes take effect when the holder refreshes.
func (s *TokenService) IssueAccessToken(userID uuid.UUID, email string, roles []string) (string, error) {
	return s.sign(types.Claims{
		Email:     email,
		Roles:     roles,
		TokenType: types.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.AccessTokenTTL)),
		},
	})
}

// IssueRefreshToken signs a long-lived refresh token carrying only the
// subject.
func (s *TokenService) IssueRefreshToken(userID uuid.UUID) (string, error) {
	return s.sign(types.Claims{
		TokenType: types.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.RefreshTokenTTL)),
		},
	})
}

// IssuePasswordResetToken signs a reset token addressed by email rather than
// subject, valid for the reset TTL.
func (s *TokenService) IssuePasswordResetToken(email string) (string, error) {
	return s.sign(types.Claims{
		Email:     email,
		TokenType: types.TokenTypePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.ResetTokenTTL)),
		},
	})
}

func (s *TokenService) sign(claims types.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode parses and verifies any token purpose. It fails on bad signature,
// malformed structure or expiry; it does NOT scope by purpose, every caller
// must check Claims.TokenType.
func (s *TokenService) Decode(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, api.ErrInvalidToken
	}
	return claims, nil
}
