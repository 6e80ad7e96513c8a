package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gharnest/gharnest/config"
	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/types"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(testAuthConfig())
	userID := uuid.New()

	t.Run("AccessToken", func(t *testing.T) {
		token, err := svc.IssueAccessToken(userID, "test@example.com", []string{"seeker", "owner"})
		assert.NoError(t, err)

		claims, err := svc.Decode(token)
		assert.NoError(t, err)
		assert.Equal(t, types.TokenTypeAccess, claims.TokenType)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Equal(t, "test@example.com", claims.Email)
		assert.Equal(t, []string{"seeker", "owner"}, claims.Roles)
		assert.Equal(t, "test-issuer", claims.Issuer)
	})

	t.Run("RefreshToken", func(t *testing.T) {
		token, err := svc.IssueRefreshToken(userID)
		assert.NoError(t, err)

		claims, err := svc.Decode(token)
		assert.NoError(t, err)
		assert.Equal(t, types.TokenTypeRefresh, claims.TokenType)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Empty(t, claims.Roles)
	})

	t.Run("PasswordResetToken", func(t *testing.T) {
		token, err := svc.IssuePasswordResetToken("test@example.com")
		assert.NoError(t, err)

		claims, err := svc.Decode(token)
		assert.NoError(t, err)
		assert.Equal(t, types.TokenTypePasswordReset, claims.TokenType)
		assert.Equal(t, "test@example.com", claims.Email)
	})
}

func TestTokenService_TokensDifferAcrossIssuance(t *testing.T) {
	svc := NewTokenService(testAuthConfig())
	userID := uuid.New()

	first, err := svc.IssueAccessToken(userID, "test@example.com", []string{"seeker"})
	assert.NoError(t, err)

	// Claims carry issuance time at second precision, so cross a second
	// boundary before the next issuance.
	time.Sleep(1100 * time.Millisecond)

	second, err := svc.IssueAccessToken(userID, "test@example.com", []string{"seeker"})
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenService_Decode(t *testing.T) {
	svc := NewTokenService(testAuthConfig())
	userID := uuid.New()

	t.Run("WrongSecretRejected", func(t *testing.T) {
		token, err := svc.IssueAccessToken(userID, "test@example.com", nil)
		assert.NoError(t, err)

		other := NewTokenService(config.AuthConfig{
			SecretKey:      "another-secret",
			Issuer:         "test-issuer",
			AccessTokenTTL: 30 * time.Minute,
		})
		_, err = other.Decode(token)
		assert.ErrorIs(t, err, api.ErrInvalidToken)
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.AccessTokenTTL = -time.Minute
		expired := NewTokenService(cfg)

		token, err := expired.IssueAccessToken(userID, "test@example.com", nil)
		assert.NoError(t, err)

		_, err = svc.Decode(token)
		assert.ErrorIs(t, err, api.ErrInvalidToken)
	})

	t.Run("GarbageRejected", func(t *testing.T) {
		_, err := svc.Decode("definitely.not.a-jwt")
		assert.ErrorIs(t, err, api.ErrInvalidToken)
	})

	t.Run("DecodeDoesNotScopeByPurpose", func(t *testing.T) {
		// Purpose checks belong to the callers; Decode only verifies
		// signature and expiry.
		token, err := svc.IssueRefreshToken(userID)
		assert.NoError(t, err)

		claims, err := svc.Decode(token)
		assert.NoError(t, err)
		assert.Equal(t, types.TokenTypeRefresh, claims.TokenType)
	})
}
