package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gharnest/gharnest/app/observability/metrics"
	"github.com/gharnest/gharnest/config"
	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/api/auth"
	"github.com/gharnest/gharnest/internal/api/user"
	"github.com/gharnest/gharnest/internal/types"
)

// memoryRepo is an in-memory user store satisfying both auth.AuthRepo and
// user.UserRepo, so the full HTTP surface can be exercised without Postgres.
type memoryRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[uuid.UUID]types.User)}
}

func (r *memoryRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user: %w", api.ErrNotFound)
}

func (r *memoryRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user: %w", api.ErrNotFound)
	}
	out := u
	return &out, nil
}

func (r *memoryRepo) GetUserByPhone(ctx context.Context, phone string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone != nil && *u.Phone == phone {
			out := u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user: %w", api.ErrNotFound)
}

func (r *memoryRepo) CreateUser(ctx context.Context, u *types.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: users_email_key", api.ErrConflict)
		}
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.users[u.ID] = *u
	return nil
}

func (r *memoryRepo) UpdateLoginState(ctx context.Context, userID uuid.UUID, failedAttempts int, lockedUntil, lastLoginAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("update login state: %w", api.ErrNotFound)
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	if lastLoginAt != nil {
		u.LastLoginAt = lastLoginAt
	}
	r.users[userID] = u
	return nil
}

func (r *memoryRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("update password: %w", api.ErrNotFound)
	}
	u.PasswordHash = newHash
	r.users[userID] = u
	return nil
}

func (r *memoryRepo) ResetPassword(ctx context.Context, userID uuid.UUID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("reset password: %w", api.ErrNotFound)
	}
	u.PasswordHash = newHash
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	r.users[userID] = u
	return nil
}

func (r *memoryRepo) PhoneInUse(ctx context.Context, phone string, excludeUserID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if id != excludeUserID && u.Phone != nil && *u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params user.UpdateProfileParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("update profile: %w", api.ErrNotFound)
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Phone != nil {
		u.Phone = params.Phone
	}
	if params.ProfilePhoto != nil {
		u.ProfilePhoto = params.ProfilePhoto
	}
	if params.Bio != nil {
		u.Bio = params.Bio
	}
	if params.Privacy != nil {
		u.Privacy = params.Privacy
	}
	u.UpdatedAt = time.Now()
	r.users[userID] = u
	return nil
}

func (r *memoryRepo) UpdateRoles(ctx context.Context, userID uuid.UUID, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("update roles: %w", api.ErrNotFound)
	}
	u.Roles = types.RolesFromStrings(roles)
	u.UpdatedAt = time.Now()
	r.users[userID] = u
	return nil
}

func (r *memoryRepo) promoteToAdmin(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[userID]
	u.Roles = append(u.Roles, types.RoleAdmin)
	r.users[userID] = u
}

func newTestServer(t *testing.T) (*httptest.Server, *memoryRepo) {
	t.Helper()
	logger := slog.Default()
	authCfg := config.AuthConfig{
		SecretKey:        "integration-test-secret",
		Issuer:           "gharnest-test",
		AccessTokenTTL:   30 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		ResetTokenTTL:    time.Hour,
		MaxLoginAttempts: 5,
		LockoutDuration:  15 * time.Minute,
	}

	repo := newMemoryRepo()
	tokens := auth.NewTokenService(authCfg)
	guard := auth.NewLockoutPolicy(authCfg)
	notifier := auth.NewLogNotifier(logger)
	authService := auth.NewAuthService(repo, tokens, guard, notifier, metrics.InitAppMetrics(), logger)
	userService := user.NewUserService(repo, logger)

	r := SetupRouter(&Config{
		AuthHandler:        auth.NewAuthHandler(authService, logger),
		UserHandler:        user.NewUserHandler(userService, logger),
		Authenticate:       auth.Authenticate(logger, tokens, repo),
		OptionalAuth:       auth.OptionalAuthenticate(logger, tokens, repo),
		RequireAdmin:       auth.RequireRoles(logger, types.RoleAdmin),
		RateLimitPerMinute: 1000,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerAndLogin(t *testing.T, srv *httptest.Server, email string) (userID uuid.UUID, accessToken string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     "Flow User",
		"password": "Password1!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID, err := uuid.Parse(body["id"].(string))
	require.NoError(t, err)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "Password1!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return userID, body["access_token"].(string)
}

func TestRegisterLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", map[string]string{
		"email":    "flow@example.com",
		"name":     "Flow User",
		"password": "Password1!",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "flow@example.com", body["email"])
	assert.NotContains(t, body, "password_hash")

	// Duplicate registration conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", map[string]string{
		"email":    "flow@example.com",
		"name":     "Flow User",
		"password": "Password1!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "Password1!",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])

	// Refresh exchanges the pair.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": body["refresh_token"].(string),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
}

func TestLockoutFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	registerAndLogin(t, srv, "lockout@example.com")

	// Four wrong passwords report invalid credentials.
	for i := 0; i < 4; i++ {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
			"email":    "lockout@example.com",
			"password": "WrongPassword1!",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// The fifth locks the account.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
		"email":    "lockout@example.com",
		"password": "WrongPassword1!",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Even the correct password is rejected while locked.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
		"email":    "lockout@example.com",
		"password": "Password1!",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	registerAndLogin(t, srv, "reset@example.com")

	// Unknown email gets the same generic answer, without a token.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/password-reset-request", "", map[string]string{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "token")

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/password-reset-request", "", map[string]string{
		"email": "reset@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resetToken, _ := body["token"].(string)
	require.NotEmpty(t, resetToken)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/password-reset-confirm", "", map[string]string{
		"token":        resetToken,
		"new_password": "Changed1!",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password no longer works, new one does.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
		"email":    "reset@example.com",
		"password": "Password1!",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
		"email":    "reset@example.com",
		"password": "Changed1!",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfileAndRoleRoutes(t *testing.T) {
	srv, repo := newTestServer(t)
	ownerID, ownerToken := registerAndLogin(t, srv, "owner@example.com")
	strangerID, strangerToken := registerAndLogin(t, srv, "stranger@example.com")

	t.Run("ProtectedRouteRequiresToken", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/users/"+ownerID.String()+"/profile", "", map[string]string{
			"bio": "hello",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("OwnerUpdatesOwnProfile", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/users/"+ownerID.String()+"/profile", ownerToken, map[string]any{
			"bio":              "Longtime landlord",
			"privacy_settings": map[string]bool{"hide_email": true},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Longtime landlord", body["bio"])
	})

	t.Run("StrangerCannotUpdateOthersProfile", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/users/"+ownerID.String()+"/profile", strangerToken, map[string]string{
			"bio": "defaced",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("PrivacyHidesEmailFromStrangers", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+ownerID.String()+"/profile", strangerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, body, "email")

		resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+ownerID.String()+"/profile", ownerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "owner@example.com", body["email"])
	})

	t.Run("RoleRoutesAreAdminOnly", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/"+ownerID.String()+"/roles", ownerToken, map[string]string{
			"role": "agent",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("AdminGrantsAndRevokesRoles", func(t *testing.T) {
		repo.promoteToAdmin(strangerID)
		// Role changes land in tokens on the next issuance.
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", map[string]string{
			"email":    "stranger@example.com",
			"password": "Password1!",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		adminToken := body["access_token"].(string)

		resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/"+ownerID.String()+"/roles", adminToken, map[string]string{
			"role": "agent",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["roles"], 2)

		resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/users/"+ownerID.String()+"/roles/agent", adminToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["roles"], 1)

		// The role floor: the final role cannot be removed.
		resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/users/"+ownerID.String()+"/roles/seeker", adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
