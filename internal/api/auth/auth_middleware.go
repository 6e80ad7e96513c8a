package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/types"
)

// Typed context keys for the authenticated principal.
type contextKey string

const (
	UserIDKey    contextKey = "userID"
	UserEmailKey contextKey = "userEmail"
	UserRolesKey contextKey = "userRoles"
)

// Authenticate validates the bearer access token and resolves it to an
// active user. Requests without a valid principal are rejected with 401;
// a non-active account yields 403 with the status in the message.
func Authenticate(logger *slog.Logger, tokens *TokenService, repo AuthRepo) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			user, err := resolvePrincipal(ctx, r, tokens, repo)
			if err != nil {
				switch {
				case errors.Is(err, api.ErrAccountNotActive):
					l.WarnContext(ctx, "Authenticated user is not active")
					api.ErrorResponse(w, r, http.StatusForbidden, err.Error())
				case errors.Is(err, api.ErrUnauthenticated), errors.Is(err, api.ErrInvalidToken):
					l.WarnContext(ctx, "Authentication failed", slog.Any("error", err))
					api.ErrorResponse(w, r, http.StatusUnauthorized, "Could not validate credentials")
				default:
					// Store failure, not a credential problem.
					l.ErrorContext(ctx, "Principal lookup failed", slog.Any("error", err))
					api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, user)))
		})
	}
}

// OptionalAuthenticate resolves a principal when a valid bearer token is
// present and proceeds anonymously otherwise. It never rejects a request.
func OptionalAuthenticate(logger *slog.Logger, tokens *TokenService, repo AuthRepo) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, err := resolvePrincipal(ctx, r, tokens, repo)
			if err != nil {
				logger.DebugContext(ctx, "No principal resolved for optional-auth route", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, user)))
		})
	}
}

// RequireRoles rejects with 403 when the principal's role set does not
// intersect the allowed set. Runs AFTER Authenticate.
func RequireRoles(logger *slog.Logger, allowed ...types.Role) func(next http.Handler) http.Handler {
	allowedSet := make(map[types.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			roles, ok := GetUserRolesFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Role check without authenticated principal")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if _, allow := allowedSet[role]; allow {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.WarnContext(ctx, "Role check failed", slog.Any("roles", roles))
			api.ErrorResponse(w, r, http.StatusForbidden, "User does not have required role")
		})
	}
}

func resolvePrincipal(ctx context.Context, r *http.Request, tokens *TokenService, repo AuthRepo) (*types.User, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: missing authorization header", api.ErrUnauthenticated)
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return nil, fmt.Errorf("%w: authorization header format must be Bearer {token}", api.ErrUnauthenticated)
	}

	claims, err := tokens.Decode(headerParts[1])
	if err != nil {
		return nil, err
	}
	if claims.TokenType != types.TokenTypeAccess {
		return nil, fmt.Errorf("%w: not an access token", api.ErrInvalidToken)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", api.ErrInvalidToken)
	}

	user, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", api.ErrUnauthenticated)
		}
		return nil, err
	}
	if user.Status != types.StatusActive {
		return nil, fmt.Errorf("%w: user account is %s", api.ErrAccountNotActive, user.Status)
	}
	return user, nil
}

func withPrincipal(ctx context.Context, user *types.User) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	ctx = context.WithValue(ctx, UserEmailKey, user.Email)
	ctx = context.WithValue(ctx, UserRolesKey, user.Roles)
	return ctx
}

// GetUserIDFromContext returns the authenticated user's ID, if any.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetUserEmailFromContext returns the authenticated user's email, if any.
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// GetUserRolesFromContext returns the authenticated user's roles, if any.
func GetUserRolesFromContext(ctx context.Context) ([]types.Role, bool) {
	roles, ok := ctx.Value(UserRolesKey).([]types.Role)
	return roles, ok
}
