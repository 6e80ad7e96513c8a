package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gharnest/gharnest/app/observability/metrics"
	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService composes the credential codec, token service and lockout
// policy into the authentication flows. Every flow is one run per call;
// the only cross-call memory is the user record.
type AuthService interface {
	// Register creates a new account with the seeker role. Duplicate email
	// or phone yields api.ErrConflict.
	Register(ctx context.Context, req RegisterRequest) (*types.User, error)

	// Login authenticates email/password and returns a fresh token pair.
	Login(ctx context.Context, email, password string) (*TokenResponse, error)

	// Refresh exchanges a valid refresh token for a new pair. The old
	// refresh token stays valid until its natural expiry.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// RequestPasswordReset issues a reset token when the email exists and
	// hands it to the notifier. Unknown emails return ("", nil) so callers
	// cannot probe for accounts.
	RequestPasswordReset(ctx context.Context, email string) (string, error)

	// ConfirmPasswordReset validates a reset token and overwrites the
	// credential, clearing any lockout state.
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error

	// ChangePassword overwrites the credential for an authenticated user
	// after verifying the current password.
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger   *slog.Logger
	repo     AuthRepo
	tokens   *TokenService
	guard    LockoutPolicy
	notifier Notifier
	metrics  *metrics.AppMetrics
}

// NewAuthService creates a new auth service instance.
func NewAuthService(repo AuthRepo, tokens *TokenService, guard LockoutPolicy, notifier Notifier, m *metrics.AppMetrics, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		tokens:   tokens,
		guard:    guard,
		notifier: notifier,
		metrics:  m,
	}
}

// Register creates a new user with hashed credentials and the default role.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("email", req.Email))
	l.DebugContext(ctx, "Registering new user")

	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		l.WarnContext(ctx, "Registration rejected, email already registered")
		return nil, fmt.Errorf("%w: email already registered", api.ErrConflict)
	} else if !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("error checking email uniqueness: %w", err)
	}

	if req.Phone != nil {
		if _, err := s.repo.GetUserByPhone(ctx, *req.Phone); err == nil {
			l.WarnContext(ctx, "Registration rejected, phone already registered")
			return nil, fmt.Errorf("%w: phone number already registered", api.ErrConflict)
		} else if !errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("error checking phone uniqueness: %w", err)
		}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	user := &types.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Name:         req.Name,
		Roles:        []types.Role{types.RoleSeeker},
		Verified:     false,
		Status:       types.StatusActive,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, api.ErrConflict) {
			return nil, fmt.Errorf("%w: email or phone already registered", api.ErrConflict)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create user")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.metrics.RegisterRequestsTotal.Add(ctx, 1)
	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	return user, nil
}

// Login runs the credential check behind the lockout guard. The order is
// deliberate: lock before password, status only after password success, so
// a wrong password on an inactive account still reports the generic failure
// and still counts toward the lockout.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))
	now := time.Now()
	s.metrics.LoginAttemptsTotal.Add(ctx, 1)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			// Same error as a wrong password, no account enumeration.
			l.WarnContext(ctx, "Login failed, unknown email")
			return nil, api.ErrInvalidCredentials
		}
		span.RecordError(err)
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	if s.guard.IsLocked(user, now) {
		l.WarnContext(ctx, "Login rejected, account locked")
		return nil, fmt.Errorf("%w: too many failed login attempts, try again later", api.ErrAccountLocked)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		freshLock := s.guard.RecordFailure(user, now)
		if err := s.repo.UpdateLoginState(ctx, user.ID, user.FailedLoginAttempts, user.LockedUntil, nil); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error persisting failed attempt: %w", err)
		}
		if freshLock {
			s.metrics.LoginLockoutsTotal.Add(ctx, 1)
			l.WarnContext(ctx, "Account locked after repeated failures",
				slog.Int("failed_attempts", user.FailedLoginAttempts))
			return nil, fmt.Errorf("%w: too many failed login attempts, try again later", api.ErrAccountLocked)
		}
		l.WarnContext(ctx, "Login failed, wrong password",
			slog.Int("failed_attempts", user.FailedLoginAttempts))
		return nil, api.ErrInvalidCredentials
	}

	if user.Status != types.StatusActive {
		l.WarnContext(ctx, "Login rejected, account not active", slog.String("status", string(user.Status)))
		return nil, fmt.Errorf("%w: account is %s", api.ErrAccountNotActive, user.Status)
	}

	s.guard.RecordSuccess(user, now)
	if err := s.repo.UpdateLoginState(ctx, user.ID, 0, nil, &now); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error persisting successful login: %w", err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token issuance failed")
		return nil, err
	}

	l.InfoContext(ctx, "Login successful", slog.String("userID", user.ID.String()))
	return pair, nil
}

// Refresh exchanges a refresh token for a new access/refresh pair.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Refresh")
	defer span.End()

	l := s.logger.With(slog.String("method", "Refresh"))

	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		l.WarnContext(ctx, "Refresh token decode failed", slog.Any("error", err))
		return nil, api.ErrInvalidToken
	}
	if claims.TokenType != types.TokenTypeRefresh {
		l.WarnContext(ctx, "Refresh rejected, wrong token type", slog.String("type", string(claims.TokenType)))
		return nil, api.ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, api.ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.ErrInvalidToken
		}
		span.RecordError(err)
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if user.Status != types.StatusActive {
		l.WarnContext(ctx, "Refresh rejected, account not active", slog.String("status", string(user.Status)))
		return nil, api.ErrInvalidToken
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.InfoContext(ctx, "Token pair refreshed", slog.String("userID", user.ID.String()))
	return pair, nil
}

// RequestPasswordReset issues a reset token for known accounts. The caller
// must report the same generic success either way.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RequestPasswordReset")
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestPasswordReset"), slog.String("email", email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			l.InfoContext(ctx, "Password reset requested for unknown email, no token issued")
			return "", nil
		}
		span.RecordError(err)
		return "", fmt.Errorf("error fetching user: %w", err)
	}

	token, err := s.tokens.IssuePasswordResetToken(user.Email)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("error delivering reset token: %w", err)
	}

	l.InfoContext(ctx, "Password reset token issued")
	return token, nil
}

// ConfirmPasswordReset overwrites the credential addressed by a valid reset
// token and clears the lockout state. Other outstanding reset tokens for the
// same email stay individually valid until expiry.
func (s *AuthServiceImpl) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ConfirmPasswordReset")
	defer span.End()

	l := s.logger.With(slog.String("method", "ConfirmPasswordReset"))

	claims, err := s.tokens.Decode(token)
	if err != nil {
		l.WarnContext(ctx, "Reset token decode failed", slog.Any("error", err))
		return api.ErrInvalidToken
	}
	if claims.TokenType != types.TokenTypePasswordReset {
		l.WarnContext(ctx, "Reset rejected, wrong token type", slog.String("type", string(claims.TokenType)))
		return api.ErrInvalidToken
	}

	user, err := s.repo.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("%w: user not found", api.ErrNotFound)
		}
		span.RecordError(err)
		return fmt.Errorf("error fetching user: %w", err)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.repo.ResetPassword(ctx, user.ID, hash); err != nil {
		span.RecordError(err)
		return fmt.Errorf("error resetting password: %w", err)
	}

	l.InfoContext(ctx, "Password reset confirmed", slog.String("userID", user.ID.String()))
	return nil
}

// ChangePassword verifies the current credential before overwriting it. The
// new password must differ from the current one as plaintext, not as hash.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ChangePassword", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ChangePassword"), slog.String("userID", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("%w: user not found", api.ErrNotFound)
		}
		span.RecordError(err)
		return fmt.Errorf("error fetching user: %w", err)
	}

	if !VerifyPassword(currentPassword, user.PasswordHash) {
		l.WarnContext(ctx, "Change password rejected, current password incorrect")
		return fmt.Errorf("%w: current password is incorrect", api.ErrInvalidCredentials)
	}
	if currentPassword == newPassword {
		return api.ErrSamePassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		span.RecordError(err)
		return fmt.Errorf("error updating password: %w", err)
	}

	l.InfoContext(ctx, "Password changed")
	return nil
}

func (s *AuthServiceImpl) issuePair(ctx context.Context, user *types.User) (*TokenResponse, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.RoleStrings())
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	s.metrics.TokensIssuedTotal.Add(ctx, 2)
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}
