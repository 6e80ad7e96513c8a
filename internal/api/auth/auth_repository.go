package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/types"
)

// PGX is the subset of pgxpool.Pool the repositories use. pgxmock satisfies
// it in tests.
type PGX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the user-record store consumed by the auth flows. Lookups are
// by unique email, id or phone; writes persist only the mutated fields.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*types.User, error)

	// CreateUser inserts a new account. Returns api.ErrConflict on a
	// duplicate email or phone.
	CreateUser(ctx context.Context, user *types.User) error

	// UpdateLoginState persists the lockout counters and last-login stamp
	// after record_failure / record_success.
	UpdateLoginState(ctx context.Context, userID uuid.UUID, failedAttempts int, lockedUntil, lastLoginAt *time.Time) error

	// UpdatePasswordHash overwrites the stored credential.
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newHash string) error

	// ResetPassword overwrites the stored credential and clears the lockout
	// state in one statement, so a reset never leaves a changed password
	// behind a surviving lock.
	ResetPassword(ctx context.Context, userID uuid.UUID, newHash string) error
}

const userColumns = `id, email, phone, password_hash, name, profile_photo, bio,
	       roles, verified, status, privacy_settings,
	       failed_login_attempts, locked_until, created_at, updated_at, last_login_at`

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PGX
}

func NewPostgresAuthRepo(pgpool PGX, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByPhone(ctx context.Context, phone string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByPhone", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, user *types.User) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"), slog.String("email", user.Email))

	privacy, err := marshalPrivacy(user.Privacy)
	if err != nil {
		return err
	}

	_, err = r.pgpool.Exec(ctx,
		`INSERT INTO users (id, email, phone, password_hash, name, roles, verified, status, privacy_settings)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.Phone, user.PasswordHash, user.Name,
		user.RoleStrings(), user.Verified, string(user.Status), privacy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			l.WarnContext(ctx, "Unique constraint violation on user insert", slog.String("constraint", pgErr.ConstraintName))
			return fmt.Errorf("%w: %s", api.ErrConflict, pgErr.ConstraintName)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdateLoginState(ctx context.Context, userID uuid.UUID, failedAttempts int, lockedUntil, lastLoginAt *time.Time) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "UpdateLoginState", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = $1, locked_until = $2, last_login_at = COALESCE($3, last_login_at), updated_at = $4
		 WHERE id = $5`,
		failedAttempts, lockedUntil, lastLoginAt, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update login state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update login state: %w", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newHash string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "UpdatePasswordHash", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: %w", api.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) ResetPassword(ctx context.Context, userID uuid.UUID, newHash string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "ResetPassword", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $1, failed_login_attempts = 0, locked_until = NULL, updated_at = $2
		 WHERE id = $3`,
		newHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reset password: %w", api.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*types.User, error) {
	var (
		u       types.User
		roles   []string
		privacy []byte
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &u.Name, &u.ProfilePhoto, &u.Bio,
		&roles, &u.Verified, &u.Status, &privacy,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", api.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Roles = types.RolesFromStrings(roles)
	if len(privacy) > 0 {
		var p types.PrivacySettings
		if err := json.Unmarshal(privacy, &p); err != nil {
			return nil, fmt.Errorf("failed to decode privacy settings: %w", err)
		}
		u.Privacy = &p
	}
	return &u, nil
}

func marshalPrivacy(p *types.PrivacySettings) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode privacy settings: %w", err)
	}
	return out, nil
}
