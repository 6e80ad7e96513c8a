package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/api/auth"
	"github.com/gharnest/gharnest/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user profile persistence.
type UserRepo interface {
	// GetUserByID retrieves the full account record.
	// Returns api.ErrNotFound if the user doesn't exist.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)

	// PhoneInUse reports whether another account already claims the phone.
	PhoneInUse(ctx context.Context, phone string, excludeUserID uuid.UUID) (bool, error)

	// UpdateProfile applies a typed patch to the mutable profile fields.
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) error

	// UpdateRoles replaces the role set.
	UpdateRoles(ctx context.Context, userID uuid.UUID, roles []string) error
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool auth.PGX
}

func NewPostgresUserRepo(pgpool auth.PGX, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var (
		u       types.User
		roles   []string
		privacy []byte
	)
	err := r.pgpool.QueryRow(ctx, `
		SELECT id, email, phone, name, profile_photo, bio, roles, verified,
		       status, privacy_settings, created_at, updated_at, last_login_at
		FROM users WHERE id = $1`, userID).Scan(
		&u.ID, &u.Email, &u.Phone, &u.Name, &u.ProfilePhoto, &u.Bio, &roles, &u.Verified,
		&u.Status, &privacy, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", api.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
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

func (r *PostgresUserRepo) PhoneInUse(ctx context.Context, phone string, excludeUserID uuid.UUID) (bool, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "PhoneInUse", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var exists bool
	err := r.pgpool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1 AND id <> $2)`,
		phone, excludeUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check phone uniqueness: %w", err)
	}
	return exists, nil
}

// UpdateProfile builds the SET clause field by field from the patch so only
// provided attributes are touched.
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	var setClauses []string
	var args []interface{}
	argID := 1

	if params.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argID))
		args = append(args, *params.Name)
		argID++
		span.SetAttributes(attribute.Bool("update.name", true))
	}
	if params.Phone != nil {
		setClauses = append(setClauses, fmt.Sprintf("phone = $%d", argID))
		args = append(args, *params.Phone)
		argID++
		span.SetAttributes(attribute.Bool("update.phone", true))
	}
	if params.ProfilePhoto != nil {
		setClauses = append(setClauses, fmt.Sprintf("profile_photo = $%d", argID))
		args = append(args, *params.ProfilePhoto)
		argID++
		span.SetAttributes(attribute.Bool("update.profile_photo", true))
	}
	if params.Bio != nil {
		setClauses = append(setClauses, fmt.Sprintf("bio = $%d", argID))
		args = append(args, *params.Bio)
		argID++
		span.SetAttributes(attribute.Bool("update.bio", true))
	}
	if params.Privacy != nil {
		encoded, err := json.Marshal(params.Privacy)
		if err != nil {
			return fmt.Errorf("failed to encode privacy settings: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("privacy_settings = $%d", argID))
		args = append(args, encoded)
		argID++
		span.SetAttributes(attribute.Bool("update.privacy_settings", true))
	}

	if len(setClauses) == 0 {
		l.WarnContext(ctx, "UpdateProfile called with no fields to update")
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argID))
	args = append(args, time.Now())
	argID++
	args = append(args, userID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argID)
	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update profile: %w", api.ErrNotFound)
	}

	l.InfoContext(ctx, "Profile updated")
	return nil
}

func (r *PostgresUserRepo) UpdateRoles(ctx context.Context, userID uuid.UUID, roles []string) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateRoles", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET roles = $1, updated_at = $2 WHERE id = $3`,
		roles, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update roles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update roles: %w", api.ErrNotFound)
	}
	return nil
}
