package user

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/gharnest/gharnest/internal/api"
)

func newMockRepo(t *testing.T) (*PostgresUserRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresUserRepo(mockPool, slog.Default()), mockPool
}

func TestPostgresUserRepo_GetUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		userID := uuid.New()
		now := time.Now()

		rows := pgxmock.NewRows([]string{
			"id", "email", "phone", "name", "profile_photo", "bio", "roles",
			"verified", "status", "privacy_settings", "created_at", "updated_at", "last_login_at",
		}).AddRow(
			userID, "test@example.com", nil, "Test User", nil, nil, []string{"seeker", "owner"},
			true, "active", []byte(`{"hide_email":true}`), now, now, nil,
		)
		mockPool.ExpectQuery("SELECT id, email, phone, name, profile_photo, bio, roles").
			WithArgs(userID).
			WillReturnRows(rows)

		u, err := repo.GetUserByID(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, "test@example.com", u.Email)
		assert.Len(t, u.Roles, 2)
		assert.NotNil(t, u.Privacy)
		assert.True(t, u.Privacy.HideEmail)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		userID := uuid.New()

		mockPool.ExpectQuery("SELECT id, email, phone, name, profile_photo, bio, roles").
			WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByID(ctx, userID)

		assert.ErrorIs(t, err, api.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresUserRepo_PhoneInUse(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs("+15551234567", userID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.PhoneInUse(ctx, "+15551234567", userID)

	assert.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresUserRepo_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("PatchesOnlyProvidedFields", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		userID := uuid.New()
		name := "New Name"
		bio := "New bio"

		mockPool.ExpectExec(`UPDATE users SET name = \$1, bio = \$2, updated_at = \$3 WHERE id = \$4`).
			WithArgs(name, bio, pgxmock.AnyArg(), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateProfile(ctx, userID, UpdateProfileParams{Name: &name, Bio: &bio})

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyPatchIsNoOp", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		err := repo.UpdateProfile(ctx, uuid.New(), UpdateProfileParams{})

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		userID := uuid.New()
		name := "New Name"

		mockPool.ExpectExec(`UPDATE users SET name = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs(name, pgxmock.AnyArg(), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateProfile(ctx, userID, UpdateProfileParams{Name: &name})

		assert.ErrorIs(t, err, api.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresUserRepo_UpdateRoles(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectExec(`UPDATE users SET roles = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs([]string{"seeker", "owner"}, pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateRoles(ctx, userID, []string{"seeker", "owner"})

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
