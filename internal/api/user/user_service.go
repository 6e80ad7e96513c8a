package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService exposes profile reads and mutations plus admin role
// management.
type UserService interface {
	// GetProfile returns the privacy-filtered public view of userID as seen
	// by viewerID. A nil viewerID means an anonymous request.
	GetProfile(ctx context.Context, userID uuid.UUID, viewerID *uuid.UUID) (*ProfileResponse, error)

	// UpdateProfile applies a typed patch to the caller's own profile.
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*ProfileResponse, error)

	// AddRole grants a role. Adding a role the user already holds is a
	// no-op.
	AddRole(ctx context.Context, userID uuid.UUID, role types.Role) ([]types.Role, error)

	// RemoveRole revokes a role. The last remaining role cannot be removed.
	RemoveRole(ctx context.Context, userID uuid.UUID, role types.Role) ([]types.Role, error)
}

// UserServiceImpl caches anonymous profile views briefly; any write to a
// profile evicts its entry so owners always see their edits immediately.
type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	cache  *cache.Cache
}

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(30*time.Second, 2*time.Minute),
	}
}

func profileCacheKey(userID uuid.UUID) string {
	return "profile:" + userID.String()
}

func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID, viewerID *uuid.UUID) (*ProfileResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GetProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	isOwner := viewerID != nil && *viewerID == userID

	// Only the anonymous rendering is cacheable: owner views carry private
	// contact fields.
	if !isOwner && viewerID == nil {
		if cached, found := s.cache.Get(profileCacheKey(userID)); found {
			if resp, ok := cached.(*ProfileResponse); ok {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return resp, nil
			}
		}
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := buildProfileResponse(u, isOwner)
	if !isOwner && viewerID == nil {
		s.cache.Set(profileCacheKey(userID), resp, cache.DefaultExpiration)
	}
	return resp, nil
}

// buildProfileResponse applies the owner's privacy settings. Contact fields
// default to visible when no settings row exists.
func buildProfileResponse(u *types.User, isOwner bool) *ProfileResponse {
	resp := &ProfileResponse{
		ID:           u.ID,
		Name:         u.Name,
		ProfilePhoto: u.ProfilePhoto,
		Bio:          u.Bio,
		Roles:        u.Roles,
		Verified:     u.Verified,
		CreatedAt:    u.CreatedAt,
	}

	hideEmail := u.Privacy != nil && u.Privacy.HideEmail
	hidePhone := u.Privacy != nil && u.Privacy.HidePhone

	if isOwner || !hideEmail {
		email := u.Email
		resp.Email = &email
	}
	if isOwner || !hidePhone {
		resp.Phone = u.Phone
	}
	return resp
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (*ProfileResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	if params.Phone != nil {
		taken, err := s.repo.PhoneInUse(ctx, *params.Phone, userID)
		if err != nil {
			l.ErrorContext(ctx, "Failed to check phone uniqueness", slog.Any("error", err))
			return nil, fmt.Errorf("failed to check phone uniqueness: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("phone number already registered: %w", api.ErrConflict)
		}
	}

	if err := s.repo.UpdateProfile(ctx, userID, params); err != nil {
		return nil, err
	}
	s.cache.Delete(profileCacheKey(userID))

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "Profile updated")
	return buildProfileResponse(u, true), nil
}

func (s *UserServiceImpl) AddRole(ctx context.Context, userID uuid.UUID, role types.Role) ([]types.Role, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "AddRole", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("role", string(role)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "AddRole"), slog.String("userID", userID.String()))

	if !types.ValidRole(role) {
		return nil, api.ValidationError("role", fmt.Sprintf("must be one of seeker, owner, agent, admin, got %q", role))
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.HasRole(role) {
		return u.Roles, nil
	}

	roles := append(u.RoleStrings(), string(role))
	if err := s.repo.UpdateRoles(ctx, userID, roles); err != nil {
		return nil, err
	}
	s.cache.Delete(profileCacheKey(userID))

	l.InfoContext(ctx, "Role granted", slog.String("role", string(role)))
	return types.RolesFromStrings(roles), nil
}

func (s *UserServiceImpl) RemoveRole(ctx context.Context, userID uuid.UUID, role types.Role) ([]types.Role, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "RemoveRole", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("role", string(role)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "RemoveRole"), slog.String("userID", userID.String()))

	if !types.ValidRole(role) {
		return nil, api.ValidationError("role", fmt.Sprintf("must be one of seeker, owner, agent, admin, got %q", role))
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasRole(role) {
		return nil, api.ValidationError("role", fmt.Sprintf("user does not have role %q", role))
	}
	if len(u.Roles) == 1 {
		return nil, api.ValidationError("role", "cannot remove the only remaining role")
	}

	roles := make([]string, 0, len(u.Roles)-1)
	for _, r := range u.Roles {
		if r != role {
			roles = append(roles, string(r))
		}
	}
	if err := s.repo.UpdateRoles(ctx, userID, roles); err != nil {
		return nil, err
	}
	s.cache.Delete(profileCacheKey(userID))

	l.InfoContext(ctx, "Role revoked", slog.String("role", string(role)))
	return types.RolesFromStrings(roles), nil
}
