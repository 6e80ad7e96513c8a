package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/gharnest/gharnest/internal/types"
)

// UpdateProfileParams is the typed patch applied to a profile: one optional
// field per mutable attribute, merged field-by-field. Nil means "leave
// unchanged".
type UpdateProfileParams struct {
	Name         *string                `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Phone        *string                `json:"phone,omitempty" validate:"omitempty,phone"`
	ProfilePhoto *string                `json:"profile_photo,omitempty"`
	Bio          *string                `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Privacy      *types.PrivacySettings `json:"privacy_settings,omitempty"`
}

// ProfileResponse is the public view of an account. Email and phone are
// omitted when the owner's privacy settings hide them from other viewers.
type ProfileResponse struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	ProfilePhoto *string      `json:"profile_photo,omitempty"`
	Bio          *string      `json:"bio,omitempty"`
	Roles        []types.Role `json:"roles"`
	Verified     bool         `json:"verified"`
	Email        *string      `json:"email,omitempty"`
	Phone        *string      `json:"phone,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// RoleRequest is the body for POST /users/{userID}/roles.
type RoleRequest struct {
	Role types.Role `json:"role" validate:"required"`
}

// RolesResponse reports the resulting role set after a role mutation.
type RolesResponse struct {
	Message string       `json:"message"`
	Roles   []types.Role `json:"roles"`
}
