package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is one of the fixed marketplace role labels.
type Role string

const (
	RoleSeeker Role = "seeker"
	RoleOwner  Role = "owner"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether r is a member of the fixed role enumeration.
func ValidRole(r Role) bool {
	switch r {
	case RoleSeeker, RoleOwner, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the account lifecycle state. Only active accounts may
// authenticate.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusBanned    UserStatus = "banned"
)

// PrivacySettings controls which contact fields a profile exposes to other
// users. The owner always sees their own contact details.
type PrivacySettings struct {
	HideEmail        bool `json:"hide_email"`
	HidePhone        bool `json:"hide_phone"`
	ShowOnlineStatus bool `json:"show_online_status"`
}

// User is the marketplace account record. PasswordHash is produced only by
// the credential codec and is never serialized or logged.
type User struct {
	ID                  uuid.UUID        `json:"id"`
	Email               string           `json:"email"`
	Phone               *string          `json:"phone,omitempty"`
	Name                string           `json:"name"`
	PasswordHash        string           `json:"-"`
	ProfilePhoto        *string          `json:"profile_photo,omitempty"`
	Bio                 *string          `json:"bio,omitempty"`
	Roles               []Role           `json:"roles"`
	Verified            bool             `json:"verified"`
	Status              UserStatus       `json:"status"`
	Privacy             *PrivacySettings `json:"privacy_settings,omitempty"`
	FailedLoginAttempts int              `json:"-"`
	LockedUntil         *time.Time       `json:"-"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	LastLoginAt         *time.Time       `json:"last_login_at,omitempty"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleStrings returns the role set as plain strings for token claims and
// SQL parameters.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}

// RolesFromStrings converts raw role labels as stored in Postgres back into
// typed roles. Unknown labels are kept as-is so a bad row is visible rather
// than silently dropped.
func RolesFromStrings(raw []string) []Role {
	out := make([]Role, len(raw))
	for i, r := range raw {
		out[i] = Role(r)
	}
	return out
}
