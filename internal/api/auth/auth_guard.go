package auth

import (
	"time"

	"github.com/gharnest/gharnest/config"
	"github.com/gharnest/gharnest/internal/types"
)

// LockoutPolicy is the brute-force guard. All methods are pure decisions
// over a user snapshot plus the current time; persisting the mutated
// counters is the caller's job.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// NewLockoutPolicy builds the policy from the fixed auth config.
func NewLockoutPolicy(cfg config.AuthConfig) LockoutPolicy {
	return LockoutPolicy{
		Threshold: cfg.MaxLoginAttempts,
		Duration:  cfg.LockoutDuration,
	}
}

// IsLocked reports whether a lock window is active. A future locked_until
// blocks authentication regardless of the counter value or password
// correctness.
func (p LockoutPolicy) IsLocked(u *types.User, now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RecordFailure increments the failed-attempt counter and, when the counter
// reaches the threshold, starts a lock window. It returns true when this
// failure caused the lock transition. The lock is sticky until it expires
// naturally or a success clears it.
func (p LockoutPolicy) RecordFailure(u *types.User, now time.Time) bool {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		u.LockedUntil = &until
		return true
	}
	return false
}

// RecordSuccess clears the counter and lock and stamps the last login.
func (p LockoutPolicy) RecordSuccess(u *types.User, now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
}
