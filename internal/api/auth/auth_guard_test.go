package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gharnest/gharnest/internal/types"
)

func testPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}
}

func TestLockoutPolicy_IsLocked(t *testing.T) {
	p := testPolicy()
	now := time.Now()

	t.Run("NoLockSet", func(t *testing.T) {
		u := &types.User{}
		assert.False(t, p.IsLocked(u, now))
	})

	t.Run("ActiveLock", func(t *testing.T) {
		until := now.Add(10 * time.Minute)
		u := &types.User{LockedUntil: &until}
		assert.True(t, p.IsLocked(u, now))
	})

	t.Run("ExpiredLock", func(t *testing.T) {
		until := now.Add(-time.Second)
		u := &types.User{LockedUntil: &until, FailedLoginAttempts: 5}
		assert.False(t, p.IsLocked(u, now))
	})
}

func TestLockoutPolicy_RecordFailure(t *testing.T) {
	p := testPolicy()
	now := time.Now()

	t.Run("BelowThresholdNoLock", func(t *testing.T) {
		u := &types.User{FailedLoginAttempts: 3}
		locked := p.RecordFailure(u, now)
		assert.False(t, locked)
		assert.Equal(t, 4, u.FailedLoginAttempts)
		assert.Nil(t, u.LockedUntil)
	})

	t.Run("ThresholdStartsLock", func(t *testing.T) {
		u := &types.User{FailedLoginAttempts: 4}
		locked := p.RecordFailure(u, now)
		assert.True(t, locked)
		assert.Equal(t, 5, u.FailedLoginAttempts)
		assert.WithinDuration(t, now.Add(p.Duration), *u.LockedUntil, time.Second)
	})

	t.Run("FailureAfterExpiredLockRelocksImmediately", func(t *testing.T) {
		expired := now.Add(-time.Minute)
		u := &types.User{FailedLoginAttempts: 5, LockedUntil: &expired}
		locked := p.RecordFailure(u, now)
		// The counter never reset, so one more failure restarts the window.
		assert.True(t, locked)
		assert.Equal(t, 6, u.FailedLoginAttempts)
		assert.True(t, u.LockedUntil.After(now))
	})
}

func TestLockoutPolicy_RecordSuccess(t *testing.T) {
	p := testPolicy()
	now := time.Now()
	until := now.Add(-time.Minute)
	u := &types.User{FailedLoginAttempts: 5, LockedUntil: &until}

	p.RecordSuccess(u, now)

	assert.Equal(t, 0, u.FailedLoginAttempts)
	assert.Nil(t, u.LockedUntil)
	assert.Equal(t, now, *u.LastLoginAt)
}
