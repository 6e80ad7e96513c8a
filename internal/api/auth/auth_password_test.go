package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Password1!")
	assert.NoError(t, err)
	assert.NotEqual(t, "Password1!", hash)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	// Same input must not produce the same hash twice.
	hash2, err := HashPassword("Password1!")
	assert.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Password1!")
	assert.NoError(t, err)

	assert.True(t, VerifyPassword("Password1!", hash))
	assert.False(t, VerifyPassword("password1!", hash))
	assert.False(t, VerifyPassword("", hash))
	assert.False(t, VerifyPassword("Password1!", "not-a-hash"))
}
