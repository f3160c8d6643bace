package apikeys

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNew(t *testing.T) {
	owner := uuid.New()
	raw, key, err := New(owner, "ci", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, Marker))
	assert.Len(t, raw, len(Marker)+2*secretBytes)
	assert.Equal(t, raw[:PrefixLen], key.KeyPrefix)
	assert.Equal(t, owner, key.OwnerID)
	assert.Equal(t, DefaultScopes(), key.Scopes)
	assert.NotContains(t, key.KeyHash, raw)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)))

	other, _, err := New(owner, "ci", []string{ScopeAdmin})
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestValidScopes(t *testing.T) {
	assert.True(t, ValidScopes([]string{ScopeRead, ScopeAdmin}))
	assert.True(t, ValidScopes(nil))
	assert.False(t, ValidScopes([]string{ScopeRead, "root"}))
}
