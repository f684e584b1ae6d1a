package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "0x1111111111111111111111111111111111111111"

func TestGenerateAndValidateKey(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	rawKey, key, err := m.GenerateKey(ctx, testAccount, "test key")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rawKey, "ck_"))
	assert.Equal(t, strings.ToLower(testAccount), key.Account)
	assert.False(t, key.Revoked)

	validated, err := m.ValidateKey(ctx, rawKey)
	require.NoError(t, err)
	assert.Equal(t, key.ID, validated.ID)
	assert.Equal(t, key.Account, validated.Account)
}

func TestValidateKeyBearerPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	rawKey, _, err := m.GenerateKey(ctx, testAccount, "")
	require.NoError(t, err)

	validated, err := m.ValidateKey(ctx, "Bearer "+rawKey)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(testAccount), validated.Account)
}

func TestValidateKeyRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	_, err := m.ValidateKey(ctx, "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = m.ValidateKey(ctx, "not_a_key")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = m.ValidateKey(ctx, "ck_0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestRevokedKeyFailsValidation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	rawKey, key, err := m.GenerateKey(ctx, testAccount, "")
	require.NoError(t, err)

	require.NoError(t, m.RevokeKey(ctx, key.ID, testAccount))

	_, err = m.ValidateKey(ctx, rawKey)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestExpiredKeyFailsValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store)

	rawKey, key, err := m.GenerateKey(ctx, testAccount, "")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	key.ExpiresAt = &past
	require.NoError(t, store.Update(ctx, key))

	_, err = m.ValidateKey(ctx, rawKey)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestRevokeUnknownKey(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	err := m.RevokeKey(ctx, "ak_missing", testAccount)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestListKeys(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	_, _, err := m.GenerateKey(ctx, testAccount, "first")
	require.NoError(t, err)
	_, _, err = m.GenerateKey(ctx, testAccount, "second")
	require.NoError(t, err)
	_, _, err = m.GenerateKey(ctx, "0x2222222222222222222222222222222222222222", "other")
	require.NoError(t, err)

	keys, err := m.ListKeys(ctx, testAccount)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
