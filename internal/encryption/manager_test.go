package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/config"
)

func devManager() *Manager {
	cfg := &config.Config{}
	cfg.KMS.Enabled = false
	return NewManager(cfg, nil)
}

func TestManager_SealOpenField(t *testing.T) {
	m := devManager()
	ctx := context.Background()

	env, err := m.SealField(ctx, "+15551234567")
	require.NoError(t, err)
	assert.NotEmpty(t, env.Ciphertext)
	assert.NotEmpty(t, env.WrappedDEK)
	assert.Equal(t, "v1", env.Version)

	plain, err := m.OpenField(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", plain)

	t.Run("open survives cache clear", func(t *testing.T) {
		m.ClearCache()
		plain, err := m.OpenField(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, "+15551234567", plain)
	})

	t.Run("tampered ciphertext fails", func(t *testing.T) {
		bad := *env
		bad.Ciphertext = "AAAA" + bad.Ciphertext[4:]
		_, err := m.OpenField(ctx, &bad)
		assert.ErrorIs(t, err, ErrOpenFailed)
	})
}

func TestManager_SealOpenPhone(t *testing.T) {
	m := devManager()
	ctx := context.Background()

	blob, keyID, err := m.SealPhone(ctx, "+15551234567")
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
	assert.NotEmpty(t, keyID)

	plain, err := m.OpenPhone(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", plain)

	t.Run("empty blob opens to empty string", func(t *testing.T) {
		plain, err := m.OpenPhone(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, plain)
	})
}
