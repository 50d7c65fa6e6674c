package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/config"
)

func testHasher() *PasswordHasher {
	cfg := &config.Config{}
	cfg.Hashing.Argon2MemoryCost = 8 * 1024
	cfg.Hashing.Argon2TimeCost = 1
	cfg.Hashing.Argon2Parallelism = 1
	return NewPasswordHasher(cfg)
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("Secret1!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	t.Run("correct password verifies", func(t *testing.T) {
		ok, err := h.Verify("Secret1!", encoded)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password fails", func(t *testing.T) {
		ok, err := h.Verify("NotTheSecret", encoded)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("two hashes of the same password differ", func(t *testing.T) {
		second, err := h.Hash("Secret1!")
		require.NoError(t, err)
		assert.NotEqual(t, encoded, second)
	})
}

func TestPasswordHasher_VerifyHonorsStoredParams(t *testing.T) {
	h := testHasher()
	encoded, err := h.Hash("Secret1!")
	require.NoError(t, err)

	// A hasher with different costs must still verify the stored hash.
	cfg := &config.Config{}
	cfg.Hashing.Argon2MemoryCost = 16 * 1024
	cfg.Hashing.Argon2TimeCost = 2
	cfg.Hashing.Argon2Parallelism = 2
	other := NewPasswordHasher(cfg)

	ok, err := other.Verify("Secret1!", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_InvalidEncodings(t *testing.T) {
	h := testHasher()

	cases := map[string]string{
		"empty":         "",
		"not a hash":    "plaintext",
		"wrong variant": "$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"truncated":     "$argon2id$v=19$m=8192,t=1,p=1",
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.Verify("anything", encoded)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestDeriveCredential(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := DeriveCredential("secret", "a@x.com")
		b := DeriveCredential("secret", "a@x.com")
		assert.Equal(t, a, b)
	})

	t.Run("email is normalized", func(t *testing.T) {
		a := DeriveCredential("secret", "A@X.com ")
		b := DeriveCredential("secret", "a@x.com")
		assert.Equal(t, a, b)
	})

	t.Run("varies by email and secret", func(t *testing.T) {
		base := DeriveCredential("secret", "a@x.com")
		assert.NotEqual(t, base, DeriveCredential("secret", "b@x.com"))
		assert.NotEqual(t, base, DeriveCredential("other", "a@x.com"))
	})

	t.Run("meets character class policy", func(t *testing.T) {
		cred := DeriveCredential("secret", "a@x.com")
		assert.Len(t, cred, 28)
		assert.True(t, strings.HasSuffix(cred, "Aa1!"))
	})
}
