// Package encryption seals sensitive account fields with KMS envelope
// encryption. Each field gets its own data key; the KMS master key never
// leaves AWS. When KMS is disabled the manager falls back to locally
// generated keys, which is only acceptable for development.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"identity-service/internal/config"
	"identity-service/internal/util"
)

var (
	ErrSealFailed = errors.New("field seal failed")
	ErrOpenFailed = errors.New("field open failed")
)

// Envelope is the stored form of one encrypted field: the AES-GCM
// ciphertext plus the wrapped data key needed to open it later.
type Envelope struct {
	Ciphertext string    `json:"ciphertext"`
	WrappedDEK string    `json:"wrapped_dek"`
	KeyID      string    `json:"key_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

type Manager struct {
	kmsClient *kms.Client
	config    *config.Config
	dekCache  sync.Map
}

type dataKey struct {
	plaintext []byte
	wrapped   []byte
	keyID     string
}

func NewManager(cfg *config.Config, kmsClient *kms.Client) *Manager {
	return &Manager{
		kmsClient: kmsClient,
		config:    cfg,
	}
}

// SealField encrypts a plaintext field under a fresh data key.
func (m *Manager) SealField(ctx context.Context, plaintext string) (*Envelope, error) {
	dk, err := m.generateDataKey(ctx)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(dk.plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	wrapped := base64.StdEncoding.EncodeToString(dk.wrapped)
	m.dekCache.Store(wrapped, dk.plaintext)

	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		WrappedDEK: wrapped,
		KeyID:      dk.keyID,
		Version:    "v1",
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// OpenField decrypts a stored envelope, unwrapping its data key through KMS
// unless a cached copy is available.
func (m *Manager) OpenField(ctx context.Context, env *Envelope) (string, error) {
	if cached, ok := m.dekCache.Load(env.WrappedDEK); ok {
		return m.openWithKey(env.Ciphertext, cached.([]byte))
	}

	var plaintextDEK []byte
	if m.config.KMS.Enabled {
		blob, err := base64.StdEncoding.DecodeString(env.WrappedDEK)
		if err != nil {
			return "", fmt.Errorf("%w: invalid DEK encoding", ErrOpenFailed)
		}

		result, err := m.kmsClient.Decrypt(ctx, &kms.DecryptInput{
			CiphertextBlob: blob,
		})
		if err != nil {
			return "", fmt.Errorf("%w: failed to unwrap DEK: %v", ErrOpenFailed, err)
		}
		plaintextDEK = result.Plaintext
	} else {
		var err error
		plaintextDEK, err = base64.StdEncoding.DecodeString(env.WrappedDEK)
		if err != nil {
			return "", fmt.Errorf("%w: invalid local DEK", ErrOpenFailed)
		}
	}

	m.dekCache.Store(env.WrappedDEK, plaintextDEK)

	return m.openWithKey(env.Ciphertext, plaintextDEK)
}

// SealPhone serializes the envelope for storage in a single blob column,
// returning the blob and the key ID used.
func (m *Manager) SealPhone(ctx context.Context, phone string) ([]byte, string, error) {
	env, err := m.SealField(ctx, phone)
	if err != nil {
		return nil, "", err
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	return blob, env.KeyID, nil
}

// OpenPhone reverses SealPhone.
func (m *Manager) OpenPhone(ctx context.Context, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return "", fmt.Errorf("%w: invalid envelope", ErrOpenFailed)
	}
	return m.OpenField(ctx, &env)
}

func (m *Manager) generateDataKey(ctx context.Context) (*dataKey, error) {
	if !m.config.KMS.Enabled {
		return m.generateLocalKey(), nil
	}

	result, err := m.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(m.config.KMS.KeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	return &dataKey{
		plaintext: result.Plaintext,
		wrapped:   result.CiphertextBlob,
		keyID:     m.config.KMS.KeyID,
	}, nil
}

func (m *Manager) generateLocalKey() *dataKey {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		util.Fatal("Failed to generate local encryption key", zap.Error(err))
	}

	// Development only: the "wrapped" key is just base64 of the plaintext.
	return &dataKey{
		plaintext: key,
		wrapped:   []byte(base64.StdEncoding.EncodeToString(key)),
		keyID:     uuid.New().String(),
	}
}

func (m *Manager) openWithKey(ciphertext string, key []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", ErrOpenFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrOpenFailed)
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	return string(plaintext), nil
}

// ClearCache drops all cached data keys.
func (m *Manager) ClearCache() {
	m.dekCache.Range(func(key, _ interface{}) bool {
		m.dekCache.Delete(key)
		return true
	})
}
