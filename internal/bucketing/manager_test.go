package bucketing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"identity-service/internal/config"
)

func testManager() *Manager {
	cfg := &config.Config{}
	cfg.Bucketing.AccountBuckets = 256
	cfg.Bucketing.EventBuckets = 64
	return NewManager(cfg)
}

func TestManager_AccountBucket(t *testing.T) {
	m := testManager()

	t.Run("deterministic", func(t *testing.T) {
		first := m.AccountBucket("abc123")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, m.AccountBucket("abc123"))
		}
	})

	t.Run("within range", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			b := m.AccountBucket(fmt.Sprintf("hash-%d", i))
			assert.GreaterOrEqual(t, b, 0)
			assert.Less(t, b, 256)
		}
	})

	t.Run("spreads across buckets", func(t *testing.T) {
		seen := make(map[int]bool)
		for i := 0; i < 1000; i++ {
			seen[m.AccountBucket(fmt.Sprintf("hash-%d", i))] = true
		}
		assert.Greater(t, len(seen), 100)
	})
}

func TestManager_DateBucket(t *testing.T) {
	m := testManager()
	at := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-14", m.DateBucket(at))
}
