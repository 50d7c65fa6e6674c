package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"identity-service/internal/config"
)

// Manager maps email hashes onto a fixed set of partition buckets so account
// rows spread evenly across the cluster while lookups stay deterministic.
type Manager struct {
	accountBuckets int
	eventBuckets   int
	hasherPool     sync.Pool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		accountBuckets: cfg.Bucketing.AccountBuckets,
		eventBuckets:   cfg.Bucketing.EventBuckets,
	}

	// Pool of murmur3 hashers to avoid allocation on every lookup
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return m
}

// AccountBucket returns the partition bucket for an account, keyed by its
// email hash (0 to accountBuckets-1).
func (m *Manager) AccountBucket(emailHash string) int {
	return m.bucket(emailHash, m.accountBuckets)
}

// EventBucket returns the bucket used for audit event partitioning.
func (m *Manager) EventBucket(identifier string) int {
	return m.bucket(identifier, m.eventBuckets)
}

// TimeBucket truncates the current time to a window boundary, used for
// rate-limit key scoping.
func (m *Manager) TimeBucket(windowSeconds int) int64 {
	return time.Now().Unix() / int64(windowSeconds) * int64(windowSeconds)
}

// DateBucket returns the UTC date partition for audit sinks.
func (m *Manager) DateBucket(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

func (m *Manager) AccountBuckets() int {
	return m.accountBuckets
}

func (m *Manager) EventBuckets() int {
	return m.eventBuckets
}

func (m *Manager) bucket(key string, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}
	return int(m.sum(key) % uint64(numBuckets))
}

func (m *Manager) sum(key string) uint64 {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
