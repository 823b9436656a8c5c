package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

const defaultIdentityBuckets = 64

// Manager computes consistent partition buckets for identity rows. Bucketing
// by phone keeps the identities table evenly spread while the lookup table
// resolves phone -> (bucket, id) in one read.
type Manager struct {
	identityBuckets int
	hasherPool      sync.Pool
}

func NewManager(buckets int) *Manager {
	if buckets <= 0 {
		buckets = defaultIdentityBuckets
	}
	return &Manager{
		identityBuckets: buckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// IdentityBucket returns the consistent bucket for a phone number,
// in [0, buckets).
func (m *Manager) IdentityBucket(phone string) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(phone))

	return int(hasher.Sum64() % uint64(m.identityBuckets))
}

func (m *Manager) Buckets() int {
	return m.identityBuckets
}
