package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultSweepInterval bounds how often MemoryStore walks all buckets.
const DefaultSweepInterval = time.Minute

type memoryBucket struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps window counters in process. An expired bucket restarts
// on its next write; the full map is swept at most once per SweepInterval.
type MemoryStore struct {
	SweepInterval time.Duration

	mu        sync.Mutex
	now       func() time.Time
	nextSweep time.Time
	items     map[string]memoryBucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		SweepInterval: DefaultSweepInterval,
		now:           func() time.Time { return time.Now().UTC() },
		items:         map[string]memoryBucket{},
	}
}

func (s *MemoryStore) Increment(_ context.Context, bucket string, window time.Duration) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("ratelimit: memory store is nil")
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)

	item, ok := s.items[bucket]
	if !ok || !item.expiresAt.After(now) {
		item = memoryBucket{expiresAt: now.Add(window)}
	}
	item.count++
	s.items[bucket] = item
	return item.count, nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for key, item := range s.items {
		if !item.expiresAt.After(now) {
			delete(s.items, key)
		}
	}
	interval := s.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s.nextSweep = now.Add(interval)
}

var _ Store = (*MemoryStore)(nil)
