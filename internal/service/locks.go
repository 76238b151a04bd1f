package service

import "sync"

// ShardLocks serializes mutations per shard. A shard's matrix, centroid
// row, positional index and catalog rows are only consistent as a set, so
// every multi-step update runs under the shard's write lock and searches
// take the read lock.
type ShardLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewShardLocks creates an empty lock table.
func NewShardLocks() *ShardLocks {
	return &ShardLocks{locks: make(map[string]*sync.RWMutex)}
}

// Get returns the lock for a shard, creating it on first use.
func (l *ShardLocks) Get(shard string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[shard]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[shard] = lock
	}
	return lock
}
