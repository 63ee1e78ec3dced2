// Package util holds the small concurrency helpers the bridge leans on.
package util

import (
	"context"
	"sync"

	"go.mau.fi/util/exsync"
	"golang.org/x/time/rate"
)

// KeyedMutex hands out one mutex per key, created on demand. Entries are
// never removed; key cardinality is bounded by active chats.
type KeyedMutex[K comparable] struct {
	locks *exsync.Map[K, *sync.Mutex]
}

func NewKeyedMutex[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{locks: exsync.NewMap[K, *sync.Mutex]()}
}

// Lock acquires the mutex for the key and returns its unlock function.
func (km *KeyedMutex[K]) Lock(key K) func() {
	lock, _ := km.locks.GetOrSet(key, &sync.Mutex{})
	lock.Lock()
	return lock.Unlock
}

// KeyedLimiter maintains one token bucket per key.
type KeyedLimiter[K comparable] struct {
	limiters *exsync.Map[K, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func NewKeyedLimiter[K comparable](limit rate.Limit, burst int) *KeyedLimiter[K] {
	return &KeyedLimiter[K]{
		limiters: exsync.NewMap[K, *rate.Limiter](),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until the bucket for the key has a token available.
func (kl *KeyedLimiter[K]) Wait(ctx context.Context, key K) error {
	limiter, _ := kl.limiters.GetOrSet(key, rate.NewLimiter(kl.limit, kl.burst))
	return limiter.Wait(ctx)
}
