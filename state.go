package minerwatch

import (
	"github.com/redis/go-redis/v9"

	"github.com/jpalmerr/minerwatch/internal/store"
)

// NewMemoryStateStore returns an in-process [StateStore]. Fingerprints are
// lost on restart, so the first tick afterwards always emits.
func NewMemoryStateStore() StateStore {
	return store.NewMemoryStore()
}

// NewRedisStateStore returns a [StateStore] that keeps fingerprints in Redis
// under prefix (default "minerwatch:").
//
// Example:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	state := minerwatch.NewRedisStateStore(rdb, "")
func NewRedisStateStore(client redis.UniversalClient, prefix string) StateStore {
	return store.NewRedisStore(client, prefix)
}
