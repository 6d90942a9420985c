// Package redis adapts redis/go-redis/v9 into a distributed handle.Handle[V]
// suitable as a coordinator's bottom tier. Unlike the in-process handles,
// its versions live in Redis too (via genstore.RedisGenStore), so the
// optimistic-concurrency contract in Update holds across every process
// sharing the same Redis instance, not just within one.
package redis

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/genstore"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/bytehandle"
	rprovider "github.com/coordcache/coordcache/provider/redis"

	"time"
)

// Config configures the Redis provider, its distributed version store, and
// the handle wrapped around both.
type Config[V any] struct {
	Namespace string
	Codec     codec.Codec[V]

	Client      goredis.UniversalClient
	CloseClient bool
	VersionTTL  time.Duration // 0 disables expiry on version keys

	// Hooks reports self-heal and version-store diagnostics; nil disables
	// reporting.
	Hooks handle.Hooks

	Handle handle.Configuration
}

// New constructs a Redis-backed handle.
func New[V any](cfg Config[V]) (*bytehandle.Handle[V], error) {
	p, err := rprovider.New(rprovider.Config{
		Client:      cfg.Client,
		CloseClient: cfg.CloseClient,
	})
	if err != nil {
		return nil, err
	}

	versions := genstore.NewRedisGenStoreWithTTL(cfg.Client, cfg.Namespace, cfg.VersionTTL)

	return bytehandle.New[V](bytehandle.Config[V]{
		Namespace: cfg.Namespace,
		Provider:  p,
		Codec:     cfg.Codec,
		Versions:  versions,
		Hooks:     cfg.Hooks,
		Handle:    cfg.Handle,
	}), nil
}
