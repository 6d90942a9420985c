// Package ristretto adapts dgraph-io/ristretto into a handle.Handle[V], for
// a fast in-process top tier with cost-aware admission. It holds no state
// of its own beyond what bytehandle.Handle needs: a Provider, a Codec, and
// an in-process GenStore for per-key versions.
package ristretto

import (
	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/genstore"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/bytehandle"
	rprovider "github.com/coordcache/coordcache/provider/ristretto"
)

// Config configures both the Ristretto provider and the handle wrapped
// around it.
type Config[V any] struct {
	Namespace string
	Codec     codec.Codec[V]

	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool

	// Hooks reports self-heal and version-store diagnostics; nil disables
	// reporting.
	Hooks handle.Hooks

	Handle handle.Configuration
}

// New constructs a Ristretto-backed handle.
func New[V any](cfg Config[V]) (*bytehandle.Handle[V], error) {
	p, err := rprovider.New(rprovider.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return bytehandle.New[V](bytehandle.Config[V]{
		Namespace: cfg.Namespace,
		Provider:  p,
		Codec:     cfg.Codec,
		Versions:  genstore.NewLocalGenStore(0, 0),
		Hooks:     cfg.Hooks,
		Handle:    cfg.Handle,
	}), nil
}
