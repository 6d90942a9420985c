// Package bigcache adapts allegro/bigcache/v3 into a handle.Handle[V], for
// an in-process tier sized for many small entries outside the Go heap's
// GC scan. Like handle/ristretto, it is a thin bytehandle.Handle wrapper.
package bigcache

import (
	"time"

	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/genstore"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/bytehandle"
	bprovider "github.com/coordcache/coordcache/provider/bigcache"
)

// Config configures both the BigCache provider and the handle wrapped
// around it.
type Config[V any] struct {
	Namespace string
	Codec     codec.Codec[V]

	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int

	// Hooks reports self-heal and version-store diagnostics; nil disables
	// reporting.
	Hooks handle.Hooks

	Handle handle.Configuration
}

// New constructs a BigCache-backed handle.
func New[V any](cfg Config[V]) (*bytehandle.Handle[V], error) {
	p, err := bprovider.New(bprovider.Config{
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        cfg.CleanWindow,
		MaxEntriesInWindow: cfg.MaxEntriesInWindow,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSizeMB: cfg.HardMaxCacheSizeMB,
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
