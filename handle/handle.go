// Package handle defines the storage abstraction the coordinator composes.
//
// Implementations own their storage; the coordinator never reaches into a
// handle's internals except through this interface. A handle is free to be
// in-memory (map, Ristretto, BigCache) or distributed (Redis); it applies
// its own default expiration to items whose UsesExpirationDefaults is true,
// and it is responsible for its own optimistic-concurrency retry loop
// inside Update (see the Handle.Update doc).
package handle

import (
	"context"
	"time"

	"github.com/coordcache/coordcache/item"
)

// Configuration describes a handle's identity and defaults, independent of
// its concrete storage technology.
type Configuration struct {
	Name              string
	DefaultMode       item.ExpirationMode
	DefaultTimeout    time.Duration
	IsBackplaneSource bool
	IsDistributed     bool
}

// Hooks are the handle-internal diagnostic callbacks a byte-oriented handle
// reports through: a stored entry dropped on read for being corrupt or
// undecodable, a provider rejecting a Set under pressure, and its version
// store failing a snapshot or bump. Defined here rather than taking a
// dependency on the coordinator package; coordcache.Hooks satisfies this
// interface structurally, so the same value threaded into Options.Hooks can
// be threaded into a handle's Config unchanged.
type Hooks interface {
	SelfHealSingle(storageKey, reason string)
	ProviderSetRejected(storageKey string)
	GenSnapshotError(count int, err error)
	GenBumpError(storageKey string, err error)
}

// RemoveReason classifies why a handle dropped an entry on its own
// initiative (not at the coordinator's request), surfaced via
// OnCacheSpecificRemove so the coordinator can reconcile layers above it.
type RemoveReason int

const (
	RemoveReasonExpired RemoveReason = iota
	RemoveReasonCapacity
	RemoveReasonEvicted
)

func (r RemoveReason) String() string {
	switch r {
	case RemoveReasonExpired:
		return "expired"
	case RemoveReasonCapacity:
		return "capacity"
	case RemoveReasonEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// CacheSpecificRemoveEvent carries the detail of a handle-initiated removal.
type CacheSpecificRemoveEvent[V any] struct {
	Key    string
	Region string
	Reason RemoveReason
	Value  V
	HasVal bool
}

// Stats exposes per-handle counters. Implementations must be safe for
// concurrent use; counters are uint64 and wrap on overflow, which is
// effectively unreachable for realistic workloads.
type Stats interface {
	Hits() uint64
	Misses() uint64
	Gets() uint64
	Adds() uint64
	Puts() uint64
	Removes() uint64
	Clears() uint64
	ClearRegions() uint64
	UpdateCalls() uint64
	Items() int64
}

// UpdateResultKind tags the closed set of outcomes a handle's Update may
// produce. Go has no sum types; this is the enum half of the
// enum+payload-struct encoding spec'd for UpdateItemResult.
type UpdateResultKind int

const (
	UpdateSuccess UpdateResultKind = iota
	UpdateItemDidNotExist
	UpdateTooManyRetries
	UpdateFactoryReturnedNull
)

// UpdateResult is the payload half of the UpdateItemResult sum type.
// Only the fields relevant to Kind are meaningful:
//   - UpdateSuccess: NewItem, VersionConflictOccurred, TriesNeeded.
//   - UpdateTooManyRetries: TriesNeeded.
//   - UpdateItemDidNotExist, UpdateFactoryReturnedNull: no extra payload.
type UpdateResult[V any] struct {
	Kind                    UpdateResultKind
	NewItem                 item.CacheItem[V]
	VersionConflictOccurred bool
	TriesNeeded             int
}

// ValueFactory computes the next value given the current one. Returning
// ok=false signals "decline to update" (the spec's FactoryReturnedNull;
// Go generics have no universal nil, so the factory reports it explicitly).
type ValueFactory[V any] func(current V) (updated V, ok bool)

// Handle is a single cache backend composed into the coordinator.
type Handle[V any] interface {
	Configuration() Configuration
	Stats() Stats

	GetItem(ctx context.Context, key, region string) (item.CacheItem[V], bool, error)
	Exists(ctx context.Context, key, region string) (bool, error)
	Count(ctx context.Context) (int64, error)

	// Add stores the item iff absent. Returns false (no error) if the key
	// already exists.
	Add(ctx context.Context, it item.CacheItem[V]) (bool, error)
	// Put unconditionally upserts the item.
	Put(ctx context.Context, it item.CacheItem[V]) error
	// Remove deletes the key. Returns whether a value was actually removed.
	Remove(ctx context.Context, key, region string) (bool, error)
	Clear(ctx context.Context) error
	ClearRegion(ctx context.Context, region string) error

	// Update performs an optimistic read-modify-write per the
	// handle-internal update contract: missing key -> UpdateItemDidNotExist;
	// factory declines -> UpdateFactoryReturnedNull; version conflicts are
	// retried up to maxRetries times before UpdateTooManyRetries.
	Update(ctx context.Context, key, region string, f ValueFactory[V], maxRetries int) (UpdateResult[V], error)

	// OnCacheSpecificRemove registers fn to be called whenever this handle
	// evicts an entry on its own initiative (capacity pressure, internal
	// TTL sweep). fn must be cheap and non-blocking.
	OnCacheSpecificRemove(fn func(CacheSpecificRemoveEvent[V]))

	Close(ctx context.Context) error
}
