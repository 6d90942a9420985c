package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where a byte-oriented handle's per-key versions live.
// Use LocalGenStore for in-process handles (Ristretto, BigCache), or
// RedisGenStore when the handle itself is distributed and versions must
// survive restarts and be shared across replicas.
type GenStore interface {
	// Snapshot returns the current version; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// SnapshotMany returns versions for many keys; missing => 0.
	SnapshotMany(ctx context.Context, storageKeys []string) (map[string]uint64, error)
	// Bump unconditionally increments and returns the new version. Used on
	// fresh writes (Add/Put), where any prior version is being superseded
	// outright.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// CompareAndBump increments the version only if the current version
	// equals expected, returning the new version and ok=true on success.
	// On mismatch it returns the current version and ok=false without
	// mutating anything, so the caller can re-read and retry. This is the
	// handle-internal CAS primitive behind Update (§4.9).
	CompareAndBump(ctx context.Context, storageKey string, expected uint64) (newVersion uint64, ok bool, err error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
