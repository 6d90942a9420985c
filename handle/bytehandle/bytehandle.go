// Package bytehandle implements handle.Handle[V] once, generically, on top
// of a byte-oriented provider.Provider plus a codec.Codec[V] and a
// genstore.GenStore for per-key versions. Ristretto, BigCache, and Redis
// handles are all thin constructors around this type; only the Provider
// differs.
//
// Grounded directly on the teacher's cas.go: a generation (here, version)
// is snapshotted from the GenStore, stamped into the stored envelope via
// internal/wire, and re-validated against the GenStore on every read so a
// stale copy self-heals instead of being served. Clear and ClearRegion
// extend that same idiom to bulk operations the teacher never needed: each
// bumps a handle-wide or region-wide epoch in the GenStore, which every
// previously-written envelope is checked against on read, so a bulk clear
// takes effect with one O(1) epoch write. Each then also asks the provider
// to reclaim the stale entries (Clearable/PrefixClearable) when it can;
// that step may scan keys (the Redis provider's ClearPrefix does).
package bytehandle

import (
	"context"
	"time"

	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/genstore"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/internal/util"
	"github.com/coordcache/coordcache/internal/wire"
	"github.com/coordcache/coordcache/item"
	"github.com/coordcache/coordcache/provider"
)

// CostFunc computes a provider-specific admission cost for a wire-encoded
// value. Providers that ignore cost (BigCache, Redis) are free to ignore it.
type CostFunc func(storageKey string, wireBytes []byte) int64

func defaultCost(_ string, b []byte) int64 { return int64(len(b)) }

// Config wires a Handle to its storage, codec, and version store.
type Config[V any] struct {
	Namespace string
	Provider  provider.Provider
	Codec     codec.Codec[V]
	Versions  genstore.GenStore
	Cost      CostFunc

	// Hooks reports self-heal and version-store diagnostics; nil disables
	// reporting. Typically the same value passed to coordcache.Options.Hooks,
	// since coordcache.Hooks satisfies handle.Hooks structurally.
	Hooks handle.Hooks

	Handle handle.Configuration
}

// Handle is a generic byte-store-backed handle.Handle[V].
type Handle[V any] struct {
	*handle.Base[V]

	ns       string
	provider provider.Provider
	codec    codec.Codec[V]
	versions genstore.GenStore
	cost     CostFunc
	hooks    handle.Hooks
}

var _ handle.Handle[struct{}] = (*Handle[struct{}])(nil)

func New[V any](cfg Config[V]) *Handle[V] {
	cost := cfg.Cost
	if cost == nil {
		cost = defaultCost
	}
	return &Handle[V]{
		Base:     handle.NewBase[V](cfg.Handle),
		ns:       cfg.Namespace,
		provider: cfg.Provider,
		codec:    cfg.Codec,
		versions: cfg.Versions,
		cost:     cost,
		hooks:    cfg.Hooks,
	}
}

func (h *Handle[V]) selfHeal(sk, reason string) {
	if h.hooks != nil {
		h.hooks.SelfHealSingle(sk, reason)
	}
}

// bump wraps versions.Bump, reporting a failure through Hooks before
// returning it to the caller.
func (h *Handle[V]) bump(ctx context.Context, sk string) (uint64, error) {
	ver, err := h.versions.Bump(ctx, sk)
	if err != nil && h.hooks != nil {
		h.hooks.GenBumpError(sk, err)
	}
	return ver, err
}

// snapshot wraps versions.Snapshot, reporting a failure through Hooks
// before returning it to the caller.
func (h *Handle[V]) snapshot(ctx context.Context, sk string) (uint64, error) {
	ver, err := h.versions.Snapshot(ctx, sk)
	if err != nil && h.hooks != nil {
		h.hooks.GenSnapshotError(1, err)
	}
	return ver, err
}

func (h *Handle[V]) storageKey(key, region string) string {
	return util.StorageKey(h.ns, region, key)
}

func (h *Handle[V]) handleEpochKey() string              { return "epoch:" + h.ns }
func (h *Handle[V]) regionEpochKey(region string) string { return "epoch:" + h.ns + "$" + region }

// epochs snapshots the pair of epochs an envelope must match to be fresh.
func (h *Handle[V]) epochs(ctx context.Context, region string) (handleEpoch, regionEpoch uint64, err error) {
	handleEpoch, err = h.snapshot(ctx, h.handleEpochKey())
	if err != nil {
		return 0, 0, err
	}
	regionEpoch, err = h.snapshot(ctx, h.regionEpochKey(region))
	if err != nil {
		return 0, 0, err
	}
	return handleEpoch, regionEpoch, nil
}

// decode turns a stored envelope into a CacheItem, validating its version
// and epochs and self-healing (deleting) anything stale or corrupt. ok=false
// with a nil error means "treat as a miss".
func (h *Handle[V]) decode(ctx context.Context, sk, key, region string) (item.CacheItem[V], bool, error) {
	raw, ok, err := h.provider.Get(ctx, sk)
	if err != nil {
		return item.CacheItem[V]{}, false, err
	}
	if !ok {
		return item.CacheItem[V]{}, false, nil
	}

	env, err := wire.Decode(raw)
	if err != nil {
		_ = h.provider.Del(ctx, sk)
		h.selfHeal(sk, "corrupt")
		return item.CacheItem[V]{}, false, nil
	}

	curVer, err := h.snapshot(ctx, sk)
	if err != nil {
		return item.CacheItem[V]{}, false, err
	}
	curHandleEpoch, curRegionEpoch, err := h.epochs(ctx, region)
	if err != nil {
		return item.CacheItem[V]{}, false, err
	}
	if env.Version != curVer || env.HandleEpoch != curHandleEpoch || env.RegionEpoch != curRegionEpoch {
		_ = h.provider.Del(ctx, sk)
		return item.CacheItem[V]{}, false, nil
	}

	val, err := h.codec.Decode(env.Payload)
	if err != nil {
		_ = h.provider.Del(ctx, sk)
		h.selfHeal(sk, "value_decode")
		return item.CacheItem[V]{}, false, nil
	}

	it := item.CacheItem[V]{
		Key:               key,
		Region:            region,
		Value:             val,
		ExpirationMode:    item.ExpirationMode(env.Mode),
		ExpirationTimeout: env.Timeout,
		CreatedUTC:        env.CreatedUTC,
		LastAccessedUTC:   env.LastAccessedUTC,
	}

	if it.IsExpired(time.Now()) {
		_ = h.provider.Del(ctx, sk)
		h.EmitCacheSpecificRemove(handle.CacheSpecificRemoveEvent[V]{
			Key: key, Region: region, Reason: handle.RemoveReasonExpired, Value: it.Value, HasVal: true,
		})
		return item.CacheItem[V]{}, false, nil
	}

	return it, true, nil
}

// store encodes it with the given version and current epochs and writes it
// through the provider.
func (h *Handle[V]) store(ctx context.Context, sk string, it item.CacheItem[V], version uint64) (bool, error) {
	handleEpoch, regionEpoch, err := h.epochs(ctx, it.Region)
	if err != nil {
		return false, err
	}
	payload, err := h.codec.Encode(it.Value)
	if err != nil {
		return false, err
	}
	env := wire.Envelope{
		Mode:            byte(it.ExpirationMode),
		Timeout:         it.ExpirationTimeout,
		CreatedUTC:      it.CreatedUTC,
		LastAccessedUTC: it.LastAccessedUTC,
		Version:         version,
		HandleEpoch:     handleEpoch,
		RegionEpoch:     regionEpoch,
		Payload:         payload,
	}
	raw := wire.Encode(env)
	ok, err := h.provider.Set(ctx, sk, raw, h.cost(sk, raw), ttlFor(it))
	if err == nil && !ok && h.hooks != nil {
		h.hooks.ProviderSetRejected(sk)
	}
	return ok, err
}

// ttlFor converts an item's expiration into a provider TTL. Sliding windows
// get the full window on every write, since the write itself is the touch
// that restarts the window; absolute windows get whatever remains.
func ttlFor[V any](it item.CacheItem[V]) time.Duration {
	switch it.ExpirationMode {
	case item.ExpireAbsolute:
		remaining := it.ExpirationTimeout - time.Since(it.CreatedUTC)
		if remaining <= 0 {
			return time.Nanosecond
		}
		return remaining
	case item.ExpireSliding:
		return it.ExpirationTimeout
	default:
		return 0
	}
}

func (h *Handle[V]) GetItem(ctx context.Context, key, region string) (item.CacheItem[V], bool, error) {
	sk := h.storageKey(key, region)
	h.Counters().RecordGet()

	it, ok, err := h.decode(ctx, sk, key, region)
	if err != nil {
		return item.CacheItem[V]{}, false, err
	}
	if !ok {
		h.Counters().RecordMiss()
		return item.CacheItem[V]{}, false, nil
	}

	if it.ExpirationMode == item.ExpireSliding {
		touched := it.Touched(time.Now())
		if ver, err := h.snapshot(ctx, sk); err == nil {
			if _, err := h.store(ctx, sk, touched, ver); err == nil {
				it = touched
			}
		}
	}

	h.Counters().RecordHit()
	return it, true, nil
}

func (h *Handle[V]) Exists(ctx context.Context, key, region string) (bool, error) {
	sk := h.storageKey(key, region)
	_, ok, err := h.decode(ctx, sk, key, region)
	return ok, err
}

func (h *Handle[V]) Count(context.Context) (int64, error) {
	return h.Counters().Items(), nil
}

func (h *Handle[V]) Add(ctx context.Context, it item.CacheItem[V]) (bool, error) {
	it = h.ApplyDefaults(it)
	sk := h.storageKey(it.Key, it.Region)

	if _, ok, err := h.decode(ctx, sk, it.Key, it.Region); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}

	ver, err := h.bump(ctx, sk)
	if err != nil {
		return false, err
	}
	ok, err := h.store(ctx, sk, it, ver)
	if err != nil {
		return false, err
	}
	if ok {
		h.Counters().AdjustItems(1)
		h.Counters().RecordAdd()
	}
	return ok, nil
}

func (h *Handle[V]) Put(ctx context.Context, it item.CacheItem[V]) error {
	it = h.ApplyDefaults(it)
	sk := h.storageKey(it.Key, it.Region)

	existed, err := h.Exists(ctx, it.Key, it.Region)
	if err != nil {
		return err
	}

	ver, err := h.bump(ctx, sk)
	if err != nil {
		return err
	}
	if _, err := h.store(ctx, sk, it, ver); err != nil {
		return err
	}
	if !existed {
		h.Counters().AdjustItems(1)
	}
	h.Counters().RecordPut()
	return nil
}

func (h *Handle[V]) Remove(ctx context.Context, key, region string) (bool, error) {
	sk := h.storageKey(key, region)
	existed, err := h.Exists(ctx, key, region)
	if err != nil {
		return false, err
	}
	if err := h.provider.Del(ctx, sk); err != nil {
		return false, err
	}
	if existed {
		h.Counters().AdjustItems(-1)
	}
	h.Counters().RecordRemove()
	return existed, nil
}

// Clear bumps the handle-wide epoch so every entry this handle has ever
// written self-heals as stale on its next read, then best-effort asks the
// provider to physically reclaim space if it can do so cheaply.
func (h *Handle[V]) Clear(ctx context.Context) error {
	if _, err := h.bump(ctx, h.handleEpochKey()); err != nil {
		return err
	}
	if c, ok := h.provider.(provider.Clearable); ok {
		_ = c.Clear(ctx)
	}
	if c, ok := h.provider.(provider.PrefixClearable); ok {
		_ = c.ClearPrefix(ctx, h.ns+":")
	}
	h.Counters().SetItems(0)
	h.Counters().RecordClear()
	return nil
}

// ClearRegion bumps region's epoch, the region-scoped analogue of Clear.
func (h *Handle[V]) ClearRegion(ctx context.Context, region string) error {
	if _, err := h.bump(ctx, h.regionEpochKey(region)); err != nil {
		return err
	}
	if c, ok := h.provider.(provider.PrefixClearable); ok {
		_ = c.ClearPrefix(ctx, util.RegionPrefix(h.ns, region))
	}
	h.Counters().RecordClearRegion()
	return nil
}

func (h *Handle[V]) Update(ctx context.Context, key, region string, f handle.ValueFactory[V], maxRetries int) (handle.UpdateResult[V], error) {
	sk := h.storageKey(key, region)
	h.Counters().RecordUpdateCall()

	tries := 0
	for {
		tries++

		it, ok, err := h.decode(ctx, sk, key, region)
		if err != nil {
			return handle.UpdateResult[V]{}, err
		}
		if !ok {
			return handle.UpdateResult[V]{Kind: handle.UpdateItemDidNotExist}, nil
		}

		observed, err := h.snapshot(ctx, sk)
		if err != nil {
			return handle.UpdateResult[V]{}, err
		}

		updated, produced := f(it.Value)
		if !produced {
			return handle.UpdateResult[V]{Kind: handle.UpdateFactoryReturnedNull}, nil
		}

		newVer, committed, err := h.versions.CompareAndBump(ctx, sk, observed)
		if err != nil {
			if h.hooks != nil {
				h.hooks.GenBumpError(sk, err)
			}
			return handle.UpdateResult[V]{}, err
		}
		if !committed {
			if tries > maxRetries {
				return handle.UpdateResult[V]{Kind: handle.UpdateTooManyRetries, TriesNeeded: tries}, nil
			}
			continue
		}

		newItem := it
		newItem.Value = updated
		newItem.LastAccessedUTC = time.Now()

		if _, err := h.store(ctx, sk, newItem, newVer); err != nil {
			return handle.UpdateResult[V]{}, err
		}

		return handle.UpdateResult[V]{
			Kind:                    handle.UpdateSuccess,
			NewItem:                 newItem,
			VersionConflictOccurred: tries > 1,
			TriesNeeded:             tries,
		}, nil
	}
}

func (h *Handle[V]) Close(ctx context.Context) error {
	if err := h.versions.Close(ctx); err != nil {
		return err
	}
	return h.provider.Close(ctx)
}
