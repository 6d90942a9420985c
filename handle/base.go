package handle

import (
	"sync"
	"time"

	"github.com/coordcache/coordcache/item"
)

// Base bundles the obligations every handle must honor so the
// coordinator's invariants hold (§4.8): applying the handle's own default
// expiration to incoming items that defer to defaults, exposing Stats, and
// emitting OnCacheSpecificRemove for evictions the handle initiates on its
// own. Concrete handles embed *Base[V] and call its helpers instead of
// re-implementing this bookkeeping.
type Base[V any] struct {
	cfg   Configuration
	stats CounterStats

	mu        sync.RWMutex
	removeFns []func(CacheSpecificRemoveEvent[V])
}

// NewBase constructs the shared bookkeeping for a handle with cfg.
func NewBase[V any](cfg Configuration) *Base[V] {
	return &Base[V]{cfg: cfg}
}

func (b *Base[V]) Configuration() Configuration { return b.cfg }
func (b *Base[V]) Stats() Stats                 { return &b.stats }
func (b *Base[V]) Counters() *CounterStats      { return &b.stats }

// ApplyDefaults re-expires it per this handle's configured default mode and
// timeout when it.UsesExpirationDefaults is true; otherwise it is returned
// unchanged.
func (b *Base[V]) ApplyDefaults(it item.CacheItem[V]) item.CacheItem[V] {
	return it.ApplyDefaults(b.cfg.DefaultMode, b.cfg.DefaultTimeout)
}

// OnCacheSpecificRemove registers fn for handle-initiated removals.
func (b *Base[V]) OnCacheSpecificRemove(fn func(CacheSpecificRemoveEvent[V])) {
	b.mu.Lock()
	b.removeFns = append(b.removeFns, fn)
	b.mu.Unlock()
}

// EmitCacheSpecificRemove notifies every registered observer. Implementors
// call this from their own eviction/sweep path (capacity pressure, internal
// TTL sweep), never from a coordinator-driven Remove.
func (b *Base[V]) EmitCacheSpecificRemove(e CacheSpecificRemoveEvent[V]) {
	b.mu.RLock()
	fns := append([]func(CacheSpecificRemoveEvent[V]){}, b.removeFns...)
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}

// StorageKey composes a handle-local storage key from (key, region). Kept
// here so every concrete handle composes keys identically.
func StorageKey(key, region string) string {
	if region == "" {
		return "k:" + key
	}
	return "r:" + region + ":" + key
}

// Now exists so tests can't accidentally depend on wall-clock drift between
// handles created in the same process; kept trivial on purpose.
func Now() time.Time { return time.Now() }
