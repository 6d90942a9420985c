// Package memory provides an in-process, map-backed Handle[V]. It is the
// reference handle used throughout the coordinator's own tests: no codec,
// no wire framing, items are held directly. Grounded on the teacher's
// cas.go in-process generation map (genMu sync.RWMutex / gens map),
// generalized from "a generation counter beside an external byte store" to
// "the full item plus a version counter, held directly".
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/item"
)

type entry[V any] struct {
	item    item.CacheItem[V]
	version uint64
}

// Handle is a mutex-protected map[string]entry. Safe for concurrent use.
type Handle[V any] struct {
	*handle.Base[V]

	mu      sync.RWMutex
	entries map[string]entry[V]
}

var _ handle.Handle[struct{}] = (*Handle[struct{}])(nil)

// New constructs an in-memory handle with cfg as its identity/defaults.
func New[V any](cfg handle.Configuration) *Handle[V] {
	return &Handle[V]{
		Base:    handle.NewBase[V](cfg),
		entries: make(map[string]entry[V]),
	}
}

func (h *Handle[V]) GetItem(_ context.Context, key, region string) (item.CacheItem[V], bool, error) {
	sk := handle.StorageKey(key, region)
	now := time.Now()

	h.mu.Lock()
	e, ok := h.entries[sk]
	if !ok {
		h.mu.Unlock()
		h.Counters().RecordGet()
		h.Counters().RecordMiss()
		return item.CacheItem[V]{}, false, nil
	}
	if e.item.IsExpired(now) {
		delete(h.entries, sk)
		h.Counters().SetItems(int64(len(h.entries)))
		h.mu.Unlock()
		h.emitExpired(e.item)
		h.Counters().RecordGet()
		h.Counters().RecordMiss()
		return item.CacheItem[V]{}, false, nil
	}
	e.item = e.item.Touched(now)
	e.version++
	h.entries[sk] = e
	h.mu.Unlock()

	h.Counters().RecordGet()
	h.Counters().RecordHit()
	return e.item, true, nil
}

func (h *Handle[V]) Exists(ctx context.Context, key, region string) (bool, error) {
	sk := handle.StorageKey(key, region)
	now := time.Now()
	h.mu.RLock()
	e, ok := h.entries[sk]
	h.mu.RUnlock()
	if !ok || e.item.IsExpired(now) {
		return false, nil
	}
	return true, nil
}

func (h *Handle[V]) Count(context.Context) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.entries)), nil
}

func (h *Handle[V]) Add(_ context.Context, it item.CacheItem[V]) (bool, error) {
	it = h.ApplyDefaults(it)
	sk := handle.StorageKey(it.Key, it.Region)
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.entries[sk]; ok && !e.item.IsExpired(now) {
		return false, nil
	}
	h.entries[sk] = entry[V]{item: it, version: 1}
	h.Counters().SetItems(int64(len(h.entries)))
	h.Counters().RecordAdd()
	return true, nil
}

func (h *Handle[V]) Put(_ context.Context, it item.CacheItem[V]) error {
	it = h.ApplyDefaults(it)
	sk := handle.StorageKey(it.Key, it.Region)

	h.mu.Lock()
	e, existed := h.entries[sk]
	e.item = it
	e.version++
	h.entries[sk] = e
	if !existed {
		h.Counters().SetItems(int64(len(h.entries)))
	}
	h.mu.Unlock()

	h.Counters().RecordPut()
	return nil
}

func (h *Handle[V]) Remove(_ context.Context, key, region string) (bool, error) {
	sk := handle.StorageKey(key, region)
	h.mu.Lock()
	_, ok := h.entries[sk]
	if ok {
		delete(h.entries, sk)
		h.Counters().SetItems(int64(len(h.entries)))
	}
	h.mu.Unlock()

	h.Counters().RecordRemove()
	return ok, nil
}

func (h *Handle[V]) Clear(context.Context) error {
	h.mu.Lock()
	h.entries = make(map[string]entry[V])
	h.mu.Unlock()

	h.Counters().SetItems(0)
	h.Counters().RecordClear()
	return nil
}

func (h *Handle[V]) ClearRegion(_ context.Context, region string) error {
	prefix := "r:" + region + ":"
	h.mu.Lock()
	for k := range h.entries {
		if strings.HasPrefix(k, prefix) {
			delete(h.entries, k)
		}
	}
	h.Counters().SetItems(int64(len(h.entries)))
	h.mu.Unlock()

	h.Counters().RecordClearRegion()
	return nil
}

// Update implements the handle-internal optimistic read-modify-write
// contract (§4.9): absent key -> ItemDidNotExist; factory decline ->
// FactoryReturnedNull; a version conflict is re-read and retried up to
// maxRetries times before TooManyRetries.
func (h *Handle[V]) Update(_ context.Context, key, region string, f handle.ValueFactory[V], maxRetries int) (handle.UpdateResult[V], error) {
	sk := handle.StorageKey(key, region)
	h.Counters().RecordUpdateCall()

	tries := 0
	for {
		tries++

		h.mu.RLock()
		e, ok := h.entries[sk]
		h.mu.RUnlock()
		if !ok {
			return handle.UpdateResult[V]{Kind: handle.UpdateItemDidNotExist}, nil
		}

		updated, produced := f(e.item.Value)
		if !produced {
			return handle.UpdateResult[V]{Kind: handle.UpdateFactoryReturnedNull}, nil
		}

		h.mu.Lock()
		cur, stillThere := h.entries[sk]
		if !stillThere {
			h.mu.Unlock()
			return handle.UpdateResult[V]{Kind: handle.UpdateItemDidNotExist}, nil
		}
		if cur.version != e.version {
			h.mu.Unlock()
			if tries > maxRetries {
				return handle.UpdateResult[V]{Kind: handle.UpdateTooManyRetries, TriesNeeded: tries}, nil
			}
			continue
		}

		newItem := cur.item
		newItem.Value = updated
		newItem.LastAccessedUTC = time.Now()
		h.entries[sk] = entry[V]{item: newItem, version: cur.version + 1}
		h.mu.Unlock()

		return handle.UpdateResult[V]{
			Kind:                    handle.UpdateSuccess,
			NewItem:                 newItem,
			VersionConflictOccurred: tries > 1,
			TriesNeeded:             tries,
		}, nil
	}
}

func (h *Handle[V]) emitExpired(it item.CacheItem[V]) {
	h.EmitCacheSpecificRemove(handle.CacheSpecificRemoveEvent[V]{
		Key:    it.Key,
		Region: it.Region,
		Reason: handle.RemoveReasonExpired,
		Value:  it.Value,
		HasVal: true,
	})
}

func (h *Handle[V]) Close(context.Context) error { return nil }
