// usage:
//
// import (
//
//	"github.com/coordcache/coordcache"
//	"github.com/coordcache/coordcache/hooks/async"
//	"github.com/coordcache/coordcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	coord, _ := coordcache.New[User](coordcache.Options[User]{
//	    Name:    "app:prod:user",
//	    Handles: handles,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/coordcache/coordcache"
)

// Hooks wraps an inner coordcache.Hooks so every callback is dispatched on a
// bounded worker pool instead of the calling goroutine. Grounded on the
// teacher's hooks/async bounded-queue/drop-on-full pattern: a full queue
// drops the event rather than blocking the coordinator.
type Hooks struct {
	inner coordcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ coordcache.Hooks = (*Hooks)(nil)

func New(inner coordcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHealSingle(storageKey, reason string) {
	h.try(func() { h.inner.SelfHealSingle(storageKey, reason) })
}
func (h *Hooks) FanoutPartialFailure(op string, handleIndex int, err error) {
	h.try(func() { h.inner.FanoutPartialFailure(op, handleIndex, err) })
}
func (h *Hooks) ProviderSetRejected(storageKey string) {
	h.try(func() { h.inner.ProviderSetRejected(storageKey) })
}
func (h *Hooks) GenSnapshotError(count int, err error) {
	h.try(func() { h.inner.GenSnapshotError(count, err) })
}
func (h *Hooks) GenBumpError(storageKey string, err error) {
	h.try(func() { h.inner.GenBumpError(storageKey, err) })
}
func (h *Hooks) VersionConflict(storageKey string, tries int) {
	h.try(func() { h.inner.VersionConflict(storageKey, tries) })
}
func (h *Hooks) OperationOutage(op, key string, writeErr, evictErr error) {
	h.try(func() { h.inner.OperationOutage(op, key, writeErr, evictErr) })
}
