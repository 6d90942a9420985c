package coordcache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/coordcache/coordcache/backplane"
	"github.com/coordcache/coordcache/handle"
)

// Coordinator composes an ordered list of handles into one logical cache.
// Index 0 is the topmost/fastest handle; the last index is the
// bottommost/authoritative one. Grounded on the teacher's cache[V]:
// construction-time validation, a coalesced Logger/Hooks, and
// disposal guarded by a single atomic flag, generalized from "one
// provider" to "an ordered handle chain".
type Coordinator[V any] struct {
	name       string
	id         string // identifies this instance's own backplane publishes, see onBackplaneEvent
	handles    []handle.Handle[V]
	maxRetries int
	updateMode UpdateMode

	bp backplane.Backplane

	log   Logger
	hooks Hooks

	observers *observerBus

	sourceIdx   int // -1 if no handle is the backplane source
	syncExcl    []int
	syncIncl    []int

	disposed atomic.Bool
}

// New constructs a Coordinator from opts. At least one handle is required.
func New[V any](opts Options[V]) (*Coordinator[V], error) {
	if len(opts.Handles) == 0 {
		return nil, newErr(KindInvalidState, "New", "", "", fmt.Errorf("at least one handle is required"))
	}
	if opts.MaxRetries < 0 {
		return nil, newErr(KindInvalidArgument, "New", "", "", fmt.Errorf("max retries must be >= 0"))
	}

	c := &Coordinator[V]{
		name:       opts.Name,
		id:         fmt.Sprintf("%s#%08x", opts.Name, rand.Uint32()),
		handles:    opts.Handles,
		maxRetries: opts.MaxRetries,
		updateMode: opts.UpdateMode,
		bp:         opts.Backplane,
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:      coalesce[Hooks](opts.Hooks, NopHooks{}),
		sourceIdx:  -1,
	}
	c.observers = newObserverBus(c.log)

	for i, h := range c.handles {
		if h.Configuration().IsBackplaneSource {
			if c.sourceIdx != -1 {
				return nil, newErr(KindInvalidState, "New", "", "", fmt.Errorf("only one handle may be the backplane source"))
			}
			c.sourceIdx = i
		}
	}
	c.computeSyncSets()

	for i := range c.handles {
		idx := i
		c.handles[idx].OnCacheSpecificRemove(func(e handle.CacheSpecificRemoveEvent[V]) {
			c.onHandleSpecificRemove(idx, e)
		})
	}

	if c.bp != nil {
		if err := c.bp.Subscribe(context.Background(), c.onBackplaneEvent); err != nil {
			return nil, newErr(KindTransientBackendFailure, "New", "", "", err)
		}
	}
	return c, nil
}

// computeSyncSets partitions handle indices per §4.7: sync_excluding_source
// is every handle but the source; sync_including_source adds the source
// back in only when it is non-distributed (an in-memory source still needs
// its local peer evicted on a Remove/Clear it didn't originate locally).
func (c *Coordinator[V]) computeSyncSets() {
	for i := range c.handles {
		if i == c.sourceIdx {
			continue
		}
		c.syncExcl = append(c.syncExcl, i)
	}
	c.syncIncl = append([]int{}, c.syncExcl...)
	if c.sourceIdx != -1 && !c.handles[c.sourceIdx].Configuration().IsDistributed {
		c.syncIncl = append(c.syncIncl, c.sourceIdx)
	}
}

func (c *Coordinator[V]) Configuration() CoordinatorConfiguration {
	return CoordinatorConfiguration{
		Name:         c.name,
		HandleCount:  len(c.handles),
		MaxRetries:   c.maxRetries,
		UpdateMode:   c.updateMode,
		HasBackplane: c.bp != nil,
	}
}

func (c *Coordinator[V]) OnAdd(fn func(KeyEvent))                     { c.observers.OnAdd(fn) }
func (c *Coordinator[V]) OnPut(fn func(KeyEvent))                     { c.observers.OnPut(fn) }
func (c *Coordinator[V]) OnGet(fn func(GetEvent))                     { c.observers.OnGet(fn) }
func (c *Coordinator[V]) OnUpdate(fn func(KeyEvent))                  { c.observers.OnUpdate(fn) }
func (c *Coordinator[V]) OnRemove(fn func(KeyEvent))                  { c.observers.OnRemove(fn) }
func (c *Coordinator[V]) OnClear(fn func(ClearEvent))                 { c.observers.OnClear(fn) }
func (c *Coordinator[V]) OnClearRegion(fn func(ClearRegionEvent))     { c.observers.OnClearRegion(fn) }
func (c *Coordinator[V]) OnRemoveByHandle(fn func(HandleRemoveEvent)) { c.observers.OnRemoveByHandle(fn) }

func (c *Coordinator[V]) checkAlive(op string) error {
	if c.disposed.Load() {
		return newErr(KindDisposed, op, "", "", nil)
	}
	return nil
}

func validateKey(op, key string) error {
	if key == "" {
		return newErr(KindInvalidArgument, op, key, "", fmt.Errorf("key must not be empty"))
	}
	return nil
}

func validateRegion(op, key, region string) error {
	if region == "" {
		return nil
	}
	for _, r := range region {
		if r != ' ' && r != '\t' && r != '\n' {
			return nil
		}
	}
	return newErr(KindInvalidArgument, op, key, region, fmt.Errorf("region must not be whitespace-only"))
}

// handleErr classifies a handle-level error: a caller cancellation is
// surfaced as a CoordinatorError the caller must see; anything else is a
// TransientBackendFailure that the coordinator logs and treats as local
// operation failure (ok=false) per §7's propagation policy.
func (c *Coordinator[V]) handleErr(ctx context.Context, op, key, region string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return newErr(KindCanceledByCaller, op, key, region, err)
	}
	c.log.Warn("handle operation failed", Fields{"op": op, "key": key, "region": region, "err": err})
	return nil
}

// GetItem reads key[,region] top-down, promoting a hit into every handle
// above the one it was found at (§4.1).
func (c *Coordinator[V]) GetItem(ctx context.Context, key, region string) (CacheItem[V], bool, error) {
	var zero CacheItem[V]
	if err := c.checkAlive("GetItem"); err != nil {
		return zero, false, err
	}
	if err := validateKey("GetItem", key); err != nil {
		return zero, false, err
	}
	if err := validateRegion("GetItem", key, region); err != nil {
		return zero, false, err
	}

	for i, h := range c.handles {
		it, ok, err := h.GetItem(ctx, key, region)
		if err != nil {
			if cerr := c.handleErr(ctx, "GetItem", key, region, err); cerr != nil {
				return zero, false, cerr
			}
			continue
		}
		if !ok {
			continue
		}

		it = it.Touched(time.Now())
		for j := 0; j < i; j++ {
			if _, aerr := c.handles[j].Add(ctx, it); aerr != nil {
				c.log.Debug("promotion add failed", Fields{"handle": j, "err": aerr})
			}
		}
		c.observers.emitGet(GetEvent{Key: key, Region: region})
		return it, true, nil
	}
	return zero, false, nil
}

// Get is GetItem without the expiration/defaults metadata.
func (c *Coordinator[V]) Get(ctx context.Context, key, region string) (V, bool, error) {
	it, ok, err := c.GetItem(ctx, key, region)
	return it.Value, ok, err
}

func (c *Coordinator[V]) Exists(ctx context.Context, key, region string) (bool, error) {
	if err := c.checkAlive("Exists"); err != nil {
		return false, err
	}
	if err := validateKey("Exists", key); err != nil {
		return false, err
	}
	for _, h := range c.handles {
		ok, err := h.Exists(ctx, key, region)
		if err != nil {
			if cerr := c.handleErr(ctx, "Exists", key, region, err); cerr != nil {
				return false, cerr
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Add writes to the bottom handle only, then evicts every other handle
// regardless of the bottom write's outcome (§4.2): a failed bottom add
// means an upper layer's copy, if any, is now unsupported by the layer of
// record; a successful one means upper layers may hold a stale version.
func (c *Coordinator[V]) Add(ctx context.Context, it CacheItem[V]) (bool, error) {
	if err := c.checkAlive("Add"); err != nil {
		return false, err
	}
	if err := validateKey("Add", it.Key); err != nil {
		return false, err
	}
	if err := validateRegion("Add", it.Key, it.Region); err != nil {
		return false, err
	}

	bottom := len(c.handles) - 1
	ok, err := c.handles[bottom].Add(ctx, it)
	if cerr := c.handleErr(ctx, "Add", it.Key, it.Region, err); cerr != nil {
		return false, cerr
	}
	if err != nil {
		ok = false
	}

	evictErr := c.evictFromOtherHandles(ctx, bottom, it.Key, it.Region)
	if err != nil && evictErr != nil {
		c.hooks.OperationOutage("Add", it.Key, err, evictErr)
	}

	if ok {
		c.publishChange(ctx, it.Key, it.Region, backplane.ActionAdd)
		c.observers.emitAdd(KeyEvent{Key: it.Key, Region: it.Region, Origin: OriginLocal})
	}
	return ok, nil
}

// Put fans out to every handle (§4.2); a single handle's failure does not
// stop the others.
func (c *Coordinator[V]) Put(ctx context.Context, it CacheItem[V]) error {
	if err := c.checkAlive("Put"); err != nil {
		return err
	}
	if err := validateKey("Put", it.Key); err != nil {
		return err
	}
	if err := validateRegion("Put", it.Key, it.Region); err != nil {
		return err
	}

	var errs []error
	succeeded := 0
	for i, h := range c.handles {
		if err := h.Put(ctx, it); err != nil {
			if cerr := c.handleErr(ctx, "Put", it.Key, it.Region, err); cerr != nil {
				return cerr
			}
			c.hooks.FanoutPartialFailure("Put", i, err)
			errs = appendErr(errs, err)
			continue
		}
		succeeded++
	}

	if succeeded > 0 {
		c.publishChange(ctx, it.Key, it.Region, backplane.ActionPut)
		c.observers.emitPut(KeyEvent{Key: it.Key, Region: it.Region, Origin: OriginLocal})
	}
	if len(errs) > 0 {
		return &MultiError{Op: "Put", Causes: errs}
	}
	return nil
}

func (c *Coordinator[V]) Remove(ctx context.Context, key, region string) (bool, error) {
	if err := c.checkAlive("Remove"); err != nil {
		return false, err
	}
	if err := validateKey("Remove", key); err != nil {
		return false, err
	}
	if err := validateRegion("Remove", key, region); err != nil {
		return false, err
	}

	var removedAny bool
	var errs []error
	for i, h := range c.handles {
		ok, err := h.Remove(ctx, key, region)
		if err != nil {
			if cerr := c.handleErr(ctx, "Remove", key, region, err); cerr != nil {
				return false, cerr
			}
			c.hooks.FanoutPartialFailure("Remove", i, err)
			errs = appendErr(errs, err)
			continue
		}
		removedAny = removedAny || ok
	}

	if removedAny {
		c.publishRemove(ctx, key, region)
		c.observers.emitRemove(KeyEvent{Key: key, Region: region, Origin: OriginLocal})
	}
	if len(errs) > 0 {
		return removedAny, &MultiError{Op: "Remove", Causes: errs}
	}
	return removedAny, nil
}

func (c *Coordinator[V]) Clear(ctx context.Context) error {
	if err := c.checkAlive("Clear"); err != nil {
		return err
	}

	var errs []error
	for i, h := range c.handles {
		if err := h.Clear(ctx); err != nil {
			if cerr := c.handleErr(ctx, "Clear", "", "", err); cerr != nil {
				return cerr
			}
			c.hooks.FanoutPartialFailure("Clear", i, err)
			errs = appendErr(errs, err)
		}
	}

	c.publishClear(ctx)
	c.observers.emitClear(ClearEvent{Origin: OriginLocal})
	if len(errs) > 0 {
		return &MultiError{Op: "Clear", Causes: errs}
	}
	return nil
}

func (c *Coordinator[V]) ClearRegion(ctx context.Context, region string) error {
	if err := c.checkAlive("ClearRegion"); err != nil {
		return err
	}
	if region == "" {
		return newErr(KindInvalidArgument, "ClearRegion", "", region, fmt.Errorf("region must not be empty"))
	}

	var errs []error
	for i, h := range c.handles {
		if err := h.ClearRegion(ctx, region); err != nil {
			if cerr := c.handleErr(ctx, "ClearRegion", "", region, err); cerr != nil {
				return cerr
			}
			c.hooks.FanoutPartialFailure("ClearRegion", i, err)
			errs = appendErr(errs, err)
		}
	}

	c.publishClearRegion(ctx, region)
	c.observers.emitClearRegion(ClearRegionEvent{Region: region, Origin: OriginLocal})
	if len(errs) > 0 {
		return &MultiError{Op: "ClearRegion", Causes: errs}
	}
	return nil
}

// evictFromOtherHandles removes key[,region] from every handle except
// except, returning the first error encountered (if any) after attempting
// all of them.
func (c *Coordinator[V]) evictFromOtherHandles(ctx context.Context, except int, key, region string) error {
	var first error
	for i, h := range c.handles {
		if i == except {
			continue
		}
		if _, err := h.Remove(ctx, key, region); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// onHandleSpecificRemove reconciles a handle-initiated eviction (§4.8): if
// UpdateModeUp, every handle above the emitting one is evicted too, then
// OnRemoveByHandle fires with HandleIndex set to the emitting index plus one.
func (c *Coordinator[V]) onHandleSpecificRemove(emittingIdx int, e handle.CacheSpecificRemoveEvent[V]) {
	if c.updateMode == UpdateModeUp {
		ctx := context.Background()
		for j := 0; j < emittingIdx; j++ {
			if _, err := c.handles[j].Remove(ctx, e.Key, e.Region); err != nil {
				c.log.Debug("handle-specific-remove reconcile failed", Fields{"handle": j, "err": err})
			}
		}
	}

	var val any
	if e.HasVal {
		val = e.Value
	}
	c.observers.emitRemoveByHandle(HandleRemoveEvent{
		Key:         e.Key,
		Region:      e.Region,
		Reason:      e.Reason.String(),
		HandleIndex: emittingIdx + 1,
		Value:       val,
	})
}

// Close disposes every handle in reverse construction order and closes the
// backplane, if any. Safe to call more than once.
func (c *Coordinator[V]) Close(ctx context.Context) error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if c.bp != nil {
		if err := c.bp.Close(ctx); err != nil {
			errs = appendErr(errs, err)
		}
	}
	for i := len(c.handles) - 1; i >= 0; i-- {
		if err := c.handles[i].Close(ctx); err != nil {
			errs = appendErr(errs, err)
		}
	}
	if len(errs) > 0 {
		return &MultiError{Op: "Close", Causes: errs}
	}
	return nil
}
