package coordcache

import (
	"context"
	"fmt"

	"github.com/coordcache/coordcache/backplane"
	"github.com/coordcache/coordcache/handle"
)

// executeUpdate drives the bottom handle's optimistic update and then
// reconciles the other layers per §4.3/§4.9: on success, UpdateModeUp
// evicts every layer above the bottom one and every layer below it (if
// any) receives the fresh item via Add; a miss or exhausted-retries
// outcome evicts the key everywhere, since the bottom's view of "does not
// exist" / "couldn't agree on a version" outranks whatever upper layers
// cached.
func (c *Coordinator[V]) executeUpdate(ctx context.Context, key, region string, f ValueFactory[V], maxRetries int) (updateOutcome[V], error) {
	if err := c.checkAlive("Update"); err != nil {
		return updateOutcome[V]{}, err
	}
	if err := validateKey("Update", key); err != nil {
		return updateOutcome[V]{}, err
	}
	if err := validateRegion("Update", key, region); err != nil {
		return updateOutcome[V]{}, err
	}
	if maxRetries < 0 {
		return updateOutcome[V]{}, newErr(KindInvalidArgument, "Update", key, region, fmt.Errorf("maxRetries must be >= 0"))
	}

	bottom := len(c.handles) - 1
	res, err := c.handles[bottom].Update(ctx, key, region, handle.ValueFactory[V](f), maxRetries)
	if err != nil {
		if cerr := c.handleErr(ctx, "Update", key, region, err); cerr != nil {
			return updateOutcome[V]{}, cerr
		}
		evictErr := c.evictFromOtherHandles(ctx, bottom, key, region)
		if evictErr != nil {
			c.hooks.OperationOutage("Update", key, err, evictErr)
		}
		return updateOutcome[V]{kind: outcomeTooManyRetries}, nil
	}

	switch res.Kind {
	case handle.UpdateSuccess:
		if c.updateMode == UpdateModeUp {
			for j := 0; j < bottom; j++ {
				if _, rerr := c.handles[j].Remove(ctx, key, region); rerr != nil {
					c.log.Debug("post-update eviction failed", Fields{"handle": j, "err": rerr})
				}
			}
		}
		for j := bottom + 1; j < len(c.handles); j++ {
			if _, aerr := c.handles[j].Add(ctx, res.NewItem); aerr != nil {
				c.log.Debug("post-update promotion failed", Fields{"handle": j, "err": aerr})
			}
		}
		if res.VersionConflictOccurred {
			c.hooks.VersionConflict(key, res.TriesNeeded)
		}
		c.publishChange(ctx, key, region, backplane.ActionUpdate)
		c.observers.emitUpdate(KeyEvent{Key: key, Region: region, Origin: OriginLocal})
		return updateOutcome[V]{kind: outcomeSuccess, item: res.NewItem, tries: res.TriesNeeded, conflict: res.VersionConflictOccurred}, nil

	case handle.UpdateFactoryReturnedNull:
		return updateOutcome[V]{kind: outcomeFactoryReturnedNull}, nil

	case handle.UpdateTooManyRetries:
		_ = c.evictFromOtherHandles(ctx, bottom, key, region)
		return updateOutcome[V]{kind: outcomeTooManyRetries, tries: res.TriesNeeded}, nil

	default: // handle.UpdateItemDidNotExist
		_ = c.evictFromOtherHandles(ctx, bottom, key, region)
		return updateOutcome[V]{kind: outcomeItemDidNotExist}, nil
	}
}

// Update is the strict variant: any non-success outcome is an error.
func (c *Coordinator[V]) Update(ctx context.Context, key, region string, f ValueFactory[V], maxRetries int) (V, error) {
	var zero V
	out, err := c.executeUpdate(ctx, key, region, f, maxRetries)
	if err != nil {
		return zero, err
	}
	switch out.kind {
	case outcomeSuccess:
		return out.item.Value, nil
	case outcomeFactoryReturnedNull:
		return zero, newErr(KindInvalidState, "Update", key, region, fmt.Errorf("value factory declined to update"))
	case outcomeTooManyRetries:
		return zero, newErr(KindInvalidState, "Update", key, region, fmt.Errorf("exhausted retries without a consistent version"))
	default:
		return zero, newErr(KindInvalidState, "Update", key, region, fmt.Errorf("key does not exist"))
	}
}

// TryUpdate is the non-throwing variant: ok=false covers every failure
// mode (missing key, factory decline, exhausted retries).
func (c *Coordinator[V]) TryUpdate(ctx context.Context, key, region string, f ValueFactory[V], maxRetries int) (V, bool, error) {
	var zero V
	out, err := c.executeUpdate(ctx, key, region, f, maxRetries)
	if err != nil {
		return zero, false, err
	}
	if out.kind != outcomeSuccess {
		return zero, false, nil
	}
	return out.item.Value, true, nil
}

// AddOrUpdate tries to create the item; if one already exists, it falls
// back to Update with the same retry budget (§4.4). Per the teacher's own
// AddOrUpdate, if every attempt is raced away by a concurrent writer, the
// zero value is returned rather than an error — documented as an explicit
// decision in DESIGN.md rather than left as an open question.
func (c *Coordinator[V]) AddOrUpdate(ctx context.Context, it CacheItem[V], f ValueFactory[V], maxRetries int) (V, error) {
	var zero V
	for attempt := 0; attempt <= maxRetries; attempt++ {
		ok, err := c.Add(ctx, it)
		if err != nil {
			return zero, err
		}
		if ok {
			return it.Value, nil
		}

		val, ok, err := c.TryUpdate(ctx, it.Key, it.Region, f, maxRetries)
		if err != nil {
			return zero, err
		}
		if ok {
			return val, nil
		}
	}
	return zero, nil
}

// GetOrAdd is the strict variant of TryGetOrAdd.
func (c *Coordinator[V]) GetOrAdd(ctx context.Context, key, region string, factory func() (V, bool)) (V, error) {
	var zero V
	val, ok, err := c.TryGetOrAdd(ctx, key, region, factory)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, newErr(KindInvalidState, "GetOrAdd", key, region, fmt.Errorf("could not get nor add"))
	}
	return val, nil
}

// TryGetOrAdd reads key[,region]; on a miss it calls factory at most once
// (§4.5's single-use-factory invariant) and retries the read-then-add loop
// up to maxRetries times to absorb a concurrent writer winning the race.
func (c *Coordinator[V]) TryGetOrAdd(ctx context.Context, key, region string, factory func() (V, bool)) (V, bool, error) {
	var zero V
	if err := c.checkAlive("GetOrAdd"); err != nil {
		return zero, false, err
	}
	if err := validateKey("GetOrAdd", key); err != nil {
		return zero, false, err
	}
	if err := validateRegion("GetOrAdd", key, region); err != nil {
		return zero, false, err
	}

	var built *CacheItem[V]
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		it, ok, err := c.GetItem(ctx, key, region)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return it.Value, true, nil
		}

		if built == nil {
			v, produced := factory()
			if !produced {
				return zero, false, nil
			}
			newItem, ierr := NewDefaultItem[V](key, region, v)
			if ierr != nil {
				return zero, false, ierr
			}
			built = &newItem
		}

		added, aerr := c.Add(ctx, *built)
		if aerr != nil {
			return zero, false, aerr
		}
		if added {
			return built.Value, true, nil
		}
	}
	return zero, false, nil
}
