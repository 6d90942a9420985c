package coordcache

import (
	"context"

	"github.com/coordcache/coordcache/backplane"
)

// publishChange notifies the backplane after a local Add/Put/Update. A
// publish failure is logged, not propagated: the local write already
// succeeded, and a missed notification degrades (stale upper-layer reads
// until the next write) rather than corrupts.
func (c *Coordinator[V]) publishChange(ctx context.Context, key, region string, action backplane.Action) {
	if c.bp == nil {
		return
	}
	if err := c.bp.NotifyChange(ctx, key, region, action, c.id); err != nil {
		c.log.Warn("backplane publish failed", Fields{"event": "change", "key": key, "region": region, "err": err})
	}
}

func (c *Coordinator[V]) publishRemove(ctx context.Context, key, region string) {
	if c.bp == nil {
		return
	}
	if err := c.bp.NotifyRemove(ctx, key, region, c.id); err != nil {
		c.log.Warn("backplane publish failed", Fields{"event": "remove", "key": key, "region": region, "err": err})
	}
}

func (c *Coordinator[V]) publishClear(ctx context.Context) {
	if c.bp == nil {
		return
	}
	if err := c.bp.NotifyClear(ctx, c.id); err != nil {
		c.log.Warn("backplane publish failed", Fields{"event": "clear", "err": err})
	}
}

func (c *Coordinator[V]) publishClearRegion(ctx context.Context, region string) {
	if c.bp == nil {
		return
	}
	if err := c.bp.NotifyClearRegion(ctx, region, c.id); err != nil {
		c.log.Warn("backplane publish failed", Fields{"event": "clear_region", "region": region, "err": err})
	}
}

// onBackplaneEvent reconciles an inbound backplane event (§4.7). It is
// registered once at construction and runs on the transport's delivery
// goroutine. Every transport loops a publish back to the publisher's own
// subscription, so the first thing this does is drop anything this very
// coordinator instance published — without that check, a local Add/Put/
// Update would echo straight back as a Change/Remove and evict the upper
// layers it just wrote or deliberately left stale (§4.3).
func (c *Coordinator[V]) onBackplaneEvent(e backplane.Event) {
	if e.SourceID == c.id {
		return
	}
	ctx := context.Background()

	switch e.Kind {
	case backplane.EventChange:
		for _, i := range c.syncExcl {
			if _, err := c.handles[i].Remove(ctx, e.Key, e.Region); err != nil {
				c.log.Debug("remote reconcile failed", Fields{"event": "change", "handle": i, "err": err})
			}
		}
		c.emitRemoteKeyEvent(e.Action, e.Key, e.Region)

	case backplane.EventRemove:
		for _, i := range c.syncIncl {
			if _, err := c.handles[i].Remove(ctx, e.Key, e.Region); err != nil {
				c.log.Debug("remote reconcile failed", Fields{"event": "remove", "handle": i, "err": err})
			}
		}
		c.observers.emitRemove(KeyEvent{Key: e.Key, Region: e.Region, Origin: OriginRemote})

	case backplane.EventClear:
		for _, i := range c.syncIncl {
			if err := c.handles[i].Clear(ctx); err != nil {
				c.log.Debug("remote reconcile failed", Fields{"event": "clear", "handle": i, "err": err})
			}
		}
		c.observers.emitClear(ClearEvent{Origin: OriginRemote})

	case backplane.EventClearRegion:
		for _, i := range c.syncIncl {
			if err := c.handles[i].ClearRegion(ctx, e.Region); err != nil {
				c.log.Debug("remote reconcile failed", Fields{"event": "clear_region", "handle": i, "err": err})
			}
		}
		c.observers.emitClearRegion(ClearRegionEvent{Region: e.Region, Origin: OriginRemote})
	}
}

func (c *Coordinator[V]) emitRemoteKeyEvent(action backplane.Action, key, region string) {
	ev := KeyEvent{Key: key, Region: region, Origin: OriginRemote}
	switch action {
	case backplane.ActionAdd:
		c.observers.emitAdd(ev)
	case backplane.ActionPut:
		c.observers.emitPut(ev)
	default:
		c.observers.emitUpdate(ev)
	}
}
