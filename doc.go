// Package coordcache implements a multi-tier cache coordinator that composes
// an ordered list of heterogeneous cache backends (handles) into a single
// logical cache. The coordinator hides the layering: reads fall through the
// handles top-down and promote hits into faster layers, writes terminate at
// the bottommost (authoritative) handle and evict stale copies from the
// others, and an optional pub/sub backplane fans out invalidations across
// processes.
//
// Components:
//   - handle.Handle[V]: a single backend (in-memory, distributed, ...).
//   - Expiration: per-item mode + timeout with derived staleness.
//   - backplane.Backplane: cross-process change/remove/clear notifications.
//   - Coordinator[V]: the ordering-aware read/write/update pipeline.
//
// Typical wiring:
//
//	coord, _ := coordcache.New(coordcache.Options[User]{
//	    Name:       "user",
//	    Handles:    []handle.Handle[User]{memHandle, redisHandle},
//	    MaxRetries: 2,
//	    UpdateMode: coordcache.UpdateModeUp,
//	    Backplane:  rb,
//	})
package coordcache
