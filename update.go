package coordcache

import "github.com/coordcache/coordcache/item"

// ValueFactory computes the next value given the current one, or declines
// by returning ok=false (the spec's "factory returned null" — Go generics
// have no universal nil, so decline is explicit).
type ValueFactory[V any] func(current V) (updated V, ok bool)

// UpdateMode controls how a successful Update/Remove-event reconciles
// layers above the source of truth.
type UpdateMode int

const (
	// UpdateModeNone leaves upper layers untouched after a successful
	// update; they converge lazily on the next read (promotion uses Add,
	// never Put, so a stale upper copy is never overwritten by accident —
	// only a later natural read-through re-promotes the fresh value).
	UpdateModeNone UpdateMode = iota
	// UpdateModeUp evicts the key from every handle above the bottommost
	// one immediately after a successful update, so the next read always
	// falls through to the authoritative layer.
	UpdateModeUp
)

func (m UpdateMode) String() string {
	if m == UpdateModeUp {
		return "Up"
	}
	return "None"
}

// updateOutcomeKind mirrors handle.UpdateResultKind at the coordinator
// level after cross-layer reconciliation has been applied.
type updateOutcomeKind int

const (
	outcomeSuccess updateOutcomeKind = iota
	outcomeItemDidNotExist
	outcomeTooManyRetries
	outcomeFactoryReturnedNull
)

type updateOutcome[V any] struct {
	kind    updateOutcomeKind
	item    item.CacheItem[V]
	tries   int
	conflict bool
}
