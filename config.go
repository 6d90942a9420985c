package coordcache

import (
	"github.com/coordcache/coordcache/backplane"
	"github.com/coordcache/coordcache/handle"
)

// Options configures a Coordinator. Handles is the only required field;
// order matters (index 0 = topmost/fastest, last = bottommost/authoritative).
// Mirrors the teacher's Options[V]+coalesce defaulting shape.
type Options[V any] struct {
	Name       string
	Handles    []handle.Handle[V]
	MaxRetries int // retry budget for GetOrAdd/TryGetOrAdd (Update and AddOrUpdate take their own); 0 is valid
	UpdateMode UpdateMode

	Backplane backplane.Backplane // optional; nil disables cross-process fan-out

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// CoordinatorConfiguration is a read-only snapshot of the options a
// Coordinator was constructed with, exposed for diagnostics.
type CoordinatorConfiguration struct {
	Name       string
	HandleCount int
	MaxRetries int
	UpdateMode UpdateMode
	HasBackplane bool
}
