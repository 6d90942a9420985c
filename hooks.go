package coordcache

// Hooks are lightweight callbacks for high-signal coordinator internals that
// don't belong on the public Observers bus (they're diagnostic, not
// domain events). Implementations MUST be cheap and non-blocking; the
// coordinator calls them on hot paths. Wrap with hooks/async for
// non-blocking dispatch off the calling goroutine.
type Hooks interface {
	// A handle's stored item was dropped on read because its wire envelope
	// was corrupt or failed to decode.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHealSingle(storageKey, reason string)

	// A fan-out write (Put/Clear/ClearRegion) had at least one handle fail;
	// the coordinator continued with the remaining handles.
	FanoutPartialFailure(op string, handleIndex int, err error)

	// A handle rejected a Set under pressure (admission refusal, capacity).
	// Reported by the handle itself, which has no notion of its own index
	// in the coordinator's handle list — unlike FanoutPartialFailure, which
	// is raised by the coordinator and carries that index.
	ProviderSetRejected(storageKey string)

	// The handle-internal version store failed a snapshot or bump.
	// count is the number of keys involved (1 for Snapshot/Bump, N for
	// SnapshotMany).
	GenSnapshotError(count int, err error)
	GenBumpError(storageKey string, err error)

	// An Update's optimistic-concurrency loop observed a version conflict
	// and retried.
	VersionConflict(storageKey string, tries int)

	// Both the bottom-layer write and the subsequent eviction failed during
	// a coordinator operation (likely a backend outage).
	OperationOutage(op, key string, writeErr, evictErr error)
}

// NopHooks is the default no-op implementation.
type NopHooks struct{}

func (NopHooks) SelfHealSingle(string, string)                {}
func (NopHooks) FanoutPartialFailure(string, int, error)       {}
func (NopHooks) ProviderSetRejected(string)                    {}
func (NopHooks) GenSnapshotError(int, error)                   {}
func (NopHooks) GenBumpError(string, error)                    {}
func (NopHooks) VersionConflict(string, int)                   {}
func (NopHooks) OperationOutage(string, string, error, error)  {}
