package coordcache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coordcache/coordcache/backplane/local"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/memory"
)

func newSingleTierCoordinator(t *testing.T) *Coordinator[int] {
	t.Helper()
	bottom := memory.New[int](handle.Configuration{Name: "bottom"})
	coord, err := New(Options[int]{
		Name:       "test",
		Handles:    []handle.Handle[int]{bottom},
		MaxRetries: 8,
		UpdateMode: UpdateModeNone,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = coord.Close(context.Background()) })
	return coord
}

func TestUpdateStrictFailsWhenKeyMissing(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	_, err := coord.Update(ctx, "missing", "", func(v int) (int, bool) { return v + 1, true }, 3)
	if err == nil {
		t.Fatal("expected an error for an update against a missing key")
	}
	ce, ok := asCoordErr(err)
	if !ok || ce.Kind != KindInvalidState {
		t.Fatalf("expected KindInvalidState, got %v", err)
	}
}

func TestTryUpdateMissingKeyReturnsFalseNoError(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	_, ok, err := coord.TryUpdate(ctx, "missing", "", func(v int) (int, bool) { return v + 1, true }, 3)
	if err != nil {
		t.Fatalf("TryUpdate should not error on a missing key: %v", err)
	}
	if ok {
		t.Fatal("TryUpdate should report ok=false for a missing key")
	}
}

func TestUpdateFactoryDeclineIsInvalidState(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	it, err := NewDefaultItem[int]("k", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := coord.Add(ctx, it); err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}

	_, err = coord.Update(ctx, "k", "", func(int) (int, bool) { return 0, false }, 3)
	if err == nil {
		t.Fatal("expected an error when the factory declines")
	}
}

func TestConcurrentUpdatesAllCommit(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	it, err := NewDefaultItem[int]("counter", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := coord.Add(ctx, it); err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}

	const n = 50
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := coord.Update(gctx, "counter", "", func(v int) (int, bool) { return v + 1, true }, n)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent updates: %v", err)
	}

	got, ok, err := coord.Get(ctx, "counter", "")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != n {
		t.Fatalf("counter=%d want %d (every concurrent update should eventually commit)", got, n)
	}
}

func TestAddOrUpdateCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	it, err := NewDefaultItem[int]("k", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	factory := func(v int) (int, bool) { return v + 1, true }

	v, err := coord.AddOrUpdate(ctx, it, factory, 3)
	if err != nil || v != 1 {
		t.Fatalf("first AddOrUpdate should create: v=%d err=%v", v, err)
	}

	v, err = coord.AddOrUpdate(ctx, it, factory, 3)
	if err != nil || v != 2 {
		t.Fatalf("second AddOrUpdate should update: v=%d err=%v", v, err)
	}
}

func TestTryGetOrAddCallsFactoryAtMostOnce(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	calls := 0
	factory := func() (int, bool) {
		calls++
		return 42, true
	}

	v, ok, err := coord.TryGetOrAdd(ctx, "k", "", factory)
	if err != nil || !ok || v != 42 {
		t.Fatalf("v=%d ok=%v err=%v", v, ok, err)
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}

	v, ok, err = coord.TryGetOrAdd(ctx, "k", "", factory)
	if err != nil || !ok || v != 42 {
		t.Fatalf("second call should just read through: v=%d ok=%v err=%v", v, ok, err)
	}
	if calls != 1 {
		t.Fatalf("factory should not be called again on a hit, got %d calls", calls)
	}
}

// TestUpdateModeNoneSurvivesItsOwnBackplaneEcho pins down §4.3: under
// UpdateModeNone, an Update must leave the upper tier's stale copy in place
// to converge lazily on its next read, not evict it. Attaching a backplane
// must not change that — the coordinator's own Change(Update) publish loops
// back to its own subscription, and if that echo weren't filtered by
// SourceID it would evict the upper tier as a side effect of publishing,
// making UpdateModeNone observably behave like UpdateModeUp.
func TestUpdateModeNoneSurvivesItsOwnBackplaneEcho(t *testing.T) {
	ctx := context.Background()
	bp := local.New()
	t.Cleanup(func() { _ = bp.Close(ctx) })

	top := memory.New[string](handle.Configuration{Name: "top"})
	bottom := memory.New[string](handle.Configuration{Name: "bottom"})
	coord, err := New(Options[string]{
		Name:       "test",
		Handles:    []handle.Handle[string]{top, bottom},
		MaxRetries: 3,
		UpdateMode: UpdateModeNone,
		Backplane:  bp,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = coord.Close(ctx) })

	if err := coord.Put(ctx, mustItem(t, "k", "", "0")); err != nil {
		t.Fatal(err)
	}

	if _, err := coord.Update(ctx, "k", "", func(string) (string, bool) { return "1", true }, 3); err != nil {
		t.Fatal(err)
	}

	// Give the local backplane's subscriber goroutine time to have
	// processed the self-echo of the Change(Update) this coordinator just
	// published, were it not filtered out.
	time.Sleep(50 * time.Millisecond)

	got, ok, err := top.GetItem(ctx, "k", "")
	if err != nil || !ok {
		t.Fatalf("top should still hold its pre-Update copy under UpdateModeNone: ok=%v err=%v", ok, err)
	}
	if got.Value != "0" {
		t.Fatalf("top's value=%q want the stale 0 (UpdateModeNone leaves upper layers to converge lazily)", got.Value)
	}

	bottomVal, ok, err := bottom.GetItem(ctx, "k", "")
	if err != nil || !ok || bottomVal.Value != "1" {
		t.Fatalf("bottom should hold the updated value: value=%q ok=%v err=%v", bottomVal.Value, ok, err)
	}
}

func TestGetOrAddFactoryDeclineIsNotAnError(t *testing.T) {
	ctx := context.Background()
	coord := newSingleTierCoordinator(t)

	v, ok, err := coord.TryGetOrAdd(ctx, "k", "", func() (int, bool) { return 0, false })
	if err != nil {
		t.Fatalf("a declining factory is not an error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when the factory declines")
	}
	_ = strconv.Itoa(v)
}
