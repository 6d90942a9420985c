package coordcache

import (
	"context"
	"testing"
	"time"

	"github.com/coordcache/coordcache/backplane/local"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/memory"
)

// TestBackplaneReconcilesRemoteChange wires two coordinators to the same
// in-process backplane and checks that a Put on one evicts the other's
// stale copy (§4.7's Change event: sync_excluding_source, since neither
// coordinator here designates a backplane-source handle, both handles on
// each side are in the excluded-and-included sets).
func TestBackplaneReconcilesRemoteChange(t *testing.T) {
	ctx := context.Background()
	bp := local.New()
	t.Cleanup(func() { _ = bp.Close(ctx) })

	aHandle := memory.New[string](handle.Configuration{Name: "a"})
	a, err := New(Options[string]{
		Name:      "a",
		Handles:   []handle.Handle[string]{aHandle},
		Backplane: bp,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close(ctx) })

	bHandle := memory.New[string](handle.Configuration{Name: "b"})
	b, err := New(Options[string]{
		Name:      "b",
		Handles:   []handle.Handle[string]{bHandle},
		Backplane: bp,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close(ctx) })

	if _, err := bHandle.Add(ctx, mustItem(t, "k", "", "stale-on-b")); err != nil {
		t.Fatal(err)
	}

	if err := a.Put(ctx, mustItem(t, "k", "", "fresh-on-a")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, ok, _ := bHandle.GetItem(ctx, "k", "")
		return !ok
	})

	// a's own Put must survive its own backplane echo: the Change event it
	// just published loops back to its own subscription (every transport
	// here delivers to the publisher too), and by the time b's stale copy
	// above has been evicted that echo has necessarily already been
	// delivered and must have been dropped as self-originated.
	got, ok, err := aHandle.GetItem(ctx, "k", "")
	if err != nil || !ok {
		t.Fatalf("a's own write should not be evicted by its own echoed Change event: ok=%v err=%v", ok, err)
	}
	if got.Value != "fresh-on-a" {
		t.Fatalf("got %q want fresh-on-a", got.Value)
	}
}

func TestBackplaneReconcilesRemoteClear(t *testing.T) {
	ctx := context.Background()
	bp := local.New()
	t.Cleanup(func() { _ = bp.Close(ctx) })

	aHandle := memory.New[string](handle.Configuration{Name: "a"})
	a, err := New(Options[string]{Name: "a", Handles: []handle.Handle[string]{aHandle}, Backplane: bp})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close(ctx) })

	bHandle := memory.New[string](handle.Configuration{Name: "b"})
	b, err := New(Options[string]{Name: "b", Handles: []handle.Handle[string]{bHandle}, Backplane: bp})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close(ctx) })

	if _, err := bHandle.Add(ctx, mustItem(t, "k1", "", "v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := bHandle.Add(ctx, mustItem(t, "k2", "", "v2")); err != nil {
		t.Fatal(err)
	}

	if err := a.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, ok1, _ := bHandle.GetItem(ctx, "k1", "")
		_, ok2, _ := bHandle.GetItem(ctx, "k2", "")
		return !ok1 && !ok2
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
