package bytehandle_test

import (
	"context"
	"testing"
	"time"

	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/genstore"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/bytehandle"
	bcprovider "github.com/coordcache/coordcache/provider/bigcache"
	"github.com/coordcache/coordcache/item"
)

func newTestHandle(t *testing.T) *bytehandle.Handle[string] {
	t.Helper()
	p, err := bcprovider.New(bcprovider.Config{LifeWindow: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	h := bytehandle.New[string](bytehandle.Config[string]{
		Namespace: "test",
		Provider:  p,
		Codec:     codec.JSONCodec[string]{},
		Versions:  genstore.NewLocalGenStore(0, 0),
		Handle:    handle.Configuration{Name: "bytehandle-test"},
	})
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func mustItem(t *testing.T, key, region, value string) item.CacheItem[string] {
	t.Helper()
	it, err := item.NewDefault(key, region, value)
	if err != nil {
		t.Fatal(err)
	}
	return it
}

func TestAddThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	ok, err := h.Add(ctx, mustItem(t, "k", "", "v"))
	if err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}

	got, ok, err := h.GetItem(ctx, "k", "")
	if err != nil || !ok {
		t.Fatalf("GetItem: ok=%v err=%v", ok, err)
	}
	if got.Value != "v" {
		t.Fatalf("value=%q want v", got.Value)
	}
}

func TestAddFailsWhenKeyAlreadyPresent(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	if ok, err := h.Add(ctx, mustItem(t, "k", "", "v1")); err != nil || !ok {
		t.Fatalf("first Add: ok=%v err=%v", ok, err)
	}
	if ok, err := h.Add(ctx, mustItem(t, "k", "", "v2")); err != nil || ok {
		t.Fatalf("second Add should fail since the key already exists: ok=%v err=%v", ok, err)
	}
}

func TestClearBumpsEpochAndStaleEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	if _, err := h.Add(ctx, mustItem(t, "k", "", "v")); err != nil {
		t.Fatal(err)
	}
	if err := h.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := h.GetItem(ctx, "k", ""); err != nil || ok {
		t.Fatalf("entry written before Clear should read as a miss: ok=%v err=%v", ok, err)
	}

	// Clear must not poison future writes under the same key.
	if ok, err := h.Add(ctx, mustItem(t, "k", "", "v2")); err != nil || !ok {
		t.Fatalf("Add after Clear: ok=%v err=%v", ok, err)
	}
	got, ok, err := h.GetItem(ctx, "k", "")
	if err != nil || !ok || got.Value != "v2" {
		t.Fatalf("got=%+v ok=%v err=%v", got, ok, err)
	}
}

func TestClearRegionOnlyAffectsThatRegion(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	if err := h.Put(ctx, mustItem(t, "a", "r1", "1")); err != nil {
		t.Fatal(err)
	}
	if err := h.Put(ctx, mustItem(t, "b", "r2", "2")); err != nil {
		t.Fatal(err)
	}

	if err := h.ClearRegion(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := h.GetItem(ctx, "a", "r1"); ok {
		t.Fatal("r1/a should have been cleared")
	}
	if _, ok, err := h.GetItem(ctx, "b", "r2"); err != nil || !ok {
		t.Fatalf("r2/b should survive ClearRegion(r1): ok=%v err=%v", ok, err)
	}
}

func TestUpdateRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	if _, err := h.Add(ctx, mustItem(t, "k", "", "0")); err != nil {
		t.Fatal(err)
	}

	calls := 0
	res, err := h.Update(ctx, "k", "", func(string) (string, bool) {
		calls++
		if calls == 1 {
			// A concurrent writer bumps k's version between Update's read and its commit.
			if err := h.Put(ctx, mustItem(t, "k", "", "concurrent")); err != nil {
				t.Fatal(err)
			}
		}
		return "1", true
	}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != handle.UpdateSuccess {
		t.Fatalf("Kind=%v want UpdateSuccess", res.Kind)
	}
	if res.NewItem.Value != "1" {
		t.Fatalf("value=%q want 1", res.NewItem.Value)
	}
	if !res.VersionConflictOccurred || res.TriesNeeded != 2 {
		t.Fatalf("conflict=%v tries=%d want true, 2", res.VersionConflictOccurred, res.TriesNeeded)
	}
}

func TestUpdateOnMissingKeyReportsItemDidNotExist(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	res, err := h.Update(ctx, "missing", "", func(string) (string, bool) { return "x", true }, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != handle.UpdateItemDidNotExist {
		t.Fatalf("Kind=%v want UpdateItemDidNotExist", res.Kind)
	}
}
