package coordcache

import (
	"context"
	"testing"
	"time"

	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/memory"
)

func TestExpireAbsoluteMakesItemStale(t *testing.T) {
	ctx := context.Background()
	bottom := memory.New[string](handle.Configuration{Name: "bottom"})
	coord, err := New(Options[string]{Name: "test", Handles: []handle.Handle[string]{bottom}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = coord.Close(ctx) })

	if err := coord.Put(ctx, mustItem(t, "k", "", "v")); err != nil {
		t.Fatal(err)
	}
	if err := coord.Expire(ctx, "k", "", ExpireAbsolute, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok, err := coord.GetItem(ctx, "k", ""); err != nil || ok {
		t.Fatalf("item should have expired: ok=%v err=%v", ok, err)
	}
}

func TestRemoveExpirationMakesItemLiveForever(t *testing.T) {
	ctx := context.Background()
	bottom := memory.New[string](handle.Configuration{Name: "bottom"})
	coord, err := New(Options[string]{Name: "test", Handles: []handle.Handle[string]{bottom}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = coord.Close(ctx) })

	it, err := NewItem[string]("k", "", "v", ExpireAbsolute, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := coord.Put(ctx, it); err != nil {
		t.Fatal(err)
	}
	if err := coord.RemoveExpiration(ctx, "k", ""); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok, err := coord.GetItem(ctx, "k", ""); err != nil || !ok {
		t.Fatalf("item should still be live after RemoveExpiration: ok=%v err=%v", ok, err)
	}
}

func TestExpireOnMissingKeyIsANoOp(t *testing.T) {
	ctx := context.Background()
	bottom := memory.New[string](handle.Configuration{Name: "bottom"})
	coord, err := New(Options[string]{Name: "test", Handles: []handle.Handle[string]{bottom}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = coord.Close(ctx) })

	if err := coord.Expire(ctx, "missing", "", ExpireAbsolute, time.Second); err != nil {
		t.Fatalf("Expire on a missing key should be a no-op, got %v", err)
	}
}

func TestExpireRejectsNonPositiveTimeoutForAbsoluteOrSliding(t *testing.T) {
	ctx := context.Background()
	bottom := memory.New[string](handle.Configuration{Name: "bottom"})
	coord, err := New(Options[string]{Name: "test", Handles: []handle.Handle[string]{bottom}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = coord.Close(ctx) })

	if err := coord.Put(ctx, mustItem(t, "k", "", "v")); err != nil {
		t.Fatal(err)
	}
	if err := coord.Expire(ctx, "k", "", ExpireAbsolute, 0); err == nil {
		t.Fatal("expected InvalidArgument for a non-positive absolute timeout")
	}
}
