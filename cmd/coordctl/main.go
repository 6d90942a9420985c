// Command coordctl exercises a coordcache.Coordinator from the shell: wire
// an in-process tier (ristretto) over a distributed one (redis, optional),
// then get/put/remove a key, print the coordinator's configuration
// (-op=stats; per-handle counters are not printed), or run a concurrent
// put/get bench. Mirrors the teacher's
// package-as-library-first posture: this is a thin operator tool, not the
// product surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/coordcache/coordcache"
	"github.com/coordcache/coordcache/codec"
	"github.com/coordcache/coordcache/handle"
	"github.com/coordcache/coordcache/handle/memory"
	"github.com/coordcache/coordcache/handle/redis"
	"github.com/coordcache/coordcache/handle/ristretto"
)

func main() {
	var (
		op         = flag.String("op", "get", "get|put|remove|stats|bench")
		namespace  = flag.String("namespace", "coordctl", "handle namespace")
		key        = flag.String("key", "", "cache key")
		region     = flag.String("region", "", "cache region (optional)")
		value      = flag.String("value", "", "value to put")
		redisAddr  = flag.String("redis", "", "redis address (host:port); empty disables the distributed tier")
		bottomOnly = flag.Bool("bottom-only", false, "skip the ristretto tier, use redis (or memory) alone")
		concurrent = flag.Int("n", 8, "concurrency for -op=bench")
	)
	flag.Parse()

	coord, closeFn, err := buildCoordinator(*namespace, *redisAddr, *bottomOnly)
	if err != nil {
		log.Fatalf("coordctl: %v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch *op {
	case "get":
		requireKey(*key)
		v, ok, err := coord.Get(ctx, *key, *region)
		fatalIf(err)
		if !ok {
			fmt.Println("(miss)")
			return
		}
		fmt.Println(v)

	case "put":
		requireKey(*key)
		it, err := coordcache.NewDefaultItem[string](*key, *region, *value)
		fatalIf(err)
		fatalIf(coord.Put(ctx, it))
		fmt.Println("ok")

	case "remove":
		requireKey(*key)
		ok, err := coord.Remove(ctx, *key, *region)
		fatalIf(err)
		fmt.Println(ok)

	case "stats":
		printStats(coord)

	case "bench":
		runBench(ctx, coord, *namespace, *concurrent)

	default:
		log.Fatalf("coordctl: unknown -op %q", *op)
	}
}

func buildCoordinator(namespace, redisAddr string, bottomOnly bool) (*coordcache.Coordinator[string], func(), error) {
	jsonCodec := codec.JSONCodec[string]{}

	bottomCfg := handle.Configuration{
		Name:              "bottom",
		IsBackplaneSource: redisAddr != "",
		IsDistributed:     redisAddr != "",
	}

	var bottom handle.Handle[string]
	var client goredis.UniversalClient
	if redisAddr != "" {
		client = goredis.NewClient(&goredis.Options{Addr: redisAddr})
		rh, err := redis.New[string](redis.Config[string]{
			Namespace:   namespace,
			Codec:       jsonCodec,
			Client:      client,
			CloseClient: true,
			VersionTTL:  24 * time.Hour,
			Handle:      bottomCfg,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build redis handle: %w", err)
		}
		bottom = rh
	} else {
		bottom = memory.New[string](bottomCfg)
	}

	handles := []handle.Handle[string]{bottom}
	if !bottomOnly {
		top, err := ristretto.New[string](ristretto.Config[string]{
			Namespace:   namespace,
			Codec:       jsonCodec,
			NumCounters: 10_000,
			MaxCost:     1 << 20,
			BufferItems: 64,
			Handle:      handle.Configuration{Name: "top"},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build ristretto handle: %w", err)
		}
		handles = []handle.Handle[string]{top, bottom}
	}

	coord, err := coordcache.New(coordcache.Options[string]{
		Name:       namespace,
		Handles:    handles,
		MaxRetries: 3,
		UpdateMode: coordcache.UpdateModeUp,
	})
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := coord.Close(ctx); err != nil {
			log.Printf("coordctl: close: %v", err)
		}
	}
	return coord, closeFn, nil
}

func printStats(coord *coordcache.Coordinator[string]) {
	cfg := coord.Configuration()
	fmt.Printf("name=%s handles=%d max_retries=%d update_mode=%s backplane=%v\n",
		cfg.Name, cfg.HandleCount, cfg.MaxRetries, cfg.UpdateMode, cfg.HasBackplane)
}

// runBench fans N concurrent put-then-get round trips across the
// coordinator via an errgroup, reporting how many failed.
func runBench(ctx context.Context, coord *coordcache.Coordinator[string], namespace string, n int) {
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			k := fmt.Sprintf("%s-bench-%d", namespace, i)
			it, err := coordcache.NewDefaultItem[string](k, "", fmt.Sprintf("value-%d", i))
			if err != nil {
				return err
			}
			if err := coord.Put(ctx, it); err != nil {
				return err
			}
			_, ok, err := coord.Get(ctx, k, "")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bench: key %q vanished immediately after Put", k)
			}
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("bench: %d ops in %s, error: %v\n", n, elapsed, err)
		os.Exit(1)
	}
	fmt.Printf("bench: %d ops in %s\n", n, elapsed)
}

func requireKey(key string) {
	if strings.TrimSpace(key) == "" {
		log.Fatal("coordctl: -key is required")
	}
}

func fatalIf(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("coordctl: %v", err)
	}
}
