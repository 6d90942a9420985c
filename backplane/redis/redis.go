// Package redis provides a Redis Pub/Sub Backplane. Grounded on
// liyanze888-comprehensive-study's RedisSyncProvider (Publish/Subscribe
// over a single channel, JSON-encoded events, a subscription goroutine
// reading pubsub.Channel()) and the teacher's Redis provider's client
// lifecycle conventions (CloseClient ownership flag, errors.Is against
// goredis.ErrClosed).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coordcache/coordcache/backplane"
)

var ErrNilClient = errors.New("backplane/redis: nil client")

// wireEvent is the JSON envelope published on the channel. Kept separate
// from backplane.Event so the wire shape can evolve independently of the
// in-process type.
type wireEvent struct {
	Kind     int    `json:"kind"`
	Key      string `json:"key,omitempty"`
	Region   string `json:"region,omitempty"`
	Action   int    `json:"action,omitempty"`
	SourceID string `json:"source_id"`
}

// Config configures the Redis backplane.
type Config struct {
	Client      goredis.UniversalClient
	Channel     string // required
	CloseClient bool   // set true only if this backplane exclusively owns the client
}

// Backplane publishes and subscribes to a single Redis Pub/Sub channel.
type Backplane struct {
	rdb         goredis.UniversalClient
	channel     string
	closeClient bool

	pubsub *goredis.PubSub
}

var _ backplane.Backplane = (*Backplane)(nil)

// New constructs a Redis-backed backplane. The channel is shared by every
// coordinator instance that should see each other's invalidations.
func New(cfg Config) (*Backplane, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("backplane/redis: channel is required")
	}
	return &Backplane{
		rdb:         cfg.Client,
		channel:     cfg.Channel,
		closeClient: cfg.CloseClient,
	}, nil
}

func (b *Backplane) publish(ctx context.Context, e backplane.Event) error {
	we := wireEvent{
		Kind:     int(e.Kind),
		Key:      e.Key,
		Region:   e.Region,
		Action:   int(e.Action),
		SourceID: e.SourceID,
	}
	data, err := json.Marshal(we)
	if err != nil {
		return fmt.Errorf("backplane/redis: marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

func (b *Backplane) NotifyChange(ctx context.Context, key, region string, action backplane.Action, sourceID string) error {
	return b.publish(ctx, backplane.ChangeEvent(key, region, action, sourceID))
}

func (b *Backplane) NotifyRemove(ctx context.Context, key, region, sourceID string) error {
	return b.publish(ctx, backplane.RemoveEvent(key, region, sourceID))
}

func (b *Backplane) NotifyClear(ctx context.Context, sourceID string) error {
	return b.publish(ctx, backplane.ClearEvent(sourceID))
}

func (b *Backplane) NotifyClearRegion(ctx context.Context, region, sourceID string) error {
	return b.publish(ctx, backplane.ClearRegionEvent(region, sourceID))
}

// Subscribe starts a goroutine reading the channel until ctx is canceled.
// Redis pub/sub delivers every publish to every subscribed connection,
// including the one that published it, so fn receives this process's own
// events back unfiltered. The coordinator drops them by comparing
// Event.SourceID against its own identity in onBackplaneEvent.
func (b *Backplane) Subscribe(ctx context.Context, fn func(backplane.Event)) error {
	b.pubsub = b.rdb.Subscribe(ctx, b.channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("backplane/redis: subscribe: %w", err)
	}

	ch := b.pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var we wireEvent
				if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
					continue // malformed payload from a foreign publisher; drop
				}
				fn(backplane.Event{
					Kind:     backplane.EventKind(we.Kind),
					Key:      we.Key,
					Region:   we.Region,
					Action:   backplane.Action(we.Action),
					SourceID: we.SourceID,
				})
			}
		}
	}()
	return nil
}

// Close releases the pubsub subscription and, only when this backplane
// owns the client, the underlying Redis client. Safe to call multiple
// times.
func (b *Backplane) Close(context.Context) error {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
