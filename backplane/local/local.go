// Package local provides an in-process Backplane for single-process demos
// and tests: every publish is offered to every subscriber (including within
// the same process); a subscriber whose queue is full misses that event.
// Grounded on the teacher's hooks/async bounded-queue,
// drop-on-full dispatch loop, generalized from "hook callback" to
// "backplane event".
package local

import (
	"context"
	"sync"

	"github.com/coordcache/coordcache/backplane"
)

// Backplane fans events out to subscribers over a bounded queue per
// subscriber; a slow subscriber drops events rather than blocking
// publishers.
type Backplane struct {
	mu   sync.RWMutex
	subs []*subscriber
	once sync.Once
}

type subscriber struct {
	q    chan backplane.Event
	done chan struct{}
}

var _ backplane.Backplane = (*Backplane)(nil)

// New returns a ready-to-use in-process backplane.
func New() *Backplane {
	return &Backplane{}
}

func (b *Backplane) publish(e backplane.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.q <- e:
		default: // drop; subscriber too slow
		}
	}
}

func (b *Backplane) NotifyChange(_ context.Context, key, region string, action backplane.Action, sourceID string) error {
	b.publish(backplane.ChangeEvent(key, region, action, sourceID))
	return nil
}

func (b *Backplane) NotifyRemove(_ context.Context, key, region, sourceID string) error {
	b.publish(backplane.RemoveEvent(key, region, sourceID))
	return nil
}

func (b *Backplane) NotifyClear(_ context.Context, sourceID string) error {
	b.publish(backplane.ClearEvent(sourceID))
	return nil
}

func (b *Backplane) NotifyClearRegion(_ context.Context, region, sourceID string) error {
	b.publish(backplane.ClearRegionEvent(region, sourceID))
	return nil
}

func (b *Backplane) Subscribe(ctx context.Context, fn func(backplane.Event)) error {
	s := &subscriber{q: make(chan backplane.Event, 256), done: make(chan struct{})}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case e := <-s.q:
				fn(e)
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Close stops all subscriber goroutines. Safe to call multiple times.
func (b *Backplane) Close(_ context.Context) error {
	b.once.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, s := range b.subs {
			close(s.done)
		}
		b.subs = nil
	})
	return nil
}
