// Package backplane defines the cross-process pub/sub transport the
// coordinator uses to fan out change/remove/clear notifications. Concrete
// transports (redis, local) are external collaborators per the spec; the
// coordinator only depends on this interface.
package backplane

import "context"

// Action classifies a Change event's origin operation.
type Action int

const (
	ActionAdd Action = iota
	ActionPut
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "Add"
	case ActionPut:
		return "Put"
	case ActionUpdate:
		return "Update"
	default:
		return "Unknown"
	}
}

// EventKind tags the closed set of inbound/outbound backplane events.
type EventKind int

const (
	EventChange EventKind = iota
	EventRemove
	EventClear
	EventClearRegion
)

// Event is the sum type carried over the backplane:
//
//	Change{Key, Region, Action}  | Remove{Key, Region} | Clear | ClearRegion{Region}
//
// Only the fields relevant to Kind are meaningful.
type Event struct {
	Kind   EventKind
	Key    string
	Region string
	Action Action

	// SourceID identifies the publishing coordinator instance. Every
	// transport loops a publish back to every subscriber, including the
	// publisher's own subscription (Redis pub/sub delivers to the
	// publishing connection same as any other; backplane/local fans out to
	// every subscriber without exception), so the coordinator drops any
	// inbound event whose SourceID matches its own in onBackplaneEvent.
	SourceID string
}

func ChangeEvent(key, region string, action Action, sourceID string) Event {
	return Event{Kind: EventChange, Key: key, Region: region, Action: action, SourceID: sourceID}
}

func RemoveEvent(key, region, sourceID string) Event {
	return Event{Kind: EventRemove, Key: key, Region: region, SourceID: sourceID}
}

func ClearEvent(sourceID string) Event {
	return Event{Kind: EventClear, SourceID: sourceID}
}

func ClearRegionEvent(region, sourceID string) Event {
	return Event{Kind: EventClearRegion, Region: region, SourceID: sourceID}
}

// Backplane is a process-wide pub/sub channel. Publish calls are
// non-blocking with respect to other publishes but may be rate-limited by
// the transport; Subscribe delivers events to fn from a background
// goroutine the transport owns until ctx is canceled or Close is called.
//
// Every Notify* call carries sourceID, the identity of the coordinator
// publishing it; transports stamp it onto the outgoing Event verbatim so a
// subscriber on the same sourceID can recognize and drop its own echo.
type Backplane interface {
	NotifyChange(ctx context.Context, key, region string, action Action, sourceID string) error
	NotifyRemove(ctx context.Context, key, region, sourceID string) error
	NotifyClear(ctx context.Context, sourceID string) error
	NotifyClearRegion(ctx context.Context, region, sourceID string) error

	// Subscribe registers fn for every inbound event and returns once the
	// subscription is active. fn is called from a transport-owned
	// goroutine; it must not block indefinitely.
	Subscribe(ctx context.Context, fn func(Event)) error

	Close(ctx context.Context) error
}
