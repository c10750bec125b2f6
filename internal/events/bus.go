// Package events provides an in-process publish/subscribe bus for pipeline
// notifications. Publishing never blocks the publisher; a subscriber whose
// buffer is full misses the event.
package events

import (
	"sync"
	"time"
)

// Kind names an event family.
type Kind string

// Event kinds emitted by the pipeline.
const (
	KindAdvisoryIngested  Kind = "advisory.ingested"
	KindForecastUpdated   Kind = "forecast.updated"
	KindZonesUpdated      Kind = "zones.updated"
	KindStormStatusChange Kind = "storm.status_changed"
	KindTaskOverrun       Kind = "task.overrun"
)

// Event is one pipeline notification. Payload fields are kind-specific and
// kept flat so subscribers need no type switches.
type Event struct {
	Kind      Kind
	StormCode string
	AtUTC     time.Time
	Detail    map[string]any
}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Bus fans events out to subscribers. The zero value is not usable; call
// NewBus.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]subscription
	next int
}

type subscription struct {
	ch    chan Event
	kinds map[Kind]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers interest in the given kinds (all kinds when none are
// given) and returns the receive channel plus a cancel function. Cancel
// closes the channel.
func (b *Bus) Subscribe(kinds ...Kind) (<-chan Event, func()) {
	sub := subscription{ch: make(chan Event, subscriberBuffer)}

	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		stored, ok := b.subs[id]
		if !ok {
			return
		}

		delete(b.subs, id)
		close(stored.ch)
	}

	return sub.ch, cancel
}

// Publish delivers the event to every matching subscriber without blocking.
// Events are dropped for subscribers that cannot keep up.
func (b *Bus) Publish(evt Event) {
	if evt.AtUTC.IsZero() {
		evt.AtUTC = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.kinds != nil {
			if _, ok := sub.kinds[evt.Kind]; !ok {
				continue
			}
		}

		select {
		case sub.ch <- evt:
		default:
		}
	}
}
