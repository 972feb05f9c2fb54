// Copyright (c) 2023 BVK Chaitanya

// Package events implements the structured event stream emitted by the
// trading bots and consumed by the notification layer. The dispatcher
// is passed around explicitly; there is no process-wide event singleton.
package events

import (
	"time"

	"github.com/bvk/accumbot/clock"
	"github.com/bvkgo/topic"
)

// Event is one structured occurrence: a name, the instant it was
// dispatched and free-form arguments. Consumers must not modify Args.
type Event struct {
	Name string
	Time time.Time
	Args map[string]any
}

// Dispatcher fans events out to all subscribed consumers. Slow
// consumers do not block dispatch.
type Dispatcher struct {
	clock clock.Clock

	topic *topic.Topic[*Event]
}

// NewDispatcher creates a dispatcher stamping events with the given
// clock.
func NewDispatcher(c clock.Clock) *Dispatcher {
	return &Dispatcher{
		clock: c,
		topic: topic.New[*Event](),
	}
}

// Close shuts the event stream down. Subscriber channels are closed.
func (d *Dispatcher) Close() {
	d.topic.Close()
}

// Dispatch publishes an event to all current subscribers.
func (d *Dispatcher) Dispatch(name string, args map[string]any) {
	d.topic.Send(&Event{
		Name: name,
		Time: d.clock.Now(),
		Args: args,
	})
}

// Subscribe returns a channel of future events and a stop function.
// The limit bounds the per-subscriber queue; zero means unbounded.
func (d *Dispatcher) Subscribe(limit int) (<-chan *Event, func()) {
	sub, ch, _ := d.topic.Subscribe(limit, false /* includeRecent */)
	return ch, sub.Unsubscribe
}
