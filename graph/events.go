package graph

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EventKind names a structural change to the graph.
type EventKind string

const (
	// EventRelationshipAdded is dispatched after an edge is created.
	EventRelationshipAdded EventKind = "relationship.added"
	// EventRelationshipDeleted is dispatched after an edge is deleted.
	EventRelationshipDeleted EventKind = "relationship.deleted"
)

// Event is an immutable record of one structural change. Node is the
// origin of the mutation, Other the far endpoint, NodeLabel the origin's
// label at mutation time.
type Event struct {
	ID        int64     `json:"id"`
	Kind      EventKind `json:"kind"`
	Node      NodeRef   `json:"node"`
	Other     NodeRef   `json:"other"`
	NodeLabel string    `json:"node_label"`
	RelType   string    `json:"rel_type"`
	At        time.Time `json:"at"`
}

// Listener receives dispatched events. A non-nil error aborts the
// surrounding transaction.
type Listener func(ctx context.Context, ev Event) error

type subscription struct {
	id    int64
	label string
	fn    Listener
}

// Dispatcher fans events out to explicitly registered listeners.
// Dispatch is synchronous and runs inside the mutating transaction, so a
// failing listener rolls the mutation back.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID int64
	subs   []subscription
}

// NewDispatcher creates a dispatcher with no listeners.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers fn for events whose origin node carries label. The
// empty label matches every event. Listeners run in registration order.
// The returned func removes the subscription.
func (d *Dispatcher) Subscribe(label string, fn Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, label: label, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// dispatch delivers ev to matching listeners. The first listener error
// stops delivery and propagates to the mutation that raised the event.
func (d *Dispatcher) dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, s := range subs {
		if s.label != "" && s.label != ev.NodeLabel {
			continue
		}
		if err := s.fn(ctx, ev); err != nil {
			return fmt.Errorf("event listener: %w", err)
		}
	}
	return nil
}
