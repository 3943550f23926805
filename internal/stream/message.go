// Package stream carries graph events over a Redis stream: the server
// publishes each dispatched event, the delivery worker consumes them
// through a consumer group with ack, requeue, and dead-lettering.
package stream

import (
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lattice.dev/lattice/graph"
)

// Message is one stream entry: a graph event plus delivery bookkeeping.
type Message struct {
	ID      string
	Event   graph.Event
	Attempt int
	Raw     redis.XMessage
}

func eventValues(ev graph.Event, attempt int) map[string]any {
	return map[string]any{
		"event_id":   ev.ID,
		"kind":       string(ev.Kind),
		"node":       string(ev.Node),
		"other":      string(ev.Other),
		"node_label": ev.NodeLabel,
		"rel_type":   ev.RelType,
		"at":         ev.At.Format(time.RFC3339Nano),
		"attempt":    attempt,
	}
}

// ParseMessage decodes one raw stream entry.
func ParseMessage(msg redis.XMessage) (Message, error) {
	get := func(key string) (string, error) {
		v, ok := msg.Values[key]
		if !ok {
			return "", fmt.Errorf("message %s is missing %q", msg.ID, key)
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("message %s field %q is not a string", msg.ID, key)
		}
		return s, nil
	}

	rawID, err := get("event_id")
	if err != nil {
		return Message{}, err
	}
	eventID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("message %s has a bad event_id: %w", msg.ID, err)
	}

	kind, err := get("kind")
	if err != nil {
		return Message{}, err
	}
	node, err := get("node")
	if err != nil {
		return Message{}, err
	}
	other, err := get("other")
	if err != nil {
		return Message{}, err
	}
	relType, err := get("rel_type")
	if err != nil {
		return Message{}, err
	}

	m := Message{
		ID:      msg.ID,
		Attempt: 1,
		Raw:     msg,
		Event: graph.Event{
			ID:      eventID,
			Kind:    graph.EventKind(kind),
			Node:    graph.NodeRef(node),
			Other:   graph.NodeRef(other),
			RelType: relType,
		},
	}

	if label, ok := msg.Values["node_label"].(string); ok {
		m.Event.NodeLabel = label
	}
	if raw, ok := msg.Values["at"].(string); ok {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			m.Event.At = at
		}
	}
	if raw, ok := msg.Values["attempt"].(string); ok {
		if attempt, err := strconv.Atoi(raw); err == nil && attempt > 0 {
			m.Attempt = attempt
		}
	}
	return m, nil
}
