package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"lattice.dev/lattice/graph"
)

// Publisher appends graph events to the stream.
type Publisher interface {
	Publish(ctx context.Context, ev graph.Event) error
	Close() error
}

type redisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) Publisher {
	return &redisPublisher{client: client, stream: stream}
}

func (p *redisPublisher) Publish(ctx context.Context, ev graph.Event) error {
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: eventValues(ev, 1),
	}).Err(); err != nil {
		return fmt.Errorf("publishing event %d: %w", ev.ID, err)
	}

	slog.DebugContext(ctx, "event published",
		"event_id", ev.ID,
		"kind", string(ev.Kind),
		"rel_type", ev.RelType,
		"stream", p.stream)
	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

// Listener returns a graph listener that publishes every event to the
// stream. Publish runs inside the mutation's guard, so a stream outage
// aborts the mutation rather than dropping events silently.
func Listener(p Publisher) graph.Listener {
	return func(ctx context.Context, ev graph.Event) error {
		return p.Publish(ctx, ev)
	}
}
