package journal

import (
	"context"
	"fmt"

	"lattice.dev/lattice/graph"
)

// Listener returns a graph listener that appends every event to the
// journal. The append runs inside the mutation's guard but outside the
// graph engine's own transaction, so a mutation whose commit later fails
// can still leave a journal row; consumers dedup on the event id.
// An append failure aborts the mutation.
func Listener(store *EventStore) graph.Listener {
	return func(ctx context.Context, ev graph.Event) error {
		if err := store.Append(ctx, ev); err != nil {
			return fmt.Errorf("journaling event: %w", err)
		}
		return nil
	}
}
