// Package worker delivers journaled graph events to webhook
// subscribers: it drains the event stream through a consumer group,
// POSTs each event to every matching subscription, records the
// attempts, and retries or dead-letters failures.
package worker

import (
	"context"

	"lattice.dev/lattice/internal/journal"
	"lattice.dev/lattice/internal/stream"
)

// Source is the consumer-group side of the event stream.
type Source interface {
	Read(ctx context.Context) ([]stream.Message, error)
	Ack(ctx context.Context, msg stream.Message) error
	Requeue(ctx context.Context, msg stream.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg stream.Message, errMsg string) error
	MaxAttempts() int
}

// SubscriptionLister loads the subscriptions a delivery fan-out
// considers.
type SubscriptionLister interface {
	ListEnabled(ctx context.Context) ([]journal.Subscription, error)
}

// DeliveryRecorder persists one delivery attempt.
type DeliveryRecorder interface {
	Record(ctx context.Context, subID, eventID int64, attempt int, statusCode *int, errMsg *string) (*journal.Delivery, error)
}

// Sender performs the webhook POST itself.
type Sender interface {
	Send(ctx context.Context, sub journal.Subscription, msg stream.Message) (statusCode int, err error)
}
