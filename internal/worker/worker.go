package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lattice.dev/lattice/internal/metrics"
	"lattice.dev/lattice/internal/stream"
)

type Worker struct {
	source     Source
	subs       SubscriptionLister
	deliveries DeliveryRecorder
	sender     Sender

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(source Source, subs SubscriptionLister, deliveries DeliveryRecorder, sender Sender) *Worker {
	return &Worker{
		source:     source,
		subs:       subs,
		deliveries: deliveries,
		sender:     sender,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "delivery worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "delivery worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		w.processMessageSafe(ctx, msg)
	}
	return nil
}

// processMessageSafe delivers one message and settles it: ack on
// success, requeue while attempts remain, DLQ afterwards. A panic in
// delivery counts as a failure instead of killing the loop.
func (w *Worker) processMessageSafe(ctx context.Context, msg stream.Message) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "panic recovered in delivery",
					"panic", r,
					"message_id", msg.ID,
					"event_id", msg.Event.ID)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = w.ProcessMessage(ctx, msg)
	}()

	if err == nil {
		if ackErr := w.source.Ack(ctx, msg); ackErr != nil {
			slog.ErrorContext(ctx, "failed to ack message", "error", ackErr, "message_id", msg.ID)
		}
		return
	}

	slog.ErrorContext(ctx, "delivery failed",
		"error", err,
		"message_id", msg.ID,
		"event_id", msg.Event.ID,
		"attempt", msg.Attempt)

	if msg.Attempt >= w.source.MaxAttempts() {
		if dlqErr := w.source.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to dead-letter message", "error", dlqErr, "message_id", msg.ID)
		}
		return
	}
	if rqErr := w.source.Requeue(ctx, msg, err.Error()); rqErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", rqErr, "message_id", msg.ID)
	}
}

// ProcessMessage fans one event out to every matching subscription and
// records each attempt. It fails when any matching delivery fails, so a
// retry re-posts to every matching subscriber; endpoints dedup on the
// event id header.
func (w *Worker) ProcessMessage(ctx context.Context, msg stream.Message) error {
	subs, err := w.subs.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}

	var failures []string
	delivered := 0
	for _, sub := range subs {
		if !sub.Matches(msg.Event) {
			continue
		}

		statusCode, sendErr := w.sender.Send(ctx, sub, msg)

		var codePtr *int
		if statusCode != 0 {
			codePtr = &statusCode
		}
		var errPtr *string
		outcome := "success"
		if sendErr != nil {
			s := sendErr.Error()
			errPtr = &s
			outcome = "failure"
			failures = append(failures, fmt.Sprintf("subscription %d: %s", sub.ID, s))
		} else {
			delivered++
		}
		metrics.WebhookDeliveries.WithLabelValues(outcome).Inc()

		if _, recErr := w.deliveries.Record(ctx, sub.ID, msg.Event.ID, msg.Attempt, codePtr, errPtr); recErr != nil {
			slog.ErrorContext(ctx, "failed to record delivery",
				"error", recErr,
				"subscription_id", sub.ID,
				"event_id", msg.Event.ID)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("delivering event %d: %s", msg.Event.ID, strings.Join(failures, "; "))
	}

	if delivered > 0 {
		slog.InfoContext(ctx, "event delivered",
			"event_id", msg.Event.ID,
			"subscriptions", delivered)
	}
	return nil
}
