package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so handlers and workers annotate once and
// every log statement downstream carries the node/relationship being operated on.
type LogFields struct {
	NodeRef        *string // ref of the node an operation is anchored on
	RelType        *string // relationship type in play
	EventID        *int64  // graph event ID
	SubscriptionID *int64  // webhook subscription ID
	MessageID      *string // Redis stream message ID
	Component      string  // component name (e.g., "lattice.worker.delivery")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.NodeRef != nil {
		result.NodeRef = new.NodeRef
	}
	if new.RelType != nil {
		result.RelType = new.RelType
	}
	if new.EventID != nil {
		result.EventID = new.EventID
	}
	if new.SubscriptionID != nil {
		result.SubscriptionID = new.SubscriptionID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{NodeRef: logger.Ptr(ref)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like queries or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
