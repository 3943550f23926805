package journal

import (
	"context"
	"fmt"
	"time"

	"lattice.dev/lattice/common/id"
)

// Delivery is one webhook delivery attempt.
type Delivery struct {
	ID             int64     `json:"id"`
	SubscriptionID int64     `json:"subscription_id"`
	EventID        int64     `json:"event_id"`
	Attempt        int       `json:"attempt"`
	StatusCode     *int      `json:"status_code,omitempty"`
	Error          *string   `json:"error,omitempty"`
	DeliveredAt    time.Time `json:"delivered_at"`
}

// DeliveryStore records webhook delivery attempts.
type DeliveryStore struct {
	q Querier
}

func NewDeliveryStore(q Querier) *DeliveryStore {
	return &DeliveryStore{q: q}
}

// Record inserts one attempt. statusCode is nil when the request never
// reached the endpoint; errMsg is nil on success.
func (s *DeliveryStore) Record(ctx context.Context, subID, eventID int64, attempt int, statusCode *int, errMsg *string) (*Delivery, error) {
	d := Delivery{
		ID:             id.New(),
		SubscriptionID: subID,
		EventID:        eventID,
		Attempt:        attempt,
		StatusCode:     statusCode,
		Error:          errMsg,
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO webhook_deliveries (id, subscription_id, event_id, attempt, status_code, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING delivered_at
	`, d.ID, d.SubscriptionID, d.EventID, d.Attempt, d.StatusCode, d.Error).Scan(&d.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("recording delivery: %w", err)
	}
	return &d, nil
}

// ListBySubscription returns the newest attempts for one subscription.
func (s *DeliveryStore) ListBySubscription(ctx context.Context, subID int64, limit int32) ([]Delivery, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, subscription_id, event_id, attempt, status_code, error, delivered_at
		FROM webhook_deliveries
		WHERE subscription_id = $1
		ORDER BY delivered_at DESC
		LIMIT $2
	`, subID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries for subscription %d: %w", subID, err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventID, &d.Attempt, &d.StatusCode, &d.Error, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scanning delivery row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading delivery rows: %w", err)
	}
	return out, nil
}
