package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/graph"
)

// Subscription is one webhook endpoint interested in graph events.
// Empty Kind or NodeLabel means "any".
type Subscription struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind,omitempty"`
	NodeLabel string    `json:"node_label,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Matches reports whether the subscription wants ev.
func (s Subscription) Matches(ev graph.Event) bool {
	if !s.Enabled {
		return false
	}
	if s.Kind != "" && s.Kind != string(ev.Kind) {
		return false
	}
	if s.NodeLabel != "" && s.NodeLabel != ev.NodeLabel {
		return false
	}
	return true
}

// SubscriptionStore reads and writes the webhook_subscriptions table.
type SubscriptionStore struct {
	q Querier
}

func NewSubscriptionStore(q Querier) *SubscriptionStore {
	return &SubscriptionStore{q: q}
}

func (s *SubscriptionStore) Create(ctx context.Context, url, kind, nodeLabel string) (*Subscription, error) {
	sub := Subscription{
		ID:        id.New(),
		URL:       url,
		Kind:      kind,
		NodeLabel: nodeLabel,
		Enabled:   true,
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO webhook_subscriptions (id, url, kind, node_label, enabled)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING created_at
	`, sub.ID, sub.URL, sub.Kind, sub.NodeLabel).Scan(&sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}
	return &sub, nil
}

func (s *SubscriptionStore) Get(ctx context.Context, subID int64) (*Subscription, error) {
	var sub Subscription
	err := s.q.QueryRow(ctx, `
		SELECT id, url, kind, node_label, enabled, created_at
		FROM webhook_subscriptions
		WHERE id = $1
	`, subID).Scan(&sub.ID, &sub.URL, &sub.Kind, &sub.NodeLabel, &sub.Enabled, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading subscription %d: %w", subID, err)
	}
	return &sub, nil
}

func (s *SubscriptionStore) List(ctx context.Context) ([]Subscription, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, url, kind, node_label, enabled, created_at
		FROM webhook_subscriptions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListEnabled returns every enabled subscription; the worker filters by
// Matches per event.
func (s *SubscriptionStore) ListEnabled(ctx context.Context) ([]Subscription, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, url, kind, node_label, enabled, created_at
		FROM webhook_subscriptions
		WHERE enabled
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing enabled subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *SubscriptionStore) Delete(ctx context.Context, subID int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, subID)
	if err != nil {
		return fmt.Errorf("deleting subscription %d: %w", subID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscriptions(rows pgx.Rows) ([]Subscription, error) {
	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.Kind, &sub.NodeLabel, &sub.Enabled, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading subscription rows: %w", err)
	}
	return subs, nil
}
