package service

import (
	"context"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/journal"
)

// EventService serves the journal's read side.
type EventService interface {
	ListRecent(ctx context.Context, limit int32) ([]graph.Event, error)
	ListByNode(ctx context.Context, node graph.NodeRef, limit int32) ([]graph.Event, error)
}

type eventService struct {
	events *journal.EventStore
}

func NewEventService(events *journal.EventStore) EventService {
	return &eventService{events: events}
}

func (s *eventService) ListRecent(ctx context.Context, limit int32) ([]graph.Event, error) {
	return s.events.ListRecent(ctx, clampLimit(limit))
}

func (s *eventService) ListByNode(ctx context.Context, node graph.NodeRef, limit int32) ([]graph.Event, error) {
	return s.events.ListByNode(ctx, node, clampLimit(limit))
}

func clampLimit(limit int32) int32 {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// SubscriptionService manages webhook subscriptions and exposes their
// delivery history.
type SubscriptionService interface {
	Create(ctx context.Context, url, kind, nodeLabel string) (*journal.Subscription, error)
	Get(ctx context.Context, id int64) (*journal.Subscription, error)
	List(ctx context.Context) ([]journal.Subscription, error)
	Delete(ctx context.Context, id int64) error
	Deliveries(ctx context.Context, id int64, limit int32) ([]journal.Delivery, error)
}

type subscriptionService struct {
	subs       *journal.SubscriptionStore
	deliveries *journal.DeliveryStore
}

func NewSubscriptionService(subs *journal.SubscriptionStore, deliveries *journal.DeliveryStore) SubscriptionService {
	return &subscriptionService{subs: subs, deliveries: deliveries}
}

func (s *subscriptionService) Create(ctx context.Context, url, kind, nodeLabel string) (*journal.Subscription, error) {
	return s.subs.Create(ctx, url, kind, nodeLabel)
}

func (s *subscriptionService) Get(ctx context.Context, id int64) (*journal.Subscription, error) {
	return s.subs.Get(ctx, id)
}

func (s *subscriptionService) List(ctx context.Context) ([]journal.Subscription, error) {
	return s.subs.List(ctx)
}

func (s *subscriptionService) Delete(ctx context.Context, id int64) error {
	return s.subs.Delete(ctx, id)
}

func (s *subscriptionService) Deliveries(ctx context.Context, id int64, limit int32) ([]journal.Delivery, error) {
	if _, err := s.subs.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.deliveries.ListBySubscription(ctx, id, clampLimit(limit))
}
