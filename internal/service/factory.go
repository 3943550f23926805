package service

import (
	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/journal"
	"lattice.dev/lattice/internal/schema"
)

type Services struct {
	graphSvc GraphService
	events   EventService
	subs     SubscriptionService
}

type ServicesConfig struct {
	Graph      *graph.Graph
	Admin      graph.NodeAdmin
	Schema     *schema.Schema
	EngineName string

	Events        *journal.EventStore
	Subscriptions *journal.SubscriptionStore
	Deliveries    *journal.DeliveryStore
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		graphSvc: NewGraphService(cfg.Graph, cfg.Admin, cfg.Schema, cfg.EngineName),
		events:   NewEventService(cfg.Events),
		subs:     NewSubscriptionService(cfg.Subscriptions, cfg.Deliveries),
	}
}

func (s *Services) Graph() GraphService {
	return s.graphSvc
}

func (s *Services) Events() EventService {
	return s.events
}

func (s *Services) Subscriptions() SubscriptionService {
	return s.subs
}
