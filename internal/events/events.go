// Package events is the notification gateway: it publishes order
// lifecycle events for real-time consumers (store dashboards, kitchen
// displays). Delivery is fire-and-forget with at-least-once semantics;
// the order core never rolls back on a publish failure.
package events

import (
	"context"
	"time"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

// Topics published by the gateway.
const (
	TypeOrderCreated = "order-created"
	TypeOrderUpdated = "order-updated"
)

// Event is one lifecycle notification, scoped per store.
type Event struct {
	Type        string
	StoreID     string
	OrderID     string
	OrderNumber string
	Status      order.Status
	Total       string
	OccurredAt  time.Time
}

// Publisher delivers events to the transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// fromOrder builds the event payload for o.
func fromOrder(eventType string, o *order.Order) Event {
	return Event{
		Type:        eventType,
		StoreID:     o.StoreID,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      o.Status,
		Total:       o.Total.StringFixed(2),
		OccurredAt:  time.Now().UTC(),
	}
}

// Gateway adapts a Publisher to the order service's Events interface.
type Gateway struct {
	pub Publisher
}

// NewGateway wraps a Publisher.
func NewGateway(pub Publisher) *Gateway {
	return &Gateway{pub: pub}
}

// OrderCreated publishes an order-created event.
func (g *Gateway) OrderCreated(ctx context.Context, o *order.Order) error {
	return g.pub.Publish(ctx, fromOrder(TypeOrderCreated, o))
}

// OrderUpdated publishes an order-updated event.
func (g *Gateway) OrderUpdated(ctx context.Context, o *order.Order) error {
	return g.pub.Publish(ctx, fromOrder(TypeOrderUpdated, o))
}

// NopPublisher drops every event; wired when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
