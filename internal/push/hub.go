// Package push fans order status updates out to interested subscribers.
//
// Updates arrive from a feed (Kafka topic or Redis channel) and are delivered
// through a Hub. Each consumer obtains its own Client so that subscriptions
// from different request streams never replace one another.
package push

import (
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// Channel is the subscription side of the hub as seen by one consumer.
// Subscribing twice to the same order replaces the earlier callback.
type Channel interface {
	Subscribe(orderID uuid.UUID, fn func(domain.Order))
	Unsubscribe(orderID uuid.UUID)
}

type Publisher interface {
	Publish(order domain.Order)
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[uint64]func(domain.Order)
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[uint64]func(domain.Order))}
}

// NewClient returns a Channel with its own subscription namespace.
func (h *Hub) NewClient() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return &Client{hub: h, id: h.nextID, orders: make(map[uuid.UUID]struct{})}
}

// Publish delivers the order to every subscriber of its id. Callbacks run on
// the caller's goroutine, outside the hub lock.
func (h *Hub) Publish(order domain.Order) {
	h.mu.RLock()
	targets := make([]func(domain.Order), 0, len(h.subs[order.ID]))
	for _, fn := range h.subs[order.ID] {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(order)
	}
}

// Subscribers reports how many callbacks are registered for the order.
func (h *Hub) Subscribers(orderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}

func (h *Hub) set(orderID uuid.UUID, client uint64, fn func(domain.Order)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.subs[orderID]
	if !ok {
		m = make(map[uint64]func(domain.Order))
		h.subs[orderID] = m
	}
	m[client] = fn
}

func (h *Hub) remove(orderID uuid.UUID, client uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.subs[orderID]
	if !ok {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.subs, orderID)
	}
}

type Client struct {
	hub *Hub
	id  uint64

	mu     sync.Mutex
	orders map[uuid.UUID]struct{}
}

func (c *Client) Subscribe(orderID uuid.UUID, fn func(domain.Order)) {
	c.mu.Lock()
	c.orders[orderID] = struct{}{}
	c.mu.Unlock()
	c.hub.set(orderID, c.id, fn)
}

func (c *Client) Unsubscribe(orderID uuid.UUID) {
	c.mu.Lock()
	delete(c.orders, orderID)
	c.mu.Unlock()
	c.hub.remove(orderID, c.id)
}

// Close drops every subscription the client still holds.
func (c *Client) Close() {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.orders))
	for id := range c.orders {
		ids = append(ids, id)
	}
	c.orders = make(map[uuid.UUID]struct{})
	c.mu.Unlock()

	for _, id := range ids {
		c.hub.remove(id, c.id)
	}
}
