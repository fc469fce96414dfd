package changefeed

import (
	"complaintdesk/backend/internal/metrics"
	"context"
	"errors"
	"log"
)

// ErrHubStopped is returned by Broadcast after Run has exited.
var ErrHubStopped = errors.New("changefeed: hub stopped")

// Hub owns the set of local subscribers. All map access happens in Run.
type Hub struct {
	subscribers map[string]Subscriber

	RegisterCh   chan Subscriber
	UnregisterCh chan Subscriber
	EventsCh     chan Event

	done chan struct{}
}

// NewHub creates a hub. Call Run to start dispatching.
func NewHub() *Hub {
	return &Hub{
		subscribers:  make(map[string]Subscriber),
		RegisterCh:   make(chan Subscriber),
		UnregisterCh: make(chan Subscriber),
		EventsCh:     make(chan Event, 64),
		done:         make(chan struct{}),
	}
}

// Run dispatches registrations and events until ctx is cancelled,
// then closes every remaining subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for id, sub := range h.subscribers {
			delete(h.subscribers, id)
			sub.Close()
		}
		metrics.FeedSubscribers.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.RegisterCh:
			if old, ok := h.subscribers[sub.ID()]; ok && old != sub {
				old.Close()
			}
			h.subscribers[sub.ID()] = sub
			metrics.FeedSubscribers.Set(float64(len(h.subscribers)))

		case sub := <-h.UnregisterCh:
			h.remove(sub)

		case evt := <-h.EventsCh:
			h.dispatch(evt)
		}
	}
}

func (h *Hub) dispatch(evt Event) {
	for _, sub := range h.subscribers {
		if !sub.Filter().Matches(evt) {
			continue
		}
		select {
		case sub.SendChannel() <- evt:
		default:
			// A slow subscriber is dropped; it refetches when it reconnects.
			log.Printf("WARNING: Change feed subscriber %s is not keeping up, dropping it", sub.ID())
			metrics.FeedDropped.Inc()
			h.remove(sub)
		}
	}
}

// remove deletes sub if it is still the registered subscriber for its ID.
func (h *Hub) remove(sub Subscriber) {
	current, ok := h.subscribers[sub.ID()]
	if !ok || current != sub {
		return
	}
	delete(h.subscribers, sub.ID())
	sub.Close()
	metrics.FeedSubscribers.Set(float64(len(h.subscribers)))
}

// Subscribe registers sub. It returns false if the hub has stopped.
func (h *Hub) Subscribe(sub Subscriber) bool {
	select {
	case h.RegisterCh <- sub:
		return true
	case <-h.done:
		return false
	}
}

// Unsubscribe removes sub. It is a no-op if sub was already dropped.
func (h *Hub) Unsubscribe(sub Subscriber) {
	select {
	case h.UnregisterCh <- sub:
	case <-h.done:
	}
}

// Broadcast queues evt for local delivery.
func (h *Hub) Broadcast(ctx context.Context, evt Event) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.EventsCh <- evt:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish makes the Hub a Publisher for single-instance deployments.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	return h.Broadcast(ctx, evt)
}
