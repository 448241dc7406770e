package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"mesgd/pkg/logger"
	"mesgd/pkg/models"
	"mesgd/pkg/telemetry"
	"mesgd/pkg/utils"
)

// DefaultBuffer is the per-subscriber queue depth used when the
// configured buffer size is zero.
const DefaultBuffer = 64

// ErrClosed is returned by Subscription.Next once the subscription has
// been cancelled or the hub shut down.
var ErrClosed = errors.New("hub: subscription closed")

type EventType string

const (
	// EventMessage carries one newly appended message.
	EventMessage EventType = "message"
	// EventGap signals that at least one message was dropped because the
	// subscriber fell behind; the subscriber should backfill from its
	// last seen sequence number.
	EventGap EventType = "gap"
)

type Event struct {
	Type    EventType       `json:"type"`
	Message *models.Message `json:"message,omitempty"`
}

// Subscription is one live feed onto a conversation. Events are consumed
// with Next; slow consumers lose the oldest buffered message and receive
// a gap marker instead of stalling the publisher.
type Subscription struct {
	ID           string
	Conversation string
	Subscriber   string

	ch     chan *models.Message
	gapped atomic.Bool
	done   chan struct{}
	once   sync.Once
	hub    *Hub
}

// Next blocks until an event is available, the context is cancelled, or
// the subscription is closed. A pending gap marker is delivered before
// any buffered message.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	if s.gapped.CompareAndSwap(true, false) {
		return Event{Type: EventGap}, nil
	}
	select {
	case m := <-s.ch:
		return Event{Type: EventMessage, Message: m}, nil
	case <-s.done:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close detaches the subscription from the hub. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub fans appended messages out to the live subscribers of each
// conversation. Delivery is non-blocking: a full subscriber queue evicts
// its oldest entry and flags a gap, so one stuck reader can never hold up
// an append.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int
	closed bool
}

func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[string]*Subscription),
		buffer: buffer,
	}
}

// Subscribe attaches a new subscriber to convID. The caller is expected
// to have checked that the subscriber may see the conversation.
func (h *Hub) Subscribe(convID, subscriberID string) *Subscription {
	s := &Subscription{
		ID:           utils.GenSubscriptionID(),
		Conversation: convID,
		Subscriber:   subscriberID,
		ch:           make(chan *models.Message, h.buffer),
		done:         make(chan struct{}),
		hub:          h,
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.done)
		return s
	}
	m := h.subs[convID]
	if m == nil {
		m = make(map[string]*Subscription)
		h.subs[convID] = m
	}
	m[s.ID] = s
	h.mu.Unlock()
	telemetry.ActiveSubscriptions.Inc()
	logger.Debug("hub_subscribed", "conversation", convID, "subscriber", subscriberID, "subscription", s.ID)
	return s
}

// Unsubscribe removes the subscription and wakes any blocked Next call.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	removed := false
	if m, ok := h.subs[s.Conversation]; ok {
		if _, ok := m[s.ID]; ok {
			delete(m, s.ID)
			removed = true
		}
		if len(m) == 0 {
			delete(h.subs, s.Conversation)
		}
	}
	h.mu.Unlock()
	if removed {
		telemetry.ActiveSubscriptions.Dec()
	}
	s.once.Do(func() { close(s.done) })
}

// Publish offers msg to every subscriber of its conversation. Callers
// publish in sequence order under the conversation lock, which is what
// gives each subscriber an in-order feed.
func (h *Hub) Publish(msg *models.Message) {
	h.mu.RLock()
	m := h.subs[msg.Conversation]
	targets := make([]*Subscription, 0, len(m))
	for _, s := range m {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.offer(msg)
	}
}

func (s *Subscription) offer(msg *models.Message) {
	select {
	case s.ch <- msg:
		telemetry.FanoutDeliveredTotal.Inc()
		return
	default:
	}
	// Queue full: evict the oldest entry and flag the gap.
	select {
	case <-s.ch:
		telemetry.FanoutDroppedTotal.Inc()
	default:
	}
	if !s.gapped.Swap(true) {
		telemetry.SubscriberGaps.Inc()
	}
	select {
	case s.ch <- msg:
		telemetry.FanoutDeliveredTotal.Inc()
	default:
		telemetry.FanoutDroppedTotal.Inc()
	}
}

// ActiveCount reports the number of live subscriptions for a
// conversation.
func (h *Hub) ActiveCount(convID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[convID])
}

// Close shuts every subscription down. Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, m := range h.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[string]*Subscription)
	h.mu.Unlock()
	for _, s := range all {
		telemetry.ActiveSubscriptions.Dec()
		s.once.Do(func() { close(s.done) })
	}
}
