// Package host exposes the running simulation to observers: a fan-out of
// coordinator events, a materialized view of the current generation and an
// HTTP endpoint serving that view.
package host

import (
	"log/slog"
	"sync"

	"github.com/pthm-cable/natsel/protocol"
)

const defaultSubscriberCapacity = 256

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// RouterWithLogger injects a logger for drop diagnostics.
func RouterWithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per
// subscriber.
func RouterWithSubscriberCapacity(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// Router fans coordinator events out to subscribers. Publish never blocks:
// a full subscriber loses its oldest droppable event.
type Router struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	capacity    int
	logger      *slog.Logger
}

// Subscription is an active subscription.
type Subscription struct {
	Events <-chan protocol.Message
	cancel func()
}

// Close terminates the subscription and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers: make(map[*subscriber]struct{}),
		capacity:    defaultSubscriberCapacity,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Subscribe registers a new subscriber. Events published before the call
// are not replayed.
func (r *Router) Subscribe() Subscription {
	sub := &subscriber{ch: make(chan protocol.Message, r.capacity), logger: r.logger}
	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	r.mu.Unlock()
	return Subscription{
		Events: sub.ch,
		cancel: func() { r.remove(sub) },
	}
}

// Publish delivers msg to every subscriber.
func (r *Router) Publish(msg protocol.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sub := range r.subscribers {
		sub.deliver(msg)
	}
}

// Close closes every subscription.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subscribers {
		sub.close()
		delete(r.subscribers, sub)
	}
}

func (r *Router) remove(sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[sub]; ok {
		delete(r.subscribers, sub)
		sub.close()
	}
}

type subscriber struct {
	ch     chan protocol.Message
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// deliver enqueues msg without blocking. When the queue is full the oldest
// event is evicted unless it matters more than the incoming one.
func (s *subscriber) deliver(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- msg:
		return
	default:
	}

	var oldest protocol.Message
	select {
	case oldest = <-s.ch:
	default:
		// drained by the reader in the meantime
		s.ch <- msg
		return
	}

	if shouldDropOldest(oldest, msg) {
		s.ch <- msg
		s.logDrop(oldest)
		return
	}
	s.ch <- oldest
	s.logDrop(msg)
}

func (s *subscriber) logDrop(msg protocol.Message) {
	s.logger.Debug("host_event_dropped", "type", string(msg.MessageType()))
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// shouldDropOldest keeps lifecycle events over position updates. Between
// events of the same weight the oldest goes.
func shouldDropOldest(oldest, incoming protocol.Message) bool {
	return !isCritical(oldest.MessageType()) || isCritical(incoming.MessageType())
}

func isCritical(t protocol.Type) bool {
	return t == protocol.TypeGenerationStart || t == protocol.TypeCreatureRemoved
}
