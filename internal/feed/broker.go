package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

const defaultBufferSize = 64

// ErrClosed is returned when publishing to or subscribing on a closed broker
var ErrClosed = errors.New("feed closed")

// Broker fans change events out to in-process subscribers.
// Each subscriber gets its own delivery goroutine, so its handler sees events one at a time and in publish order.
type Broker struct {
	mu         sync.RWMutex
	subs       map[uint64]*subscription
	nextID     uint64
	bufferSize int
	closed     bool
}

// NewBroker creates an in-process change feed
func NewBroker() *Broker {
	return &Broker{
		subs:       make(map[uint64]*subscription),
		bufferSize: defaultBufferSize,
	}
}

type subscription struct {
	id      uint64
	broker  *Broker
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func (b *Broker) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.events <- event:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (b *Broker) Subscribe(ctx context.Context, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	s := &subscription{
		id:      b.nextID,
		broker:  b,
		events:  make(chan Event, b.bufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	b.subs[s.id] = s

	go s.deliver(ctx, handler)

	slog.Debug("Feed subscription opened", "subscription_id", s.id)
	return s, nil
}

// Close cancels every subscription and rejects further use
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}

// SubscriberCount returns the number of live subscriptions
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *subscription) deliver(ctx context.Context, handler Handler) {
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.stop()
			return
		case event := <-s.events:
			// Cancel may have raced the receive
			select {
			case <-s.done:
				return
			default:
			}
			handler(event)
		}
	}
}

// Cancel must not be called from the subscription's own handler
func (s *subscription) Cancel() {
	s.stop()
	<-s.stopped
}

func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.done)
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
	})
}
