// Package notification provides the notification manager for broadcasting
// sequenced values to subscribers.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// subscription delivers values to one listener on its own goroutine.
// Only the newest undelivered value is kept; older ones are dropped.
type subscription[T any] struct {
	id       string
	listener func(T)

	mu        sync.Mutex
	latest    T
	latestSeq uint64
	sentSeq   uint64
	wake      chan struct{}
	stop      chan struct{}
}

// Manager manages subscriptions and broadcasting.
type Manager[T any] struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription[T]
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	closed        bool
	wg            sync.WaitGroup
}

// NewManager creates a new notification manager.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{
		subscriptions: make(map[string]*subscription[T]),
	}
}

// Subscribe adds a listener and returns the subscription ID.
// Listeners run outside any lock held by the broadcaster and may call back into it.
func (m *Manager[T]) Subscribe(listener func(T)) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	if m.closed {
		return id
	}

	sub := &subscription[T]{
		id:       id,
		listener: listener,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	m.subscriptions[id] = sub

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		sub.run()
	}()
	return id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager[T]) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription. Safe to call from inside a listener.
func (m *Manager[T]) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return
	}
	delete(m.subscriptions, subscriptionID)
	close(sub.stop)
}

// Broadcast offers v, stamped with seq, to every subscriber.
// A subscriber never receives a seq lower than one it already received.
func (m *Manager[T]) Broadcast(seq uint64, v T) {
	m.mu.RLock()
	subs := make([]*subscription[T], 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.offer(seq, v)
	}
}

// Send offers v to a specific subscriber.
func (m *Manager[T]) Send(subscriptionID string, seq uint64, v T) {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()

	if ok {
		sub.offer(seq, v)
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager[T]) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions and waits for their goroutines.
// Must not be called from a listener.
func (m *Manager[T]) Close() {
	m.mu.Lock()
	m.closed = true
	for id, sub := range m.subscriptions {
		close(sub.stop)
		delete(m.subscriptions, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (s *subscription[T]) offer(seq uint64, v T) {
	s.mu.Lock()
	if seq <= s.latestSeq {
		s.mu.Unlock()
		return
	}
	s.latest = v
	s.latestSeq = seq
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription[T]) run() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		if s.latestSeq <= s.sentSeq {
			s.mu.Unlock()
			continue
		}
		v := s.latest
		s.sentSeq = s.latestSeq
		s.mu.Unlock()

		s.deliver(v)
	}
}

func (s *subscription[T]) deliver(v T) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("notification: listener panicked: subscription=%s panic=%v", s.id, r)
		}
	}()
	s.listener(v)
}
