// Package notification fans session snapshots out to stream subscribers.
package notification

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicememo/internal/app/session"
	"github.com/osa030/voicememo/internal/app/session/state"
)

// SubscriberBuffer is the number of notifications queued per subscriber
// before it is considered too slow and dropped.
const SubscriberBuffer = 32

// Notification is a session change delivered to subscribers.
type Notification struct {
	Type       string         `json:"type"`
	SequenceNo uint64         `json:"sequence_no"`
	Snapshot   state.Snapshot `json:"snapshot"`
}

// Stream receives notifications for one subscriber. Send is only ever
// called from that subscriber's pump goroutine.
type Stream interface {
	Send(*Notification) error
}

type subscriber struct {
	id      string
	stream  Stream
	queue   chan *Notification
	stopped chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.stopped) })
}

// Manager delivers each subscriber's notifications in order on a pump
// goroutine of its own, so a stalled stream cannot hold up the others.
type Manager struct {
	mu    sync.RWMutex
	subs  map[string]*subscriber
	pumps map[string]chan struct{} // running pumps, including closed subscribers
	seq   atomic.Uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subs:  make(map[string]*subscriber),
		pumps: make(map[string]chan struct{}),
	}
}

// Subscribe registers stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	sub := &subscriber{
		id:      uuid.New().String(),
		stream:  stream,
		queue:   make(chan *Notification, SubscriberBuffer),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[sub.id] = sub
	m.pumps[sub.id] = sub.done
	count := len(m.subs)
	m.mu.Unlock()

	go m.pump(sub)
	zlog.Debug().Msgf("subscriber added: subscription_id=%s subscribers=%d", sub.id, count)
	return sub.id
}

func (m *Manager) pump(sub *subscriber) {
	defer func() {
		m.mu.Lock()
		delete(m.pumps, sub.id)
		m.mu.Unlock()
		close(sub.done)
	}()

	for {
		select {
		case <-sub.stopped:
			return
		case n := <-sub.queue:
			if err := sub.stream.Send(n); err != nil {
				zlog.Debug().Msgf("dropping subscriber after send error: subscription_id=%s error=%v", sub.id, err)
				m.remove(sub.id)
				return
			}
		}
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	sub, ok := m.subs[id]
	delete(m.subs, id)
	m.mu.Unlock()
	if ok {
		sub.stop()
	}
}

// Unsubscribe removes a subscription and waits until its stream is no
// longer in use, even if Close already stopped it.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.remove(subscriptionID)

	m.mu.RLock()
	done, ok := m.pumps[subscriptionID]
	m.mu.RUnlock()
	if ok {
		<-done
	}
}

// NextSequenceNo returns the next sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	return m.seq.Add(1)
}

// Broadcast stamps n with the next sequence number and queues it for every
// subscriber. It never blocks; a subscriber with a full queue is dropped.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	subs := make([]*subscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- n:
		case <-sub.stopped:
		default:
			zlog.Warn().Msgf("subscriber too slow, dropping: subscription_id=%s sequence_no=%d", sub.id, n.SequenceNo)
			m.remove(sub.id)
		}
	}
}

// Send queues a notification for a single subscriber. Unknown IDs are ignored.
func (m *Manager) Send(subscriptionID string, n *Notification) bool {
	m.mu.RLock()
	sub, ok := m.subs[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case sub.queue <- n:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Relay broadcasts controller events until ctx is done or the channel closes.
func (m *Manager) Relay(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Broadcast(&Notification{Type: ev.Type.String(), Snapshot: ev.Snapshot})
		}
	}
}

// Close stops every subscriber without waiting for in-flight sends.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*subscriber)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}
