// Package feed fans task change events out to subscribers such as the
// server-sent events endpoint.
package feed

import (
	"sync"

	"github.com/sirupsen/logrus"

	"todo-assistant/internal/model"
)

// EventType names a row change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one change of the task table.
type Event struct {
	Type EventType  `json:"type"`
	Task model.Task `json:"task"`
}

const subscriberBuffer = 64

// Broker is an in-process publish/subscribe hub. Publishing never blocks:
// a subscriber whose buffer is full misses the event and is expected to
// reload the list.
type Broker struct {
	log    *logrus.Logger
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func NewBroker(log *logrus.Logger) *Broker {
	return &Broker{
		log:  log,
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a new listener. The returned cancel func closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.WithFields(logrus.Fields{
				"operation":  "feed.Broker.Publish",
				"subscriber": id,
				"task_id":    ev.Task.ID,
			}).Warn("subscriber buffer full, event dropped")
		}
	}
}

// Close ends every subscription and refuses new ones. Later publishes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active listeners.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
