package feed

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-assistant/internal/model"
)

func newBroker() *Broker {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewBroker(log)
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	b := newBroker()
	first, cancelFirst := b.Subscribe()
	defer cancelFirst()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()

	b.Publish(Event{Type: EventInsert, Task: model.Task{ID: "t1"}})

	assert.Equal(t, "t1", (<-first).Task.ID)
	assert.Equal(t, EventInsert, (<-second).Type)
}

func TestCancelUnsubscribesAndCloses(t *testing.T) {
	b := newBroker()
	events, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()
	assert.Zero(t, b.Subscribers())

	_, ok := <-events
	assert.False(t, ok)

	b.Publish(Event{Type: EventDelete})
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := newBroker()
	events, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{Type: EventUpdate})
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := newBroker()
	events, cancel := b.Subscribe()

	b.Close()
	_, ok := <-events
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers())

	cancel()
	b.Publish(Event{Type: EventInsert, Task: model.Task{ID: "t1"}})

	late, cancelLate := b.Subscribe()
	defer cancelLate()
	_, ok = <-late
	assert.False(t, ok)
}
