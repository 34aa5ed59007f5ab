package mirror

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
	"todo-assistant/internal/repository"
	"todo-assistant/internal/rest"
	"todo-assistant/internal/rest/handlers"
	"todo-assistant/internal/service"
)

func newServer(t *testing.T) (*httptest.Server, *feed.Broker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	name := regexp.MustCompile(`[^A-Za-z0-9]+`).ReplaceAllString(t.Name(), "_")
	db, err := repository.NewDB("file:"+name+"?mode=memory&cache=shared", log)
	require.NoError(t, err)

	broker := feed.NewBroker(log)
	tasks := service.NewTaskService(repository.NewTaskRepository(db), broker, log)
	enhancer := service.NewEnhancementService(tasks, nil, time.Second, log)

	srv := httptest.NewServer(rest.NewRouter(log, handlers.NewTaskHandler(tasks, enhancer, broker, log)))
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return srv, broker
}

func nextEvent(t *testing.T, events <-chan feed.Event) feed.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
		return feed.Event{}
	}
}

func TestClientAgainstServer(t *testing.T) {
	srv, broker := newServer(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewClient(srv.URL, srv.Client(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, broker.Subscribers())

	m := New(client, log)
	require.NoError(t, m.Load(ctx))
	assert.Empty(t, m.Tasks())

	created, err := m.Create(ctx, "Buy milk", "2 liters")
	require.NoError(t, err)
	assert.Equal(t, model.SourceWeb, created.Source)

	ev := nextEvent(t, events)
	assert.Equal(t, feed.EventInsert, ev.Type)
	assert.Equal(t, created.ID, ev.Task.ID)

	// The push for our own create must not duplicate the confirmed task.
	m.Apply(FromEvent(ev))
	assert.Equal(t, []string{created.ID}, ids(m.Tasks()))

	done := true
	updated, err := m.Update(ctx, created.ID, model.TaskPatch{IsCompleted: &done})
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)

	ev = nextEvent(t, events)
	assert.Equal(t, feed.EventUpdate, ev.Type)
	assert.True(t, ev.Task.IsCompleted)

	require.NoError(t, m.Delete(ctx, created.ID))
	ev = nextEvent(t, events)
	assert.Equal(t, feed.EventDelete, ev.Type)
	m.Apply(FromEvent(ev))
	assert.Empty(t, m.Tasks())

	cancel()
	for range events {
	}
}

func TestClientErrors(t *testing.T) {
	srv, _ := newServer(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewClient(srv.URL, srv.Client(), log)
	ctx := context.Background()

	done := true
	_, err := client.Update(ctx, "missing", model.TaskPatch{IsCompleted: &done})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "Task not found", apiErr.Message)

	_, err = client.Create(ctx, "  ", "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)

	created, err := client.Create(ctx, "Task", "")
	require.NoError(t, err)
	_, err = client.Enhance(ctx, created.ID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.Status)
}

func TestReadEventsSkipsMalformed(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewClient("http://unused", nil, log)

	stream := strings.Join([]string{
		": keep-alive",
		"event:insert",
		`data:{"type":"insert","task":{"id":"a","title":"x"}}`,
		"",
		"event:update",
		"data:not json",
		"",
		"event:delete",
		`data: {"task":{"id":"a"}}`,
		"",
		"",
	}, "\n")

	events := make(chan feed.Event, 4)
	client.readEvents(context.Background(), strings.NewReader(stream), events)
	close(events)

	var got []feed.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, feed.EventInsert, got[0].Type)
	assert.Equal(t, "a", got[0].Task.ID)
	assert.Equal(t, feed.EventDelete, got[1].Type)
}
