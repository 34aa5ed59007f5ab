package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/repository"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9]+`)

// isValidation reports whether err carries a ValidationError.
func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + unsafeName.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared"
	db, err := repository.NewDB(dsn, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(ev feed.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Types() []feed.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]feed.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// fakeEnricher answers with result/err. When gate is set it waits for a
// value on gate before answering.
type fakeEnricher struct {
	result  EnrichResult
	err     error
	gate    chan struct{}
	started chan struct{}

	mu    sync.Mutex
	calls []EnrichRequest
}

func (f *fakeEnricher) Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return EnrichResult{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeEnricher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sent struct {
	Address string
	Text    string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sent
}

func (f *fakeSender) Send(_ context.Context, address, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{Address: address, Text: text})
	return nil
}

func (f *fakeSender) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeForwarder struct {
	mu       sync.Mutex
	result   ForwardResult
	err      error
	payloads []ForwardPayload
}

func (f *fakeForwarder) Forward(_ context.Context, payload ForwardPayload) (ForwardResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.result, f.err
}

func (f *fakeForwarder) Payloads() []ForwardPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ForwardPayload(nil), f.payloads...)
}

type fixture struct {
	db        *gorm.DB
	clock     *clock
	publisher *recordingPublisher
	tasks     *TaskService
	sessions  *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger()
	c := newClock()
	pub := &recordingPublisher{}

	tasks := NewTaskService(repository.NewTaskRepository(db), pub, log)
	tasks.now = c.Now
	sessions := NewSessionService(repository.NewSessionRepository(db), DefaultSessionTTL, log)
	sessions.now = c.Now

	return &fixture{db: db, clock: c, publisher: pub, tasks: tasks, sessions: sessions}
}

func (f *fixture) enhancer(enricher Enricher, timeout time.Duration) *EnhancementService {
	svc := NewEnhancementService(f.tasks, enricher, timeout, testLogger())
	if enricher != nil {
		f.tasks.SetAutoEnhancer(svc)
	}
	return svc
}
