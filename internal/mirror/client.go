package mirror

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"todo-assistant/internal/feed"
	"todo-assistant/internal/model"
)

const maxEventSize = 1 << 20

// APIError is a non-2xx answer from the task API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("task api: %d %s", e.Status, e.Message)
}

// Client talks to the task HTTP API and its change feed.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, httpClient *http.Client, log *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

func (c *Client) List(ctx context.Context) ([]model.Task, error) {
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *Client) Create(ctx context.Context, title, description string) (*model.Task, error) {
	body := map[string]string{"title": title, "description": description}
	return c.taskCall(ctx, http.MethodPost, "/api/tasks", body)
}

func (c *Client) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	return c.taskCall(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), patch)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Enhance(ctx context.Context, id string) (*model.Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/enhance", nil)
}

func (c *Client) taskCall(ctx context.Context, method, path string, body interface{}) (*model.Task, error) {
	var out struct {
		Task model.Task `json:"task"`
	}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEventSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := gjson.GetBytes(raw, "error").String()
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Subscribe opens the change feed. The channel closes when ctx is done or
// the stream ends.
func (c *Client) Subscribe(ctx context.Context) (<-chan feed.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: "subscribe failed"}
	}

	events := make(chan feed.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		c.readEvents(ctx, resp.Body, events)
	}()
	return events, nil
}

func (c *Client) readEvents(ctx context.Context, r io.Reader, events chan<- feed.Event) {
	const op = "mirror.Client.readEvents"

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				ev, err := decodeEvent(name, data.String())
				if err != nil {
					c.log.WithField("operation", op).WithError(err).Warn("skipping malformed event")
				} else {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
			name = ""
			data.Reset()
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.log.WithField("operation", op).WithError(err).Warn("event stream closed")
	}
}

func decodeEvent(name, data string) (feed.Event, error) {
	var ev feed.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		ev.Type = feed.EventType(name)
	}
	return ev, nil
}
