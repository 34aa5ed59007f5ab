package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// streamEventsAction pushes task changes as server-sent events until the
// client goes away.
func (h *Task) streamEventsAction(c *gin.Context) {
	const op = "handlers.Task.streamEventsAction"
	log := h.log.WithField("operation", op)

	events, cancel := h.broker.Subscribe()
	defer cancel()

	log.Debug("feed subscriber connected")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Type", "text/event-stream")
	// Send headers now so subscribers are connected before the first event.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
	log.Debug("feed subscriber disconnected")
}
