package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zjrosen/dcmcache/internal/app"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/owner"
)

// CommandError is the SSE payload for a failed owner command.
type CommandError struct {
	CommandID   string    `json:"command_id"`
	CommandType string    `json:"command_type"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

// sseEvent names a bus payload and converts it to something JSON can encode.
// Payloads of unknown types are skipped.
func sseEvent(payload any) (string, any, bool) {
	switch p := payload.(type) {
	case app.DatasetEvent:
		return string(p.Kind), p, true
	case app.EntityEvent:
		return string(p.Kind), p, true
	case owner.CommandErrorEvent:
		msg := ""
		if p.Error != nil {
			msg = p.Error.Error()
		}
		return "command_error", CommandError{
			CommandID:   p.CommandID,
			CommandType: p.CommandType.String(),
			Error:       msg,
			Timestamp:   p.Timestamp,
		}, true
	default:
		return "", nil, false
	}
}

// handleEvents streams lifecycle events as server-sent events until the
// client disconnects or the service shuts down.
func (s *Server) handleEvents(c *gin.Context) {
	events := s.svc.Subscribe(c.Request.Context())
	startStream(c)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if name, data, ok := sseEvent(ev.Payload); ok {
				c.SSEvent(name, data)
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// handleLogs streams debug log lines. Logging must be enabled with --debug.
func (s *Server) handleLogs(c *gin.Context) {
	lines := log.Subscribe(c.Request.Context())
	if lines == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "debug logging is disabled",
			Code:  "LOGGING_DISABLED",
		})
		return
	}
	startStream(c)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-lines:
			if !ok {
				return false
			}
			c.SSEvent("log", strings.TrimRight(ev.Payload, "\n"))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// startStream sends the SSE headers so clients see the response before the
// first event.
func startStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}
