package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const heartbeatInterval = 30 * time.Second

// handleEvents streams task progress via Server-Sent Events.
//
// The stream opens with the task's latest event so a reconnecting
// client immediately learns the current state, then follows with live
// updates. The connection closes after a terminal event or when the
// client disconnects. Heartbeat comments keep proxies from timing the
// connection out.
//
// Example:
//
//	GET /api/v1/events/{task_id}
//
//	event: progress
//	data: {"task_id":"t-1","seq":3,"type":"progress","phase":"generating","percent":45}
//
//	event: completed
//	data: {"task_id":"t-1","seq":9,"type":"completed","percent":100,"payload":{...}}
func (s *Server) handleEvents(c echo.Context) error {
	taskID := c.Param("id")

	if _, err := s.manager.GetTaskStatus(taskID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "task not found",
		})
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	ch, cancel := s.distributor.Subscribe(taskID, 0)
	defer cancel()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	for {
		select {
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Response(), "event: %s\n", ev.Type)
			fmt.Fprintf(c.Response(), "id: %d\n", ev.Seq)
			fmt.Fprintf(c.Response(), "data: %s\n\n", data)
			c.Response().Flush()
			eventsStreamed.WithLabelValues("sse").Inc()

			if ev.Type.Terminal() {
				return nil
			}

		case <-ticker.C:
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}
