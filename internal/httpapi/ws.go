package httpapi

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/coderforge/solverd/internal/agent"
	"github.com/coderforge/solverd/internal/events"
	"github.com/coderforge/solverd/internal/task"
)

// ChatMessage is one inbound WebSocket frame. TaskID is optional; when
// set, the reply is grounded in that task's requirements and code and
// the connection is subscribed to the task's progress events.
type ChatMessage struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
}

// ChatReply is one outbound chat frame.
type ChatReply struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
}

// eventFrame is one outbound progress frame. The envelope type lets
// clients tell progress pushes apart from chat replies on the shared
// socket.
type eventFrame struct {
	Type  string               `json:"type"` // always "event"
	Event events.ProgressEvent `json:"event"`
}

// handleChatWS serves the duplex endpoint. Inbound frames are chat
// messages, each answered with exactly one reply; outbound, the socket
// also carries the progress events of the task the connection is scoped
// to. Scoping happens via the task_id query parameter at connect time
// or the task_id field of any later message; re-scoping replaces the
// subscription. The connection stays open until the client closes it.
func (s *Server) handleChatWS(c echo.Context) error {
	handler := websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()

		sess := &wsSession{server: s, ws: ws}
		defer sess.unsubscribe()

		if id := c.QueryParam("task_id"); id != "" {
			if _, err := s.manager.Get(id); err != nil {
				sess.sendReply(ChatReply{Type: "error", Error: "task not found"})
			} else {
				sess.subscribe(id)
			}
		}

		reqCtx := c.Request().Context()
		for {
			var raw string
			if err := websocket.Message.Receive(ws, &raw); err != nil {
				if err != io.EOF {
					s.logger.Debug("chat socket closed", zap.Error(err))
				}
				return
			}

			var msg ChatMessage
			if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.Message == "" {
				sess.sendReply(ChatReply{
					Type:  "error",
					Error: "expected {\"message\": \"...\", \"task_id\": \"...\"}",
				})
				continue
			}

			var tc *task.Context
			if msg.TaskID != "" {
				found, err := s.manager.Get(msg.TaskID)
				if err != nil {
					sess.sendReply(ChatReply{
						Type:  "error",
						Error: "task not found",
					})
					continue
				}
				tc = found
				sess.subscribe(msg.TaskID)
			}

			artifact := s.chat.Reply(reqCtx, tc, msg.Message)
			chatMessages.Inc()
			sess.sendReply(ChatReply{
				Message: artifact.String(agent.FieldMessage),
				Code:    artifact.String(agent.FieldCode),
				Type:    artifact.String("type"),
			})
		}
	})

	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}

// wsSession owns one duplex connection: a write lock shared by the chat
// loop and the event pump, plus at most one distributor subscription.
type wsSession struct {
	server *Server
	ws     *websocket.Conn

	writeMu sync.Mutex

	subMu  sync.Mutex
	taskID string
	cancel func()
	quit   chan struct{}
}

// subscribe scopes the session to taskID, replacing any previous
// subscription. A pump goroutine forwards the task's events, starting
// with the retained latest event so the client learns current state
// immediately.
func (s *wsSession) subscribe(taskID string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.taskID == taskID {
		return
	}
	s.dropSubscription()

	ch, cancel := s.server.distributor.Subscribe(taskID, 0)
	quit := make(chan struct{})
	s.taskID = taskID
	s.cancel = cancel
	s.quit = quit

	go func() {
		for {
			select {
			case ev := <-ch:
				s.sendEvent(ev)
			case <-quit:
				return
			}
		}
	}()
}

func (s *wsSession) unsubscribe() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.dropSubscription()
}

// dropSubscription assumes subMu is held.
func (s *wsSession) dropSubscription() {
	if s.cancel != nil {
		s.cancel()
		close(s.quit)
		s.cancel = nil
		s.quit = nil
		s.taskID = ""
	}
}

func (s *wsSession) sendReply(reply ChatReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		s.server.logger.Error("failed to marshal chat reply", zap.Error(err))
		return
	}
	s.send(data)
}

func (s *wsSession) sendEvent(ev events.ProgressEvent) {
	data, err := json.Marshal(eventFrame{Type: "event", Event: ev})
	if err != nil {
		s.server.logger.Error("failed to marshal event frame", zap.Error(err))
		return
	}
	s.send(data)
	eventsStreamed.WithLabelValues("ws").Inc()
}

// send serializes writes; the chat loop and the event pump share the
// socket.
func (s *wsSession) send(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := websocket.Message.Send(s.ws, string(data)); err != nil {
		s.server.logger.Debug("failed to send frame", zap.Error(err))
	}
}
