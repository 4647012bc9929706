package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/coderforge/solverd/internal/agent"
	"github.com/coderforge/solverd/internal/backend"
	"github.com/coderforge/solverd/internal/events"
	"github.com/coderforge/solverd/internal/schema"
	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// instantRunner completes every task immediately and emits a terminal
// event, standing in for the real pipeline.
type instantRunner struct {
	d *events.Distributor
}

func (r *instantRunner) Run(_ context.Context, tc *task.Context) {
	tc.SetPhase(task.PhasePlanning)
	tc.SetStatus(task.StatusCompleted, "")
	r.d.Publish(events.ProgressEvent{
		TaskID:  tc.ID,
		Type:    events.TypeCompleted,
		Status:  task.StatusCompleted,
		Percent: 100,
		Payload: map[string]any{"code": "print('done')"},
	})
}

type chatInvoker struct{}

func (chatInvoker) Invoke(_ context.Context, _ string, _ *schema.Schema) (*backend.Response, error) {
	return &backend.Response{Object: map[string]any{
		"message": "hello from chat",
		"type":    "text",
	}}, nil
}

func newTestServer(t *testing.T) (*Server, *task.Manager, *events.Distributor) {
	t.Helper()
	d := events.NewDistributor(zap.NewNop())
	manager := task.NewManager(&instantRunner{d: d}, 4, zap.NewNop())
	chat := agent.NewChat(schemacall.New(chatInvoker{}, zap.NewNop()), zap.NewNop())
	s := NewServer(Options{}, manager, d, chat, zap.NewNop())
	return s, manager, d
}

func waitCompleted(t *testing.T, manager *task.Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		summary, err := manager.GetTaskStatus(id)
		require.NoError(t, err)
		if summary.Status.Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state")
}

func TestHandleSolve(t *testing.T) {
	s, _, _ := newTestServer(t)

	body := `{"requirements": "print a greeting", "language": "python"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/solve", strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp SolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, task.StatusPending, resp.Status)
}

func TestHandleSolveRejectsEmptyRequirements(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/solve", strings.NewReader(`{"language": "go"}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTaskStatus(t *testing.T) {
	s, manager, _ := newTestServer(t)

	id, err := manager.CreateTask("print a greeting", "python", "")
	require.NoError(t, err)
	waitCompleted(t, manager, id)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/solve/task/"+id, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary task.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, id, summary.ID)
	assert.Equal(t, task.StatusCompleted, summary.Status)
}

func TestHandleTaskStatusNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/solve/task/nope", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancelNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/solve/task/nope", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "solverd")
}

func TestHandleEventsReplaysAndCloses(t *testing.T) {
	s, manager, _ := newTestServer(t)
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	id, err := manager.CreateTask("print a greeting", "python", "")
	require.NoError(t, err)
	waitCompleted(t, manager, id)

	// The task finished before we connected; the retained terminal
	// event must be replayed and close the stream.
	resp, err := http.Get(srv.URL + "/api/v1/events/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
		}
	}

	assert.Equal(t, "event: completed", eventLine)
	var ev events.ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &ev))
	assert.Equal(t, events.TypeCompleted, ev.Type)
	assert.Equal(t, 100, ev.Percent)
}

func TestHandleEventsUnknownTask(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/nope", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatWebSocket(t *testing.T) {
	s, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, `{"message": "hi"}`))

	var raw string
	require.NoError(t, websocket.Message.Receive(ws, &raw))
	var reply ChatReply
	require.NoError(t, json.Unmarshal([]byte(raw), &reply))
	assert.Equal(t, "hello from chat", reply.Message)
	assert.Equal(t, "text", reply.Type)
	assert.Empty(t, reply.Error)
}

func TestChatWebSocketRejectsMalformedFrame(t *testing.T) {
	s, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, "not json"))

	var raw string
	require.NoError(t, websocket.Message.Receive(ws, &raw))
	var reply ChatReply
	require.NoError(t, json.Unmarshal([]byte(raw), &reply))
	assert.Equal(t, "error", reply.Type)
	assert.NotEmpty(t, reply.Error)
}

func TestChatWebSocketStreamsTaskEvents(t *testing.T) {
	s, manager, _ := newTestServer(t)
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	id, err := manager.CreateTask("print a greeting", "python", "")
	require.NoError(t, err)
	waitCompleted(t, manager, id)

	// Scoping the connection at dial time must replay the retained
	// terminal event over the socket.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws?task_id=" + id
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	frame := readEventFrame(t, ws)
	assert.Equal(t, events.TypeCompleted, frame.Event.Type)
	assert.Equal(t, id, frame.Event.TaskID)
	assert.Equal(t, 100, frame.Event.Percent)
}

func TestChatWebSocketScopesViaMessage(t *testing.T) {
	s, manager, distributor := newTestServer(t)
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	id, err := manager.CreateTask("print a greeting", "python", "")
	require.NoError(t, err)
	waitCompleted(t, manager, id)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws"
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, `{"message": "how is it going", "task_id": "`+id+`"}`))

	// The task-scoped message subscribes the connection, so the
	// retained terminal event and the chat reply both arrive.
	var gotReply, gotEvent bool
	for i := 0; i < 2; i++ {
		var raw string
		require.NoError(t, websocket.Message.Receive(ws, &raw))
		var frame eventFrame
		require.NoError(t, json.Unmarshal([]byte(raw), &frame))
		if frame.Type == "event" {
			assert.Equal(t, events.TypeCompleted, frame.Event.Type)
			gotEvent = true
			continue
		}
		var reply ChatReply
		require.NoError(t, json.Unmarshal([]byte(raw), &reply))
		assert.Equal(t, "hello from chat", reply.Message)
		gotReply = true
	}
	assert.True(t, gotReply)
	assert.True(t, gotEvent)

	distributor.Publish(events.ProgressEvent{
		TaskID:  id,
		Type:    events.TypeProgress,
		Percent: 100,
		Message: "post-completion note",
	})

	frame := readEventFrame(t, ws)
	assert.Equal(t, events.TypeProgress, frame.Event.Type)
	assert.Equal(t, "post-completion note", frame.Event.Message)
}

// readEventFrame reads frames until one carries a progress event,
// skipping chat replies.
func readEventFrame(t *testing.T, ws *websocket.Conn) eventFrame {
	t.Helper()
	for i := 0; i < 5; i++ {
		var raw string
		require.NoError(t, websocket.Message.Receive(ws, &raw))
		var frame eventFrame
		require.NoError(t, json.Unmarshal([]byte(raw), &frame))
		if frame.Type == "event" {
			return frame
		}
	}
	t.Fatal("no event frame received")
	return eventFrame{}
}

const (
	echoContentType = "Content-Type"
	echoJSON        = "application/json"
)
