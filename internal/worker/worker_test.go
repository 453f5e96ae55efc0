package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

type stubRoom struct{}

func (stubRoom) Name() string     { return "stub" }
func (stubRoom) Metadata() string { return "" }
func (stubRoom) PublishData(ctx context.Context, topic string, payload []byte) error {
	return nil
}
func (stubRoom) PublishAudio(ctx context.Context, frame []byte) error { return nil }
func (stubRoom) WaitForParticipant(ctx context.Context) (*room.Participant, error) {
	return &room.Participant{Identity: "caller"}, nil
}
func (stubRoom) OnData(handler func(msg room.IncomingData)) {}
func (stubRoom) OnAudio(handler func(frame []byte))         {}
func (stubRoom) OnDisconnect(handler func())                {}
func (stubRoom) Disconnect() error                          { return nil }

type recordingHandler struct {
	mu    sync.Mutex
	rooms []string
	err   error
}

func (h *recordingHandler) HandleJob(ctx context.Context, r room.Room) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, r.Name())
	return h.err
}

func (h *recordingHandler) handled() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.rooms...)
}

func testWorker(handler JobHandler) *Worker {
	cfg := &config.Config{
		Addr:      ":0",
		AgentName: "test-agent",
	}
	w := New(cfg, handler)
	w.dialRoom = func(ctx context.Context, opts room.ConnectOptions) (room.Room, error) {
		return stubRoom{}, nil
	}
	return w
}

func TestRouter_Health(t *testing.T) {
	w := testWorker(&recordingHandler{})
	router := w.newRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test-agent")
}

func TestRouter_Metrics(t *testing.T) {
	w := testWorker(&recordingHandler{})
	w.metrics.JobsTotal.WithLabelValues("completed").Inc()
	router := w.newRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicebridge_jobs_total")
}

func TestServeJob_Completed(t *testing.T) {
	handler := &recordingHandler{}
	w := testWorker(handler)

	w.serveJob(context.Background(), "room-1")

	assert.Equal(t, []string{"stub"}, handler.handled())
	assert.Equal(t, float64(1), testutil.ToFloat64(w.metrics.JobsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(w.metrics.ActiveCalls))
}

func TestServeJob_HandlerFailure(t *testing.T) {
	handler := &recordingHandler{err: errors.New("boom")}
	w := testWorker(handler)

	w.serveJob(context.Background(), "room-1")

	assert.Equal(t, float64(1), testutil.ToFloat64(w.metrics.JobsTotal.WithLabelValues("failed")))
}

func TestServeJob_DialFailure(t *testing.T) {
	handler := &recordingHandler{}
	w := testWorker(handler)
	w.dialRoom = func(ctx context.Context, opts room.ConnectOptions) (room.Room, error) {
		return nil, errors.New("refused")
	}

	w.serveJob(context.Background(), "room-1")

	assert.Empty(t, handler.handled())
	assert.Equal(t, float64(1), testutil.ToFloat64(w.metrics.JobsTotal.WithLabelValues("join_failed")))
}

func TestDispatchOnce_ServesAssignedJobs(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(rw, req, nil)
		require.NoError(t, err)
		defer conn.Close()

		var reg dispatchEnvelope
		require.NoError(t, conn.ReadJSON(&reg))
		assert.Equal(t, eventRegister, reg.Event)
		assert.Equal(t, "test-agent", reg.Agent)

		require.NoError(t, conn.WriteJSON(dispatchEnvelope{Event: eventRegistered}))
		require.NoError(t, conn.WriteJSON(dispatchEnvelope{Event: eventJob, Room: "call-42"}))
		// server closes, dispatchOnce returns
	}))
	defer server.Close()

	handler := &recordingHandler{}
	w := testWorker(handler)
	w.cfg.RoomURL = "ws" + strings.TrimPrefix(server.URL, "http")

	err := w.dispatchOnce(context.Background())
	assert.Error(t, err) // socket closed by the server

	deadline := time.After(2 * time.Second)
	for len(handler.handled()) == 0 {
		select {
		case <-deadline:
			t.Fatal("job was never handled")
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Equal(t, []string{"stub"}, handler.handled())
}

func TestDispatchOnce_RejectsBadAck(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(rw, req, nil)
		require.NoError(t, err)
		defer conn.Close()

		var reg dispatchEnvelope
		require.NoError(t, conn.ReadJSON(&reg))
		require.NoError(t, conn.WriteJSON(dispatchEnvelope{Event: "error", Error: "unknown agent"}))
	}))
	defer server.Close()

	w := testWorker(&recordingHandler{})
	w.cfg.RoomURL = "ws" + strings.TrimPrefix(server.URL, "http")

	err := w.dispatchOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected registration response")
}
