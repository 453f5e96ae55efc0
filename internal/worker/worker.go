package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

// JobHandler serves one dispatched call. Implemented by agent.Orchestrator.
type JobHandler interface {
	HandleJob(ctx context.Context, r room.Room) error
}

// dispatchEnvelope is the wire frame on the dispatcher control socket.
type dispatchEnvelope struct {
	Event string `json:"event"`
	Agent string `json:"agent,omitempty"`
	Room  string `json:"room,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	eventRegister   = "register"
	eventRegistered = "registered"
	eventJob        = "job"

	dispatchPingInterval = 15 * time.Second
	maxReconnectBackoff  = 30 * time.Second
)

// RoomDialer joins a dispatched room. Overridable in tests.
type RoomDialer func(ctx context.Context, opts room.ConnectOptions) (room.Room, error)

// Worker registers this agent with the job dispatcher and serves each
// assigned call through the handler. It also exposes the health and
// metrics HTTP endpoints.
type Worker struct {
	cfg      *config.Config
	handler  JobHandler
	metrics  *Metrics
	dialRoom RoomDialer

	wg sync.WaitGroup
}

func New(cfg *config.Config, handler JobHandler) *Worker {
	return &Worker{
		cfg:      cfg,
		handler:  handler,
		metrics:  NewMetrics("voicebridge"),
		dialRoom: room.Connect,
	}
}

// Run serves until the context is cancelled: the HTTP surface on
// cfg.Addr, and a dispatcher connection that reconnects with backoff.
func (w *Worker) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    w.cfg.Addr,
		Handler: w.newRouter(),
	}
	go func() {
		logger.Info("Worker HTTP listening", zap.String("addr", w.cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Worker HTTP server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	backoff := time.Second
	for {
		err := w.dispatchOnce(ctx)
		if ctx.Err() != nil {
			break
		}
		w.metrics.Reconnects.Inc()
		logger.Warn("Dispatcher connection lost, reconnecting",
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
		if backoff < maxReconnectBackoff {
			backoff *= 2
		}
	}

	w.wg.Wait()
	return ctx.Err()
}

// dispatchOnce connects to the dispatcher, registers, and serves job
// assignments until the socket drops or the context is cancelled.
func (w *Worker) dispatchOnce(ctx context.Context) error {
	endpoint := w.cfg.RoomURL + "/agent"
	header := http.Header{}
	header.Set("X-Api-Key", w.cfg.RoomAPIKey)
	header.Set("X-Api-Secret", w.cfg.RoomAPISecret)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("failed to dial dispatcher: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := writeJSON(dispatchEnvelope{Event: eventRegister, Agent: w.cfg.AgentName}); err != nil {
		return fmt.Errorf("failed to register agent: %w", err)
	}
	var ack dispatchEnvelope
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("failed to read registration ack: %w", err)
	}
	if ack.Event != eventRegistered {
		return fmt.Errorf("unexpected registration response %q: %s", ack.Event, ack.Error)
	}
	logger.Info("Registered with dispatcher",
		zap.String("agent", w.cfg.AgentName),
		zap.String("endpoint", endpoint))

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(dispatchPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-stopPing:
				return
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	for {
		var msg dispatchEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Event != eventJob || msg.Room == "" {
			continue
		}
		w.wg.Add(1)
		go func(roomName string) {
			defer w.wg.Done()
			w.serveJob(ctx, roomName)
		}(msg.Room)
	}
}

func (w *Worker) serveJob(ctx context.Context, roomName string) {
	logger.Info("Job assigned", zap.String("room", roomName))
	started := time.Now()
	w.metrics.ActiveCalls.Inc()
	defer w.metrics.ActiveCalls.Dec()

	r, err := w.dialRoom(ctx, room.ConnectOptions{
		URL:       w.cfg.RoomURL,
		APIKey:    w.cfg.RoomAPIKey,
		APISecret: w.cfg.RoomAPISecret,
		RoomName:  roomName,
		Identity:  w.cfg.AgentName,
	})
	if err != nil {
		logger.Error("Failed to join room", zap.String("room", roomName), zap.Error(err))
		w.metrics.ObserveCall("join_failed", started)
		return
	}

	if err := w.handler.HandleJob(ctx, r); err != nil {
		logger.Error("Call job failed", zap.String("room", roomName), zap.Error(err))
		w.metrics.ObserveCall("failed", started)
		return
	}
	w.metrics.ObserveCall("completed", started)
}
