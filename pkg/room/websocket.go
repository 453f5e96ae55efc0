package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnectOptions describes how to join a room on the media server.
type ConnectOptions struct {
	// URL media server websocket endpoint, e.g. ws://host:7880
	URL string
	// APIKey / APISecret authenticate the agent
	APIKey    string
	APISecret string
	// RoomName room to join
	RoomName string
	// Identity this agent's participant identity
	Identity string
}

// envelope is the wire frame on the room control socket. Binary websocket
// messages carry raw audio frames and skip the JSON envelope.
type envelope struct {
	Event       string            `json:"event"`
	Room        string            `json:"room,omitempty"`
	Metadata    string            `json:"metadata,omitempty"`
	Topic       string            `json:"topic,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Participant *Participant      `json:"participant,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

const (
	eventJoin              = "join"
	eventJoined            = "joined"
	eventParticipantJoined = "participant_joined"
	eventData              = "data"
	eventPublishData       = "publish_data"
	eventLeave             = "leave"
	eventClosed            = "closed"
)

// wsRoom implements Room over a single websocket connection.
type wsRoom struct {
	conn     *websocket.Conn
	name     string
	metadata string

	writeMu sync.Mutex

	participants chan *Participant

	handlerMu    sync.RWMutex
	onData       func(msg IncomingData)
	onAudio      func(frame []byte)
	onDisconnect func()

	done      chan struct{}
	closeOnce sync.Once
}

// Connect dials the media server and joins the room. The returned Room is
// live once the server acknowledges the join.
func Connect(ctx context.Context, opts ConnectOptions) (Room, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("room url is required")
	}
	if opts.RoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}

	endpoint, err := url.JoinPath(opts.URL, "rtc")
	if err != nil {
		return nil, fmt.Errorf("invalid room url: %w", err)
	}

	header := http.Header{}
	header.Set("X-Api-Key", opts.APIKey)
	header.Set("X-Api-Secret", opts.APISecret)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial media server: %w", err)
	}

	r := &wsRoom{
		conn:         conn,
		name:         opts.RoomName,
		participants: make(chan *Participant, 16),
		done:         make(chan struct{}),
	}

	joinMsg := envelope{
		Event: eventJoin,
		Room:  opts.RoomName,
		Attributes: map[string]string{
			"identity": opts.Identity,
		},
	}
	if err := r.writeJSON(joinMsg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send join: %w", err)
	}

	// The first frame must acknowledge the join and carries the dispatch
	// metadata.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	}
	var ack envelope
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read join ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if ack.Event != eventJoined {
		conn.Close()
		return nil, fmt.Errorf("unexpected join response %q: %s", ack.Event, ack.Error)
	}
	r.metadata = ack.Metadata

	go r.readLoop()

	return r, nil
}

func (r *wsRoom) Name() string     { return r.name }
func (r *wsRoom) Metadata() string { return r.metadata }

func (r *wsRoom) writeJSON(v interface{}) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(v)
}

func (r *wsRoom) PublishData(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-r.done:
		return fmt.Errorf("room %s is closed", r.name)
	default:
	}
	return r.writeJSON(envelope{
		Event:   eventPublishData,
		Topic:   topic,
		Payload: payload,
	})
}

func (r *wsRoom) PublishAudio(ctx context.Context, frame []byte) error {
	select {
	case <-r.done:
		return fmt.Errorf("room %s is closed", r.name)
	default:
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (r *wsRoom) WaitForParticipant(ctx context.Context) (*Participant, error) {
	select {
	case p := <-r.participants:
		return p, nil
	case <-r.done:
		return nil, fmt.Errorf("room %s closed before a participant joined", r.name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *wsRoom) OnData(handler func(msg IncomingData)) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onData = handler
}

func (r *wsRoom) OnAudio(handler func(frame []byte)) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onAudio = handler
}

func (r *wsRoom) OnDisconnect(handler func()) {
	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	r.onDisconnect = handler
}

func (r *wsRoom) readLoop() {
	defer r.close()

	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Warn("room connection lost",
					zap.String("room", r.name), zap.Error(err))
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			r.handlerMu.RLock()
			handler := r.onAudio
			r.handlerMu.RUnlock()
			if handler != nil {
				handler(data)
			}
			continue
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			zap.L().Warn("dropping malformed room frame",
				zap.String("room", r.name), zap.Error(err))
			continue
		}

		switch msg.Event {
		case eventParticipantJoined:
			if msg.Participant != nil {
				select {
				case r.participants <- msg.Participant:
				default:
				}
			}
		case eventData:
			r.handlerMu.RLock()
			handler := r.onData
			r.handlerMu.RUnlock()
			if handler != nil {
				identity := ""
				if msg.Participant != nil {
					identity = msg.Participant.Identity
				}
				handler(IncomingData{
					Topic:       msg.Topic,
					Payload:     msg.Payload,
					Participant: identity,
				})
			}
		case eventClosed:
			return
		}
	}
}

func (r *wsRoom) close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.conn.Close()
		r.handlerMu.RLock()
		handler := r.onDisconnect
		r.handlerMu.RUnlock()
		if handler != nil {
			handler()
		}
	})
}

func (r *wsRoom) Disconnect() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	// Best effort leave; the server also treats the socket close as leave.
	_ = r.writeJSON(envelope{Event: eventLeave, Room: r.name})
	r.close()
	return nil
}
