package room

import (
	"context"
	"encoding/json"
	"time"
)

// ParticipantKind distinguishes telephone callers from other participants.
type ParticipantKind string

const (
	ParticipantKindStandard ParticipantKind = "standard"
	ParticipantKindSIP      ParticipantKind = "sip"
)

// Data topics published to the client application.
const (
	TopicMessage                = "message"
	TopicWebSearchSources       = "web-search-sources"
	TopicPresentationPageNumber = "presentation-page-number"
)

// Participant is a remote peer in a room. SIP participants carry the
// trunk phone number in their attributes.
type Participant struct {
	Identity   string            `json:"identity"`
	Kind       ParticipantKind   `json:"kind"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Trunk number attribute names set by the telephony gateway. Some
// gateway versions publish the bare name without the sip prefix.
const (
	AttrTrunkPhoneNumber      = "sip.trunkPhoneNumber"
	AttrTrunkPhoneNumberPlain = "trunkPhoneNumber"
)

// IsSIP reports whether the participant joined over the telephony
// gateway.
func (p *Participant) IsSIP() bool {
	return p != nil && p.Kind == ParticipantKindSIP
}

// TrunkPhoneNumber returns the inbound trunk number for SIP participants,
// empty otherwise.
func (p *Participant) TrunkPhoneNumber() string {
	if p == nil || p.Attributes == nil {
		return ""
	}
	if number := p.Attributes[AttrTrunkPhoneNumber]; number != "" {
		return number
	}
	return p.Attributes[AttrTrunkPhoneNumberPlain]
}

// IncomingData is a data message received from a participant.
type IncomingData struct {
	Topic       string
	Payload     []byte
	Participant string
}

// Room is a connection to one media room. The media server mixes audio;
// the agent publishes data messages and synthesized speech and receives
// caller audio plus client data messages.
type Room interface {
	// Name of the room
	Name() string
	// Metadata attached to the room at creation (dispatch metadata JSON)
	Metadata() string

	// PublishData sends a reliable data message on a topic
	PublishData(ctx context.Context, topic string, payload []byte) error
	// PublishAudio sends a synthesized audio frame to the room
	PublishAudio(ctx context.Context, frame []byte) error

	// WaitForParticipant blocks until a remote participant joins
	WaitForParticipant(ctx context.Context) (*Participant, error)

	// OnData registers the handler for incoming data messages
	OnData(handler func(msg IncomingData))
	// OnAudio registers the handler for incoming caller audio frames
	OnAudio(handler func(frame []byte))
	// OnDisconnect registers the handler fired when the room closes
	OnDisconnect(handler func())

	// Disconnect leaves the room and closes the connection
	Disconnect() error
}

// SendTextMessage publishes a structured text message to the client. The
// envelope carries the topic, message and a millisecond timestamp, plus
// any additional fields.
func SendTextMessage(ctx context.Context, r Room, topic, message string, additional map[string]interface{}) error {
	data := map[string]interface{}{
		"topic":     topic,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	}
	for k, v := range additional {
		data[k] = v
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.PublishData(ctx, topic, payload)
}
