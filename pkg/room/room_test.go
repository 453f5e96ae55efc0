package room

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRoom struct {
	topic   string
	payload []byte
}

func (r *recordingRoom) Name() string     { return "test-room" }
func (r *recordingRoom) Metadata() string { return "" }
func (r *recordingRoom) PublishData(ctx context.Context, topic string, payload []byte) error {
	r.topic = topic
	r.payload = payload
	return nil
}
func (r *recordingRoom) PublishAudio(ctx context.Context, frame []byte) error { return nil }
func (r *recordingRoom) WaitForParticipant(ctx context.Context) (*Participant, error) {
	return nil, nil
}
func (r *recordingRoom) OnData(handler func(msg IncomingData)) {}
func (r *recordingRoom) OnAudio(handler func(frame []byte))    {}
func (r *recordingRoom) OnDisconnect(handler func())           {}
func (r *recordingRoom) Disconnect() error                     { return nil }

func TestSendTextMessage_Envelope(t *testing.T) {
	rec := &recordingRoom{}

	err := SendTextMessage(context.Background(), rec, TopicMessage, "Searching the web...", nil)
	require.NoError(t, err)
	assert.Equal(t, TopicMessage, rec.topic)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.payload, &data))
	assert.Equal(t, TopicMessage, data["topic"])
	assert.Equal(t, "Searching the web...", data["message"])
	assert.NotZero(t, data["timestamp"])
}

func TestSendTextMessage_AdditionalFields(t *testing.T) {
	rec := &recordingRoom{}

	err := SendTextMessage(context.Background(), rec, TopicWebSearchSources, "", map[string]interface{}{
		"sources": []string{"https://example.com"},
	})
	require.NoError(t, err)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.payload, &data))
	sources, ok := data["sources"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://example.com", sources[0])
}

func TestParticipant_TrunkPhoneNumber(t *testing.T) {
	p := &Participant{
		Identity: "sip-caller",
		Kind:     ParticipantKindSIP,
		Attributes: map[string]string{
			AttrTrunkPhoneNumber: "+15551234567",
		},
	}
	assert.Equal(t, "+15551234567", p.TrunkPhoneNumber())

	assert.Equal(t, "", (&Participant{}).TrunkPhoneNumber())
	var nilP *Participant
	assert.Equal(t, "", nilP.TrunkPhoneNumber())
}

func TestParticipant_TrunkPhoneNumberPlainAttribute(t *testing.T) {
	p := &Participant{
		Kind: ParticipantKindSIP,
		Attributes: map[string]string{
			AttrTrunkPhoneNumberPlain: "+15557654321",
		},
	}
	assert.Equal(t, "+15557654321", p.TrunkPhoneNumber())

	// the prefixed attribute wins when both are present
	p.Attributes[AttrTrunkPhoneNumber] = "+15551234567"
	assert.Equal(t, "+15551234567", p.TrunkPhoneNumber())
}

func TestParticipant_IsSIP(t *testing.T) {
	assert.True(t, (&Participant{Kind: ParticipantKindSIP}).IsSIP())
	assert.False(t, (&Participant{Kind: ParticipantKindStandard}).IsSIP())
	var nilP *Participant
	assert.False(t, nilP.IsSIP())
}
