package agent

import (
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

// RuntimeContext carries the per-call state the tools need. One instance
// is built per session and injected at tool registration time, so
// concurrent calls never see each other's room or knowledge base.
type RuntimeContext struct {
	Room           room.Room
	Namespace      string
	IndexName      string
	CustomerID     uint
	ChatBotID      uint
	ConversationID string
	UserSessionID  string
	ShareUUID      string
}
