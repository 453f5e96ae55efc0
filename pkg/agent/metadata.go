package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

// CallMetadata describes one dispatched call. Dispatchers are loose with
// types (numbers arrive as strings and vice versa), so parsing goes
// through a tolerant map decode.
type CallMetadata struct {
	CustomerID      uint
	KnowledgebaseID uint
	Environment     string
	LLMName         string
	Voice           string
	ConversationID  string
	UserSessionID   string
	CustomPrompt    string
	ShareUUID       string
	IsOutboundCall  bool
}

const (
	defaultCustomerID      = 1
	defaultKnowledgebaseID = 1
	defaultEnvironment     = "groq"
)

// ParseCallMetadata decodes the dispatch metadata JSON. Missing or
// malformed fields fall back to defaults rather than failing the call.
func ParseCallMetadata(raw string) CallMetadata {
	metadata := CallMetadata{
		CustomerID:      defaultCustomerID,
		KnowledgebaseID: defaultKnowledgebaseID,
		Environment:     defaultEnvironment,
	}
	if strings.TrimSpace(raw) == "" {
		return metadata
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		logger.Warn("Failed to parse call metadata, using defaults", zap.Error(err))
		return metadata
	}

	if v := cast.ToUint(fields["customerId"]); v > 0 {
		metadata.CustomerID = v
	}
	if v := cast.ToUint(fields["knowledgebaseId"]); v > 0 {
		metadata.KnowledgebaseID = v
	}
	if v := strings.ToLower(strings.TrimSpace(cast.ToString(fields["environment"]))); v != "" {
		metadata.Environment = v
	}
	metadata.LLMName = cast.ToString(fields["llmName"])
	metadata.Voice = cast.ToString(fields["voice"])
	metadata.ConversationID = cast.ToString(fields["conversationId"])
	metadata.UserSessionID = cast.ToString(fields["userSessionId"])
	metadata.CustomPrompt = cast.ToString(fields["customPrompt"])
	metadata.ShareUUID = cast.ToString(fields["uuid"])
	metadata.IsOutboundCall = cast.ToBool(fields["isoutBoundCall"])
	return metadata
}

// ResolveMetadata decides which metadata governs the call. Outbound calls
// trust the dispatch payload. Inbound SIP calls look the chatbot up by
// trunk phone number, which supersedes whatever the payload carried.
// Non-SIP participants never trigger the lookup, whatever attributes
// they carry.
func ResolveMetadata(db *gorm.DB, payload CallMetadata, participant *room.Participant) CallMetadata {
	if payload.IsOutboundCall {
		logger.Info("Outbound call detected, using dispatch metadata")
		return payload
	}
	if !participant.IsSIP() {
		return payload
	}

	trunkPhoneNumber := participant.TrunkPhoneNumber()
	if trunkPhoneNumber == "" {
		return payload
	}

	logger.Info("Inbound call detected, resolving metadata by trunk phone number",
		zap.String("trunkPhoneNumber", trunkPhoneNumber))
	resolved, err := FetchMetadataByTrunkPhoneNumber(db, trunkPhoneNumber)
	if err != nil {
		logger.Warn("Trunk phone number lookup failed, keeping dispatch metadata",
			zap.String("trunkPhoneNumber", trunkPhoneNumber),
			zap.Error(err))
		return payload
	}
	resolved.Voice = payload.Voice
	resolved.LLMName = payload.LLMName
	return resolved
}

// FetchMetadataByTrunkPhoneNumber builds call metadata from the chatbot
// mapped to an inbound trunk number.
func FetchMetadataByTrunkPhoneNumber(db *gorm.DB, trunkPhoneNumber string) (CallMetadata, error) {
	chatBot, err := models.GetChatBotByTrunkPhoneNumber(db, trunkPhoneNumber)
	if err != nil {
		return CallMetadata{}, err
	}
	return metadataFromChatBot(chatBot), nil
}

// FetchMetadataByChatBotID builds call metadata directly from a chatbot
// row. Used by the outbound trigger.
func FetchMetadataByChatBotID(db *gorm.DB, chatBotID uint) (CallMetadata, error) {
	chatBot, err := models.GetChatBotByID(db, chatBotID)
	if err != nil {
		return CallMetadata{}, err
	}
	return metadataFromChatBot(chatBot), nil
}

func metadataFromChatBot(chatBot *models.ChatBot) CallMetadata {
	environment := strings.ToLower(strings.TrimSpace(chatBot.Environment))
	if environment == "" {
		environment = defaultEnvironment
	}
	return CallMetadata{
		CustomerID:      chatBot.CustomerID,
		KnowledgebaseID: chatBot.ChatBotID,
		Environment:     environment,
		ConversationID:  fmt.Sprintf("%d", chatBot.ChatBotID),
		UserSessionID:   "0",
	}
}
