package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

func setupMetadataTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ChatBot{},
		&models.ChatBotPhoneNumber{},
	))
	return db
}

func TestParseCallMetadata_Defaults(t *testing.T) {
	meta := ParseCallMetadata("")
	assert.Equal(t, uint(1), meta.CustomerID)
	assert.Equal(t, uint(1), meta.KnowledgebaseID)
	assert.Equal(t, "groq", meta.Environment)
	assert.False(t, meta.IsOutboundCall)
}

func TestParseCallMetadata_MalformedJSON(t *testing.T) {
	meta := ParseCallMetadata("{not json")
	assert.Equal(t, uint(1), meta.CustomerID)
	assert.Equal(t, "groq", meta.Environment)
}

func TestParseCallMetadata_ToleratesStringNumbers(t *testing.T) {
	meta := ParseCallMetadata(`{
		"customerId": "42",
		"knowledgebaseId": 7,
		"environment": "Open AI",
		"llmName": "gpt-5",
		"voice": "alloy",
		"conversationId": "7",
		"userSessionId": "0",
		"uuid": "share-1",
		"isoutBoundCall": true
	}`)
	assert.Equal(t, uint(42), meta.CustomerID)
	assert.Equal(t, uint(7), meta.KnowledgebaseID)
	assert.Equal(t, "open ai", meta.Environment)
	assert.Equal(t, "gpt-5", meta.LLMName)
	assert.Equal(t, "alloy", meta.Voice)
	assert.Equal(t, "share-1", meta.ShareUUID)
	assert.True(t, meta.IsOutboundCall)
}

func TestResolveMetadata_OutboundWins(t *testing.T) {
	db := setupMetadataTest(t)
	payload := CallMetadata{
		CustomerID:      42,
		KnowledgebaseID: 7,
		Environment:     "openai",
		IsOutboundCall:  true,
	}
	participant := &room.Participant{
		Kind: room.ParticipantKindSIP,
		Attributes: map[string]string{
			room.AttrTrunkPhoneNumber: "+15550001111",
		},
	}

	resolved := ResolveMetadata(db, payload, participant)
	assert.Equal(t, payload, resolved)
}

func TestResolveMetadata_TrunkLookupSupersedes(t *testing.T) {
	db := setupMetadataTest(t)
	require.NoError(t, db.Create(&models.ChatBot{
		ChatBotID: 9, CustomerID: 3, Environment: "Gemini", Status: 1,
	}).Error)
	require.NoError(t, db.Create(&models.ChatBotPhoneNumber{
		ChatBotID: 9, TrunkPhoneNumber: "+15550001111", Status: 1,
	}).Error)

	payload := CallMetadata{
		CustomerID:      1,
		KnowledgebaseID: 1,
		Environment:     "groq",
		Voice:           "Celeste-PlayAI",
		LLMName:         "llama-3.3-70b",
	}
	participant := &room.Participant{
		Kind: room.ParticipantKindSIP,
		Attributes: map[string]string{
			room.AttrTrunkPhoneNumber: "+15550001111",
		},
	}

	resolved := ResolveMetadata(db, payload, participant)
	assert.Equal(t, uint(3), resolved.CustomerID)
	assert.Equal(t, uint(9), resolved.KnowledgebaseID)
	assert.Equal(t, "gemini", resolved.Environment)
	assert.Equal(t, "9", resolved.ConversationID)
	assert.Equal(t, "0", resolved.UserSessionID)
	// caller preferences survive the lookup
	assert.Equal(t, "Celeste-PlayAI", resolved.Voice)
	assert.Equal(t, "llama-3.3-70b", resolved.LLMName)
}

func TestResolveMetadata_LookupFailureKeepsPayload(t *testing.T) {
	db := setupMetadataTest(t)
	payload := CallMetadata{CustomerID: 5, KnowledgebaseID: 2, Environment: "groq"}
	participant := &room.Participant{
		Kind: room.ParticipantKindSIP,
		Attributes: map[string]string{
			room.AttrTrunkPhoneNumber: "+15559998888",
		},
	}

	resolved := ResolveMetadata(db, payload, participant)
	assert.Equal(t, payload, resolved)
}

func TestResolveMetadata_NonSIPParticipantKeepsPayload(t *testing.T) {
	db := setupMetadataTest(t)
	payload := CallMetadata{CustomerID: 5, KnowledgebaseID: 2, Environment: "openai"}
	participant := &room.Participant{Kind: room.ParticipantKindStandard}

	resolved := ResolveMetadata(db, payload, participant)
	assert.Equal(t, payload, resolved)
}

func TestFetchMetadataByChatBotID(t *testing.T) {
	db := setupMetadataTest(t)
	require.NoError(t, db.Create(&models.ChatBot{
		ChatBotID: 4, CustomerID: 11, Status: 1,
	}).Error)

	meta, err := FetchMetadataByChatBotID(db, 4)
	require.NoError(t, err)
	assert.Equal(t, uint(11), meta.CustomerID)
	assert.Equal(t, uint(4), meta.KnowledgebaseID)
	assert.Equal(t, "groq", meta.Environment)
	assert.Equal(t, "4", meta.ConversationID)

	_, err = FetchMetadataByChatBotID(db, 999)
	assert.Error(t, err)
}

func TestResolveMetadata_StandardParticipantTrunkAttributeIgnored(t *testing.T) {
	db := setupMetadataTest(t)
	require.NoError(t, db.Create(&models.ChatBot{
		ChatBotID: 9, CustomerID: 3, Environment: "gemini", Status: 1,
	}).Error)
	require.NoError(t, db.Create(&models.ChatBotPhoneNumber{
		ChatBotID: 9, TrunkPhoneNumber: "+15550001111", Status: 1,
	}).Error)

	payload := CallMetadata{CustomerID: 5, KnowledgebaseID: 2, Environment: "openai"}
	participant := &room.Participant{
		Kind: room.ParticipantKindStandard,
		Attributes: map[string]string{
			room.AttrTrunkPhoneNumber: "+15550001111",
		},
	}

	// only SIP participants trigger the trunk lookup
	resolved := ResolveMetadata(db, payload, participant)
	assert.Equal(t, payload, resolved)
}

func TestResolveMetadata_PlainTrunkAttributeResolves(t *testing.T) {
	db := setupMetadataTest(t)
	require.NoError(t, db.Create(&models.ChatBot{
		ChatBotID: 9, CustomerID: 3, Environment: "gemini", Status: 1,
	}).Error)
	require.NoError(t, db.Create(&models.ChatBotPhoneNumber{
		ChatBotID: 9, TrunkPhoneNumber: "+15550001111", Status: 1,
	}).Error)

	payload := CallMetadata{CustomerID: 1, KnowledgebaseID: 1, Environment: "groq"}
	participant := &room.Participant{
		Kind: room.ParticipantKindSIP,
		Attributes: map[string]string{
			room.AttrTrunkPhoneNumberPlain: "+15550001111",
		},
	}

	resolved := ResolveMetadata(db, payload, participant)
	assert.Equal(t, uint(3), resolved.CustomerID)
	assert.Equal(t, uint(9), resolved.KnowledgebaseID)
}
