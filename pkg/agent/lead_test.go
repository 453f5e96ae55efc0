package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/llm"
)

func setupLeadTest(t *testing.T) (*gorm.DB, *RuntimeContext) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ChatBotLeadForm{},
		&models.ChatBotLeadInputField{},
		&models.UserLead{},
		&models.UserLeadValue{},
	))
	rt := &RuntimeContext{
		CustomerID:     7,
		ChatBotID:      3,
		ConversationID: "3",
		UserSessionID:  "session-1",
	}
	return db, rt
}

func seedLeadForm(t *testing.T, db *gorm.DB) *models.ChatBotLeadForm {
	form := &models.ChatBotLeadForm{ChatBotID: 3, Title: "Contact", Status: 1}
	require.NoError(t, db.Create(form).Error)
	require.NoError(t, db.Create(&models.ChatBotLeadInputField{
		ChatBotLeadFormID: form.ChatBotLeadFormID, Label: "Name", Placeholder: "Full name", Status: 1,
	}).Error)
	require.NoError(t, db.Create(&models.ChatBotLeadInputField{
		ChatBotLeadFormID: form.ChatBotLeadFormID, Label: "Email", Placeholder: "Email address", Status: 1,
	}).Error)
	loaded, err := models.GetLeadForm(db, 3)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	return loaded
}

func TestRegisterLeadCaptureTool_NoFormIsNoop(t *testing.T) {
	db, rt := setupLeadTest(t)
	provider := llm.NewOpenAIProvider(context.Background(), "test-key", "", "system")

	require.NoError(t, RegisterLeadCaptureTool(db, provider, rt))
	assert.Empty(t, provider.ListFunctionTools())
}

func TestRegisterLeadCaptureTool_RegistersTool(t *testing.T) {
	db, rt := setupLeadTest(t)
	seedLeadForm(t, db)
	provider := llm.NewOpenAIProvider(context.Background(), "test-key", "", "system")

	require.NoError(t, RegisterLeadCaptureTool(db, provider, rt))
	assert.Equal(t, []string{"capture_lead"}, provider.ListFunctionTools())
}

func TestCaptureLead_StoresSubmission(t *testing.T) {
	db, rt := setupLeadTest(t)
	form := seedLeadForm(t, db)

	result := captureLead(db, rt, form, []string{"Name", "Email"}, map[string]interface{}{
		"Name": "Ada Lovelace", "Email": "ada@example.com",
	})
	assert.Equal(t, "Details saved. Thank the caller and continue.", result)

	var lead models.UserLead
	require.NoError(t, db.Preload("Values").First(&lead).Error)
	assert.Equal(t, rt.ConversationID, lead.ConversationID)
	assert.Len(t, lead.Values, 2)
}

func TestCaptureLead_DeduplicatesPerConversation(t *testing.T) {
	db, rt := setupLeadTest(t)
	form := seedLeadForm(t, db)
	args := map[string]interface{}{"Name": "Ada Lovelace", "Email": "ada@example.com"}

	captureLead(db, rt, form, []string{"Name", "Email"}, args)
	result := captureLead(db, rt, form, []string{"Name", "Email"}, args)
	assert.Equal(t, "The caller's details are already saved for this conversation.", result)

	var count int64
	require.NoError(t, db.Model(&models.UserLead{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCaptureLead_MissingField(t *testing.T) {
	db, rt := setupLeadTest(t)
	form := seedLeadForm(t, db)

	result := captureLead(db, rt, form, []string{"Name", "Email"}, map[string]interface{}{
		"Name": "Ada Lovelace",
	})
	assert.Contains(t, result, `Missing value for "Email"`)

	var count int64
	require.NoError(t, db.Model(&models.UserLead{}).Count(&count).Error)
	assert.Zero(t, count)
}
