package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupChatBotTestDB(t *testing.T) *gorm.DB {
	return setupTestDBWithSilentLogger(t,
		&ChatBot{},
		&ChatBotPhoneNumber{},
		&ChatBotRelatedFeature{},
	)
}

func TestGetChatBotByID(t *testing.T) {
	db := setupChatBotTestDB(t)

	bot := &ChatBot{
		ChatBotID:   4207,
		CustomerID:  1492,
		Name:        "support-line",
		Namespace:   "acme-ns",
		IndexName:   "acme-index",
		Environment: "groq",
		Status:      1,
	}
	require.NoError(t, db.Create(bot).Error)

	got, err := GetChatBotByID(db, 4207)
	require.NoError(t, err)
	assert.Equal(t, uint(1492), got.CustomerID)
	assert.Equal(t, "acme-ns", got.Namespace)
	assert.Equal(t, "acme-index", got.IndexName)
	assert.Equal(t, "groq", got.Environment)
}

func TestGetChatBotByID_NotFound(t *testing.T) {
	db := setupChatBotTestDB(t)

	_, err := GetChatBotByID(db, 12345)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetChatBotByTrunkPhoneNumber(t *testing.T) {
	db := setupChatBotTestDB(t)

	require.NoError(t, db.Create(&ChatBot{ChatBotID: 10, CustomerID: 1, Status: 1}).Error)
	require.NoError(t, db.Create(&ChatBotPhoneNumber{
		ChatBotID:        10,
		TrunkPhoneNumber: "+15551234567",
		Status:           1,
	}).Error)

	got, err := GetChatBotByTrunkPhoneNumber(db, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, uint(10), got.ChatBotID)
}

func TestGetChatBotByTrunkPhoneNumber_InactiveMappingIgnored(t *testing.T) {
	db := setupChatBotTestDB(t)

	require.NoError(t, db.Create(&ChatBot{ChatBotID: 10, CustomerID: 1, Status: 1}).Error)
	require.NoError(t, db.Create(&ChatBotPhoneNumber{
		ChatBotID:        10,
		TrunkPhoneNumber: "+15551234567",
		Status:           0,
	}).Error)

	_, err := GetChatBotByTrunkPhoneNumber(db, "+15551234567")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetChatBotByTrunkPhoneNumber_EmptyNumber(t *testing.T) {
	db := setupChatBotTestDB(t)

	_, err := GetChatBotByTrunkPhoneNumber(db, "")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetAgentCustomPrompt(t *testing.T) {
	db := setupChatBotTestDB(t)

	require.NoError(t, db.Create(&ChatBotRelatedFeature{
		ChatBotID:           5,
		ChatBotFeatureID:    1,
		ChatBotFeatureValue: "Always answer in one sentence.",
		Status:              1,
	}).Error)

	prompt, err := GetAgentCustomPrompt(db, 5)
	require.NoError(t, err)
	assert.Equal(t, "Always answer in one sentence.", prompt)
}

func TestGetAgentCustomPrompt_MissingReturnsEmpty(t *testing.T) {
	db := setupChatBotTestDB(t)

	prompt, err := GetAgentCustomPrompt(db, 5)
	require.NoError(t, err)
	assert.Equal(t, "", prompt)
}

func TestGetAgentCustomPrompt_InactiveFeatureIgnored(t *testing.T) {
	db := setupChatBotTestDB(t)

	require.NoError(t, db.Create(&ChatBotRelatedFeature{
		ChatBotID:           5,
		ChatBotFeatureID:    1,
		ChatBotFeatureValue: "stale prompt",
		Status:              0,
	}).Error)

	prompt, err := GetAgentCustomPrompt(db, 5)
	require.NoError(t, err)
	assert.Equal(t, "", prompt)
}
