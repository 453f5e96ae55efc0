package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatBot is a tenant-owned voice assistant configuration. The knowledge
// base namespace and index identify where its documents live in the vector
// store, and Environment selects the model provider profile for calls.
type ChatBot struct {
	ChatBotID           uint      `json:"chatBotId" gorm:"column:chat_bot_id;primaryKey"`
	CustomerID          uint      `json:"customerId" gorm:"column:customer_id;index"`
	Name                string    `json:"name" gorm:"column:chat_bot_name;size:200"`
	Namespace           string    `json:"namespace" gorm:"size:200"`
	IndexName           string    `json:"indexName" gorm:"column:index_name;size:200"`
	Environment         string    `json:"environment" gorm:"size:50"`
	IsPresentationAgent bool      `json:"isPresentationAgent" gorm:"column:is_presentation_agent"`
	Status              int       `json:"status" gorm:"default:1;index"`
	CreatedAt           time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt           time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (ChatBot) TableName() string {
	return "chat_bot"
}

// ChatBotPhoneNumber maps an inbound SIP trunk phone number to a chat bot.
type ChatBotPhoneNumber struct {
	ChatBotPhoneNumberID uint      `json:"chatBotPhoneNumberId" gorm:"column:chat_bot_phone_number_id;primaryKey"`
	ChatBotID            uint      `json:"chatBotId" gorm:"column:chat_bot_id;index"`
	TrunkPhoneNumber     string    `json:"trunkPhoneNumber" gorm:"column:trunk_phone_number;size:64;index"`
	Status               int       `json:"status" gorm:"default:1;index"`
	CreatedAt            time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (ChatBotPhoneNumber) TableName() string {
	return "chat_bot_phone_number"
}

// ChatBotRelatedFeature stores per-bot feature values. Feature id 1 is the
// custom master prompt appended to the system instructions.
type ChatBotRelatedFeature struct {
	ChatBotRelatedFeatureID uint      `json:"chatBotRelatedFeatureId" gorm:"column:chat_bot_related_feature_id;primaryKey"`
	ChatBotID               uint      `json:"chatBotId" gorm:"column:chat_bot_id;index"`
	ChatBotFeatureID        uint      `json:"chatBotFeatureId" gorm:"column:chat_bot_feature_id;index"`
	ChatBotFeatureValue     string    `json:"chatBotFeatureValue" gorm:"column:chat_bot_feature_value;type:text"`
	Status                  int       `json:"status" gorm:"default:1;index"`
	CreatedAt               time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (ChatBotRelatedFeature) TableName() string {
	return "chat_bot_related_feature"
}

const featureIDCustomPrompt = 1

// GetChatBotByID returns the bot or gorm.ErrRecordNotFound.
func GetChatBotByID(db *gorm.DB, chatBotID uint) (*ChatBot, error) {
	var bot ChatBot
	err := db.Where("chat_bot_id = ?", chatBotID).First(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetChatBotByTrunkPhoneNumber resolves the bot serving an inbound trunk
// number. Only active phone number mappings participate.
func GetChatBotByTrunkPhoneNumber(db *gorm.DB, trunkPhoneNumber string) (*ChatBot, error) {
	if trunkPhoneNumber == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var bot ChatBot
	err := db.Model(&ChatBot{}).
		Joins("INNER JOIN chat_bot_phone_number cbpn ON cbpn.chat_bot_id = chat_bot.chat_bot_id").
		Where("cbpn.trunk_phone_number = ? AND cbpn.status = 1", trunkPhoneNumber).
		Limit(1).
		First(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetAgentCustomPrompt returns the bot's custom master prompt, or an empty
// string when none is configured.
func GetAgentCustomPrompt(db *gorm.DB, chatBotID uint) (string, error) {
	var feature ChatBotRelatedFeature
	err := db.Where("chat_bot_id = ? AND chat_bot_feature_id = ? AND status = 1",
		chatBotID, featureIDCustomPrompt).
		First(&feature).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return feature.ChatBotFeatureValue, nil
}
