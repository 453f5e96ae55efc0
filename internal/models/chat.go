package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatType classifies a transcript row.
type ChatType string

const (
	ChatTypeNormal ChatType = "normal"
	ChatTypeSystem ChatType = "system"
	ChatTypeError  ChatType = "error"
)

// Chat is one persisted conversation turn. User turns carry IsQuestion,
// assistant turns carry the credits charged for producing them.
type Chat struct {
	ChatID         uint      `json:"chatId" gorm:"column:chat_id;primaryKey"`
	ConversationID string    `json:"conversationId" gorm:"column:conversation_id;size:200;index"`
	CustomerID     uint      `json:"customerId" gorm:"column:customer_id;index"`
	UserSessionID  string    `json:"userSessionId" gorm:"column:user_session_id;size:200;index"`
	Chat           string    `json:"chat" gorm:"type:text"`
	CharacterCount int       `json:"characterCount" gorm:"column:character_count"`
	Credits        int64     `json:"credits" gorm:"default:0"`
	IsQuestion     bool      `json:"isQuestion" gorm:"column:is_question"`
	ChatType       ChatType  `json:"chatType" gorm:"column:chat_type;size:50"`
	RequestID      string    `json:"requestId" gorm:"column:request_id;size:200"`
	Animation      string    `json:"animation" gorm:"size:100"`
	Expression     string    `json:"expression" gorm:"size:100"`
	Status         bool      `json:"status" gorm:"default:true"`
	CreatedBy      uint      `json:"createdBy" gorm:"column:created_by"`
	UpdatedBy      uint      `json:"updatedBy" gorm:"column:updated_by"`
	CreatedAt      time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Chat) TableName() string {
	return "chat"
}

// ChatTransaction carries the fields a session hands over when persisting
// a turn.
type ChatTransaction struct {
	ConversationID string
	CustomerID     uint
	UserSessionID  string
	Message        string
	Credits        int64
	IsQuestion     bool
	ChatType       ChatType
	RequestID      string
	Animation      string
	Expression     string
}

// LogChatTransaction persists a conversation turn and returns the stored
// row. CharacterCount and the audit columns are filled here so callers
// only describe the turn itself.
func LogChatTransaction(db *gorm.DB, tx *ChatTransaction) (*Chat, error) {
	chatType := tx.ChatType
	if chatType == "" {
		chatType = ChatTypeNormal
	}
	record := &Chat{
		ConversationID: tx.ConversationID,
		CustomerID:     tx.CustomerID,
		UserSessionID:  tx.UserSessionID,
		Chat:           tx.Message,
		CharacterCount: len(tx.Message),
		Credits:        tx.Credits,
		IsQuestion:     tx.IsQuestion,
		ChatType:       chatType,
		RequestID:      tx.RequestID,
		Animation:      tx.Animation,
		Expression:     tx.Expression,
		Status:         true,
		CreatedBy:      tx.CustomerID,
		UpdatedBy:      tx.CustomerID,
	}
	if err := db.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// GetConversationChats returns the turns of a conversation oldest first.
func GetConversationChats(db *gorm.DB, conversationID string, limit int) ([]Chat, error) {
	var chats []Chat
	query := db.Where("conversation_id = ?", conversationID).Order("chat_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&chats).Error
	return chats, err
}
