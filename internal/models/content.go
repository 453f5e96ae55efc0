package models

import (
	"time"

	"gorm.io/gorm"
)

const contentTypeAttachment = "attachment"

// ChatBotContent is an uploaded content record for a bot. Presentation
// agents use the latest attachment content as their slide deck.
type ChatBotContent struct {
	ChatBotContentID   uint      `json:"id" gorm:"column:chat_bot_content_id;primaryKey"`
	ChatBotID          uint      `json:"chatBotId" gorm:"column:chat_bot_id;index"`
	ChatBotContentType string    `json:"chatBotContentType" gorm:"column:chat_bot_content_type;size:50;index"`
	Status             int       `json:"status" gorm:"default:1;index"`
	CreatedAt          time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (ChatBotContent) TableName() string {
	return "chat_bot_content"
}

// ChatBotContentSlide is one ordered slide of an attachment content.
type ChatBotContentSlide struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	ChatBotContentID uint   `json:"chatBotContentId" gorm:"column:chat_bot_content_id;index"`
	Context          string `json:"context" gorm:"type:text"`
	Transcript       string `json:"transcript" gorm:"type:text"`
	SlideOrder       int    `json:"slideOrder" gorm:"column:slide_order;index"`
}

func (ChatBotContentSlide) TableName() string {
	return "chat_bot_content_slide"
}

// GetChatBotContentSlides returns the ordered slides of the most recent
// active attachment content for a bot. An empty slice means the bot has
// no deck.
func GetChatBotContentSlides(db *gorm.DB, chatBotID uint) ([]ChatBotContentSlide, error) {
	var content ChatBotContent
	err := db.Where("chat_bot_id = ? AND status = 1 AND chat_bot_content_type = ?",
		chatBotID, contentTypeAttachment).
		Order("chat_bot_content_id DESC").
		First(&content).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return []ChatBotContentSlide{}, nil
		}
		return nil, err
	}

	var slides []ChatBotContentSlide
	err = db.Where("chat_bot_content_id = ?", content.ChatBotContentID).
		Order("slide_order ASC").
		Find(&slides).Error
	if err != nil {
		return nil, err
	}
	return slides, nil
}
