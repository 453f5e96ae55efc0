package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatBotLeadForm is the lead-capture form a bot presents during a
// conversation when lead capture is enabled.
type ChatBotLeadForm struct {
	ChatBotLeadFormID uint      `json:"id" gorm:"column:chat_bot_lead_form_id;primaryKey"`
	ChatBotID         uint      `json:"chatBotId" gorm:"column:chat_bot_id;index"`
	Title             string    `json:"title" gorm:"size:200"`
	UserConsentText   string    `json:"userConsentText" gorm:"column:user_consent_text;type:text"`
	Status            int       `json:"status" gorm:"default:1;index"`
	CreatedAt         time.Time `json:"createdAt" gorm:"autoCreateTime"`

	InputFields []ChatBotLeadInputField `json:"chatBotLeadInputField" gorm:"foreignKey:ChatBotLeadFormID"`
}

func (ChatBotLeadForm) TableName() string {
	return "chat_bot_lead_form"
}

// ChatBotLeadInputField is one field of a lead form.
type ChatBotLeadInputField struct {
	ChatBotLeadInputFieldID uint   `json:"id" gorm:"column:chat_bot_lead_input_field_id;primaryKey"`
	ChatBotLeadFormID       uint   `json:"chatBotLeadFormId" gorm:"column:chat_bot_lead_form_id;index"`
	Label                   string `json:"label" gorm:"size:200"`
	Placeholder             string `json:"placeholder" gorm:"size:200"`
	Status                  int    `json:"status" gorm:"default:1;index"`
}

func (ChatBotLeadInputField) TableName() string {
	return "chat_bot_lead_input_field"
}

// UserLead records that a visitor submitted a lead form in a conversation.
type UserLead struct {
	UserLeadID        uint      `json:"userLeadId" gorm:"column:user_lead_id;primaryKey"`
	UserSessionID     string    `json:"userSessionId" gorm:"column:user_session_id;size:200;index"`
	ChatBotID         uint      `json:"chatBotId" gorm:"column:chat_bot_id;index"`
	ChatBotLeadFormID uint      `json:"chatBotLeadFormId" gorm:"column:chat_bot_lead_form_id;index"`
	ConversationID    string    `json:"conversationId" gorm:"column:conversation_id;size:200;index"`
	CreatedAt         time.Time `json:"createdAt" gorm:"autoCreateTime"`

	Values []UserLeadValue `json:"values" gorm:"foreignKey:UserLeadID"`
}

func (UserLead) TableName() string {
	return "user_lead"
}

// UserLeadValue is one captured field value of a submitted lead.
type UserLeadValue struct {
	UserLeadValueID uint   `json:"userLeadValueId" gorm:"column:user_lead_value_id;primaryKey"`
	UserLeadID      uint   `json:"userLeadId" gorm:"column:user_lead_id;index"`
	Label           string `json:"label" gorm:"column:lable;size:200"`
	Value           string `json:"value" gorm:"type:text"`
}

func (UserLeadValue) TableName() string {
	return "user_lead_value"
}

// LeadFieldValue is a label/value pair handed over on submission.
type LeadFieldValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LeadSubmission is the payload for creating a user lead.
type LeadSubmission struct {
	UserSessionID     string
	ChatBotLeadFormID uint
	ConversationID    string
	Form              []LeadFieldValue
}

// GetLeadForm returns the active lead form for a bot together with its
// active input fields, or nil when the bot has no form configured.
func GetLeadForm(db *gorm.DB, chatBotID uint) (*ChatBotLeadForm, error) {
	var form ChatBotLeadForm
	err := db.Where("chat_bot_id = ? AND status = 1", chatBotID).First(&form).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	err = db.Where("chat_bot_lead_form_id = ? AND status = 1", form.ChatBotLeadFormID).
		Find(&form.InputFields).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

// IsLeadAlreadyExists reports whether this session already submitted the
// form in this conversation.
func IsLeadAlreadyExists(db *gorm.DB, chatBotID, leadFormID uint, userSessionID, conversationID string) (bool, error) {
	var count int64
	err := db.Model(&UserLead{}).
		Where("chat_bot_id = ? AND chat_bot_lead_form_id = ? AND conversation_id = ? AND user_session_id = ?",
			chatBotID, leadFormID, conversationID, userSessionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateUserLead stores a lead and its field values in one transaction.
func CreateUserLead(db *gorm.DB, chatBotID uint, submission *LeadSubmission) (*UserLead, error) {
	lead := &UserLead{
		UserSessionID:     submission.UserSessionID,
		ChatBotID:         chatBotID,
		ChatBotLeadFormID: submission.ChatBotLeadFormID,
		ConversationID:    submission.ConversationID,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lead).Error; err != nil {
			return err
		}
		for _, item := range submission.Form {
			value := UserLeadValue{
				UserLeadID: lead.UserLeadID,
				Label:      item.Label,
				Value:      item.Value,
			}
			if err := tx.Create(&value).Error; err != nil {
				return err
			}
			lead.Values = append(lead.Values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}
