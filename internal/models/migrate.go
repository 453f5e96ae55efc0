package models

import "gorm.io/gorm"

// Migrate creates or updates every table the agent touches.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ChatBot{},
		&ChatBotPhoneNumber{},
		&ChatBotRelatedFeature{},
		&CustomerCredit{},
		&CustomerRealtimeInformation{},
		&Chat{},
		&ChatBotLeadForm{},
		&ChatBotLeadInputField{},
		&UserLead{},
		&UserLeadValue{},
		&ChatBotContent{},
		&ChatBotContentSlide{},
		&ComposioMCPToolIntegration{},
		&SharedChatbotMCPIntegration{},
	)
}
