package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/llm"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// RegisterLeadCaptureTool exposes the bot's configured lead form as a
// tool the model calls once it has collected the required fields in
// conversation. No-op when the bot has no active form. One lead per
// session and conversation; repeat submissions are acknowledged without
// writing a duplicate.
func RegisterLeadCaptureTool(db *gorm.DB, provider llm.LLMProvider, rt *RuntimeContext) error {
	form, err := models.GetLeadForm(db, rt.ChatBotID)
	if err != nil {
		return fmt.Errorf("failed to load lead form: %w", err)
	}
	if form == nil || len(form.InputFields) == 0 {
		return nil
	}

	labels := make([]string, 0, len(form.InputFields))
	properties := make(map[string]interface{}, len(form.InputFields))
	for _, field := range form.InputFields {
		labels = append(labels, field.Label)
		properties[field.Label] = map[string]interface{}{
			"type":        "string",
			"description": field.Placeholder,
		}
	}
	schema, err := json.Marshal(map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   labels,
	})
	if err != nil {
		return err
	}

	provider.RegisterFunctionToolDefinition(&llm.FunctionToolDefinition{
		Name: "capture_lead",
		Description: fmt.Sprintf(
			"Save the caller's contact details once you have collected all of: %s. Ask for consent before calling this.",
			strings.Join(labels, ", ")),
		Parameters: schema,
		Callback: func(args map[string]interface{}) (string, error) {
			return captureLead(db, rt, form, labels, args), nil
		},
	})
	return nil
}

func captureLead(db *gorm.DB, rt *RuntimeContext, form *models.ChatBotLeadForm, labels []string, args map[string]interface{}) string {
	exists, err := models.IsLeadAlreadyExists(db, rt.ChatBotID, form.ChatBotLeadFormID, rt.UserSessionID, rt.ConversationID)
	if err != nil {
		logger.Error("Lead dedupe check failed", zap.Error(err))
		return fmt.Sprintf("Failed to save the details: %v", err)
	}
	if exists {
		return "The caller's details are already saved for this conversation."
	}

	values := make([]models.LeadFieldValue, 0, len(labels))
	for _, label := range labels {
		value, _ := args[label].(string)
		if strings.TrimSpace(value) == "" {
			return fmt.Sprintf("Missing value for %q. Ask the caller for it before saving.", label)
		}
		values = append(values, models.LeadFieldValue{Label: label, Value: value})
	}

	_, err = models.CreateUserLead(db, rt.ChatBotID, &models.LeadSubmission{
		UserSessionID:     rt.UserSessionID,
		ChatBotLeadFormID: form.ChatBotLeadFormID,
		ConversationID:    rt.ConversationID,
		Form:              values,
	})
	if err != nil {
		logger.Error("Failed to store lead", zap.Error(err))
		return fmt.Sprintf("Failed to save the details: %v", err)
	}

	logger.Info("Lead captured",
		zap.Uint("chatBotID", rt.ChatBotID),
		zap.String("conversationID", rt.ConversationID))
	return "Details saved. Thank the caller and continue."
}
