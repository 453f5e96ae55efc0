package models

import (
	"time"

	"gorm.io/gorm"
)

// ComposioMCPToolIntegration is a customer-configured MCP server endpoint
// whose tools the agent exposes to the language model.
type ComposioMCPToolIntegration struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CustomerID   uint      `json:"customerId" gorm:"column:customer_id;index"`
	MCPServerURL string    `json:"mcpServerUrl" gorm:"column:mcp_server_url;size:500"`
	IsEnabled    bool      `json:"isEnabled" gorm:"column:is_enabled;default:true;index"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (ComposioMCPToolIntegration) TableName() string {
	return "composio_mcp_tool_integration"
}

// SharedChatbotMCPIntegration grants a shared chatbot link (identified by
// UUID) access to one of the owning customer's MCP integrations.
type SharedChatbotMCPIntegration struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	CustomerID           uint      `json:"customerId" gorm:"column:customer_id;index"`
	ChatBotID            uint      `json:"chatBotId" gorm:"column:chat_bot_id;index"`
	UUID                 string    `json:"uuid" gorm:"size:100;index"`
	MCPToolIntegrationID uint      `json:"mcpToolIntegrationId" gorm:"column:mcp_tool_integration_id;index"`
	Status               int       `json:"status" gorm:"default:1;index"`
	CreatedAt            time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (SharedChatbotMCPIntegration) TableName() string {
	return "shared_chatbot_mcp_integration"
}

// FetchCustomerMCPServerURLs returns the enabled MCP server endpoints for
// a customer. Rows with a blank URL are skipped.
func FetchCustomerMCPServerURLs(db *gorm.DB, customerID uint) ([]string, error) {
	var rows []ComposioMCPToolIntegration
	err := db.Where("customer_id = ? AND is_enabled = ?", customerID, true).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.MCPServerURL != "" {
			urls = append(urls, row.MCPServerURL)
		}
	}
	return urls, nil
}

// FetchSharedChatbotMCPServerURLs returns the enabled MCP endpoints a
// shared chatbot link may use. The share grants are resolved first, then
// joined against the enabled integrations.
func FetchSharedChatbotMCPServerURLs(db *gorm.DB, customerID, chatBotID uint, uuid string) ([]string, error) {
	var integrationIDs []uint
	err := db.Model(&SharedChatbotMCPIntegration{}).
		Where("customer_id = ? AND chat_bot_id = ? AND uuid = ? AND status = 1",
			customerID, chatBotID, uuid).
		Pluck("mcp_tool_integration_id", &integrationIDs).Error
	if err != nil {
		return nil, err
	}
	if len(integrationIDs) == 0 {
		return []string{}, nil
	}

	var rows []ComposioMCPToolIntegration
	err = db.Where("id IN ? AND is_enabled = ?", integrationIDs, true).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.MCPServerURL != "" {
			urls = append(urls, row.MCPServerURL)
		}
	}
	return urls, nil
}
