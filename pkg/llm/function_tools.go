package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// FunctionToolCallback executes a tool call and returns the text result
// handed back to the model.
type FunctionToolCallback func(args map[string]interface{}) (string, error)

// FunctionToolDefinition describes one callable tool.
type FunctionToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Callback    FunctionToolCallback
}

// FunctionToolManager holds the tools exposed to the model for one session.
type FunctionToolManager struct {
	mu    sync.RWMutex
	tools map[string]*FunctionToolDefinition
}

// NewFunctionToolManager creates an empty tool manager. Tools are
// registered per session based on the bot's capabilities.
func NewFunctionToolManager() *FunctionToolManager {
	return &FunctionToolManager{
		tools: make(map[string]*FunctionToolDefinition),
	}
}

// RegisterToolDefinition registers or replaces a tool.
func (m *FunctionToolManager) RegisterToolDefinition(def *FunctionToolDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[def.Name] = def
	logger.Info("Function tool registered", zap.String("tool", def.Name))
}

// GetTools returns the OpenAI tool definitions for the request payload.
func (m *FunctionToolManager) GetTools() []openai.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tools := make([]openai.Tool, 0, len(m.tools))
	for _, def := range m.tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

// HandleToolCall parses the arguments and runs the named tool.
func (m *FunctionToolManager) HandleToolCall(toolCall openai.ToolCall) (string, error) {
	m.mu.RLock()
	def, exists := m.tools[toolCall.Function.Name]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("unknown function tool: %s", toolCall.Function.Name)
	}

	var args map[string]interface{}
	if toolCall.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("failed to parse tool call arguments: %w", err)
		}
	}

	result, err := def.Callback(args)
	if err != nil {
		logger.Error("Tool call failed",
			zap.String("tool", toolCall.Function.Name),
			zap.Error(err))
		return "", err
	}

	logger.Debug("Tool call completed",
		zap.String("tool", toolCall.Function.Name),
		zap.Int("result_length", len(result)))
	return result, nil
}

// GetTool returns the definition for a registered tool name.
func (m *FunctionToolManager) GetTool(name string) (*FunctionToolDefinition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, exists := m.tools[name]
	return def, exists
}

// ListTools lists registered tool names.
func (m *FunctionToolManager) ListTools() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tools))
	for name := range m.tools {
		names = append(names, name)
	}
	return names
}
