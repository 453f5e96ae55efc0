package llm

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// QueryOptions narrows a completion request.
type QueryOptions struct {
	Model             string
	MaxTokens         *int
	Temperature       *float32
	TopP              *float32
	Stop              []string
	User              string
	Stream            bool
	ToolChoice        string
	ParallelToolCalls *bool
}

// maxToolIterations bounds the tool-call loop per query.
const maxToolIterations = 10

// punctuationRegex segments streamed text at sentence boundaries so
// synthesis can start before the full reply arrives.
var punctuationRegex = regexp.MustCompile(`([.,;:!?，。！？؛؟])\s*`)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// and keeps the conversation history for one session.
type OpenAIProvider struct {
	client  *openai.Client
	ctx     context.Context
	baseURL string

	mutex           sync.Mutex
	systemMsg       string
	messages        []openai.ChatCompletionMessage
	functionManager *FunctionToolManager
	lastUsage       Usage
	lastUsageValid  bool
	usageHook       func(usage Usage)

	hangupChan  chan struct{}
	interruptCh chan struct{}
	hangupOnce  sync.Once
}

// NewOpenAIProvider creates a provider bound to one endpoint and system
// prompt. The context governs all requests for the session.
func NewOpenAIProvider(ctx context.Context, apiKey, baseURL, systemPrompt string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(config),
		ctx:     ctx,
		baseURL: baseURL,
		systemMsg: systemPrompt,
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		functionManager: NewFunctionToolManager(),
		hangupChan:      make(chan struct{}),
		interruptCh:     make(chan struct{}, 1),
	}
}

func (p *OpenAIProvider) Query(text, model string) (string, error) {
	return p.QueryWithOptions(text, QueryOptions{Model: model, Temperature: Float32Ptr(0.7)})
}

func (p *OpenAIProvider) buildRequest(options QueryOptions) openai.ChatCompletionRequest {
	request := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: p.messages,
		Tools:    p.functionManager.GetTools(),
	}
	if request.Model == "" {
		request.Model = openai.GPT4o
	}
	if options.MaxTokens != nil {
		request.MaxTokens = *options.MaxTokens
	}
	if options.Temperature != nil {
		request.Temperature = *options.Temperature
	}
	if options.TopP != nil {
		request.TopP = *options.TopP
	}
	if len(options.Stop) > 0 {
		request.Stop = options.Stop
	}
	if options.User != "" {
		request.User = options.User
	}
	if options.ToolChoice != "" && len(request.Tools) > 0 {
		request.ToolChoice = options.ToolChoice
	}
	if options.ParallelToolCalls != nil && len(request.Tools) > 0 {
		request.ParallelToolCalls = *options.ParallelToolCalls
	}
	return request
}

// QueryWithOptions runs the completion, resolving tool calls until the
// model produces a plain text reply.
func (p *OpenAIProvider) QueryWithOptions(text string, options QueryOptions) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.cleanupIncompleteToolCalls()
	p.messages = append(p.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	var finalResponse string
	var totalUsage Usage

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		request := p.buildRequest(options)

		logger.Debug("Sending chat completion request",
			zap.String("model", request.Model),
			zap.Int("messages", len(request.Messages)),
			zap.Int("iteration", iteration))

		response, err := p.client.CreateChatCompletion(p.ctx, request)
		if err != nil {
			return "", fmt.Errorf("error querying LLM API: %w", err)
		}
		if len(response.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		totalUsage.PromptTokens += response.Usage.PromptTokens
		totalUsage.CompletionTokens += response.Usage.CompletionTokens
		totalUsage.TotalTokens += response.Usage.TotalTokens

		message := response.Choices[0].Message

		if len(message.ToolCalls) > 0 {
			p.messages = append(p.messages, message)
			p.resolveToolCalls(message.ToolCalls)
			continue
		}

		if message.Content == "" {
			return "", fmt.Errorf("empty response content from LLM")
		}
		p.messages = append(p.messages, message)
		finalResponse = message.Content
		break
	}

	if finalResponse == "" {
		p.cleanupIncompleteToolCalls()
		return "", fmt.Errorf("max tool iterations reached without final response")
	}

	p.recordUsage(totalUsage)
	return finalResponse, nil
}

// QueryStream streams the completion, segmenting text at punctuation so
// speech synthesis can run ahead of the full reply. Tool calls collected
// from the stream are resolved, then a follow-up completion produces the
// final reply.
func (p *OpenAIProvider) QueryStream(text string, options QueryOptions, callback func(segment string, isComplete bool) error) (string, error) {
	p.mutex.Lock()

	p.cleanupIncompleteToolCalls()
	p.messages = append(p.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	request := p.buildRequest(options)
	request.Stream = true
	request.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(p.ctx, request)
	if err != nil {
		p.mutex.Unlock()
		return "", fmt.Errorf("error creating chat completion stream: %w", err)
	}
	p.mutex.Unlock()
	defer stream.Close()

	var buffer, fullResponse string
	var streamUsage Usage
	toolCallMap := make(map[int]*openai.ToolCall)

	for {
		select {
		case <-p.interruptCh:
			return fullResponse, fmt.Errorf("stream interrupted")
		case <-p.hangupChan:
			return fullResponse, fmt.Errorf("hangup requested")
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fullResponse, fmt.Errorf("error receiving from stream: %w", err)
		}

		if response.Usage != nil {
			streamUsage.PromptTokens = response.Usage.PromptTokens
			streamUsage.CompletionTokens = response.Usage.CompletionTokens
			streamUsage.TotalTokens = response.Usage.TotalTokens
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		for _, deltaToolCall := range delta.ToolCalls {
			if deltaToolCall.Index == nil {
				continue
			}
			idx := *deltaToolCall.Index
			if toolCallMap[idx] == nil {
				toolCallMap[idx] = &openai.ToolCall{
					ID:   deltaToolCall.ID,
					Type: deltaToolCall.Type,
					Function: openai.FunctionCall{
						Name:      deltaToolCall.Function.Name,
						Arguments: deltaToolCall.Function.Arguments,
					},
				}
			} else {
				if deltaToolCall.Function.Name != "" {
					toolCallMap[idx].Function.Name = deltaToolCall.Function.Name
				}
				toolCallMap[idx].Function.Arguments += deltaToolCall.Function.Arguments
			}
		}

		if delta.Content != "" {
			buffer += delta.Content
			fullResponse += delta.Content

			matches := punctuationRegex.FindAllStringSubmatchIndex(buffer, -1)
			if len(matches) > 0 {
				lastIdx := matches[len(matches)-1][1]
				if callback != nil {
					if err := callback(buffer[:lastIdx], false); err != nil {
						logger.Error("Failed to process stream segment", zap.Error(err))
					}
				}
				buffer = buffer[lastIdx:]
			}
		}
	}

	if buffer != "" && callback != nil {
		if err := callback(buffer, false); err != nil {
			logger.Error("Failed to process final stream segment", zap.Error(err))
		}
	}

	var collectedToolCalls []openai.ToolCall
	for i := 0; i < len(toolCallMap); i++ {
		if toolCall, exists := toolCallMap[i]; exists {
			collectedToolCalls = append(collectedToolCalls, *toolCall)
		}
	}

	p.mutex.Lock()
	if len(collectedToolCalls) > 0 {
		p.messages = append(p.messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   fullResponse,
			ToolCalls: collectedToolCalls,
		})
		p.resolveToolCalls(collectedToolCalls)

		followUp := p.buildRequest(options)
		followUp.Stream = false
		p.mutex.Unlock()

		finalResp, err := p.client.CreateChatCompletion(p.ctx, followUp)
		if err != nil {
			return fullResponse, fmt.Errorf("error getting final response after tool call: %w", err)
		}

		finalResponse := ""
		p.mutex.Lock()
		if len(finalResp.Choices) > 0 {
			finalResponse = finalResp.Choices[0].Message.Content
			p.messages = append(p.messages, finalResp.Choices[0].Message)
		}
		streamUsage.PromptTokens += finalResp.Usage.PromptTokens
		streamUsage.CompletionTokens += finalResp.Usage.CompletionTokens
		streamUsage.TotalTokens += finalResp.Usage.TotalTokens
		p.recordUsage(streamUsage)
		p.mutex.Unlock()

		if callback != nil {
			if finalResponse != "" {
				if err := callback(finalResponse, false); err != nil {
					logger.Error("Failed to process final response segment", zap.Error(err))
				}
			}
			if err := callback("", true); err != nil {
				logger.Error("Failed to send completion signal", zap.Error(err))
			}
		}
		return fullResponse + finalResponse, nil
	}

	p.messages = append(p.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: fullResponse,
	})
	p.recordUsage(streamUsage)
	p.mutex.Unlock()

	if callback != nil {
		if err := callback("", true); err != nil {
			logger.Error("Failed to send completion signal", zap.Error(err))
		}
	}
	return fullResponse, nil
}

// resolveToolCalls runs each tool and appends its result to the history.
// Callers hold the mutex.
func (p *OpenAIProvider) resolveToolCalls(toolCalls []openai.ToolCall) {
	for _, toolCall := range toolCalls {
		result, err := p.functionManager.HandleToolCall(toolCall)
		content := result
		if err != nil {
			content = fmt.Sprintf("Error: %v", err)
		}
		p.messages = append(p.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    content,
			ToolCallID: toolCall.ID,
		})
	}
}

// recordUsage stores the usage and fires the hook. Callers hold the mutex
// for QueryStream paths; QueryWithOptions holds it for the whole call.
func (p *OpenAIProvider) recordUsage(usage Usage) {
	p.lastUsage = usage
	p.lastUsageValid = true
	if p.usageHook != nil && usage.TotalTokens > 0 {
		go p.usageHook(usage)
	}
}

// cleanupIncompleteToolCalls drops an assistant message whose tool calls
// never got responses, along with everything after it. Some endpoints
// reject histories with dangling tool calls.
func (p *OpenAIProvider) cleanupIncompleteToolCalls() {
	for i := len(p.messages) - 1; i >= 0; i-- {
		msg := p.messages[i]
		if msg.Role != openai.ChatMessageRoleAssistant || len(msg.ToolCalls) == 0 {
			continue
		}
		answered := make(map[string]bool, len(msg.ToolCalls))
		for j := i + 1; j < len(p.messages); j++ {
			if p.messages[j].Role == openai.ChatMessageRoleTool {
				answered[p.messages[j].ToolCallID] = true
			}
		}
		for _, toolCall := range msg.ToolCalls {
			if !answered[toolCall.ID] {
				logger.Warn("Removing incomplete tool call turn",
					zap.Int("messageIndex", i))
				p.messages = p.messages[:i]
				return
			}
		}
	}
}

func (p *OpenAIProvider) RegisterFunctionToolDefinition(def *FunctionToolDefinition) {
	p.functionManager.RegisterToolDefinition(def)
}

func (p *OpenAIProvider) ListFunctionTools() []string {
	return p.functionManager.ListTools()
}

func (p *OpenAIProvider) GetLastUsage() (Usage, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.lastUsage, p.lastUsageValid
}

func (p *OpenAIProvider) OnUsage(hook func(usage Usage)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.usageHook = hook
}

func (p *OpenAIProvider) ResetMessages() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: p.systemMsg},
	}
}

func (p *OpenAIProvider) SetSystemPrompt(systemPrompt string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.systemMsg = systemPrompt
	if len(p.messages) > 0 && p.messages[0].Role == openai.ChatMessageRoleSystem {
		p.messages[0].Content = systemPrompt
	} else {
		p.messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		}, p.messages...)
	}
}

func (p *OpenAIProvider) GetMessages() []Message {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	messages := make([]Message, len(p.messages))
	for i, msg := range p.messages {
		messages[i] = Message{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			messages[i].ToolCalls = append(messages[i].ToolCalls, ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}
	return messages
}

func (p *OpenAIProvider) Interrupt() {
	select {
	case p.interruptCh <- struct{}{}:
	default:
	}
}

func (p *OpenAIProvider) Hangup() {
	p.hangupOnce.Do(func() {
		close(p.hangupChan)
	})
}

func Float32Ptr(v float32) *float32 {
	return &v
}

func IntPtr(v int) *int {
	return &v
}

func BoolPtr(v bool) *bool {
	return &v
}
