package llm

// LLMProvider is the unified chat model interface. All providers speak the
// OpenAI chat completions dialect; groq and gemini differ only in endpoint
// and credentials.
type LLMProvider interface {
	// Query runs a non-streaming completion with default options
	Query(text, model string) (string, error)

	// QueryWithOptions runs a non-streaming completion
	QueryWithOptions(text string, options QueryOptions) (string, error)

	// QueryStream runs a streaming completion, invoking callback per segment
	QueryStream(text string, options QueryOptions, callback func(segment string, isComplete bool) error) (string, error)

	// RegisterFunctionToolDefinition registers a tool the model may call
	RegisterFunctionToolDefinition(def *FunctionToolDefinition)

	// ListFunctionTools lists registered tool names
	ListFunctionTools() []string

	// GetLastUsage returns token usage of the last completed call
	GetLastUsage() (Usage, bool)

	// OnUsage registers a hook fired after every completed call
	OnUsage(hook func(usage Usage))

	// ResetMessages clears the conversation history
	ResetMessages()

	// SetSystemPrompt replaces the system message
	SetSystemPrompt(systemPrompt string)

	// GetMessages returns a copy of the conversation history
	GetMessages() []Message

	// Interrupt aborts the in-flight streaming request
	Interrupt()

	// Hangup releases the provider at the end of a session
	Hangup()
}

// Usage token usage of one model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Message is one turn of conversation history.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation issued by the model.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// FunctionCall names the invoked tool and its JSON arguments.
type FunctionCall struct {
	Name      string
	Arguments string
}
