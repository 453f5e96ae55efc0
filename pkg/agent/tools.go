package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/knowledge"
	"github.com/voicebridge-ai/voicebridge/pkg/llm"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

const (
	defaultTavilyBaseURL = "https://api.tavily.com"
	maxWebSearchResults  = 5
)

// WebSearcher runs a live web search. Implemented by the Tavily client;
// faked in tests.
type WebSearcher interface {
	Search(ctx context.Context, query string) (answer string, sourceURLs []string, err error)
}

// TavilySearcher queries the Tavily search API.
type TavilySearcher struct {
	apiKey string
	client *resty.Client
}

func NewTavilySearcher(apiKey, baseURL string) *TavilySearcher {
	if baseURL == "" {
		baseURL = defaultTavilyBaseURL
	}
	return &TavilySearcher{
		apiKey: apiKey,
		client: resty.New().SetBaseURL(baseURL),
	}
}

type tavilyResult struct {
	URL string `json:"url"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

func (t *TavilySearcher) Search(ctx context.Context, query string) (string, []string, error) {
	var response tavilyResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"api_key":        t.apiKey,
			"query":          query,
			"search_depth":   "advanced",
			"include_answer": true,
			"max_results":    maxWebSearchResults,
		}).
		SetResult(&response).
		Post("/search")
	if err != nil {
		return "", nil, err
	}
	if resp.IsError() {
		return "", nil, fmt.Errorf("tavily search failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	seen := make(map[string]bool)
	var sourceURLs []string
	for _, result := range response.Results {
		if result.URL == "" || seen[result.URL] {
			continue
		}
		seen[result.URL] = true
		sourceURLs = append(sourceURLs, result.URL)
		if len(sourceURLs) >= maxWebSearchResults {
			break
		}
	}
	return response.Answer, sourceURLs, nil
}

// ToolDeps are the collaborators the session tools close over.
type ToolDeps struct {
	DB        *gorm.DB
	Runtime   *RuntimeContext
	Searcher  WebSearcher
	Retriever *knowledge.Retriever
	// LastUserMessage recovers the query when the model calls a tool
	// without arguments.
	LastUserMessage func() string
}

func (d *ToolDeps) effectiveQuery(args map[string]interface{}) string {
	query := ""
	if raw, ok := args["query"].(string); ok {
		query = strings.TrimSpace(raw)
	}
	if query == "" && d.LastUserMessage != nil {
		query = strings.TrimSpace(d.LastUserMessage())
	}
	return query
}

func (d *ToolDeps) notifyRoom(ctx context.Context, topic, message string, additional map[string]interface{}) {
	if d.Runtime == nil || d.Runtime.Room == nil {
		return
	}
	if err := room.SendTextMessage(ctx, d.Runtime.Room, topic, message, additional); err != nil {
		logger.Warn("Failed to notify client", zap.String("topic", topic), zap.Error(err))
	}
}

var queryParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "What to search for"}
	}
}`)

var memoryParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"key": {"type": "string", "description": "Short label for the information"},
		"value": {"type": "string", "description": "The information to remember"}
	},
	"required": ["key", "value"]
}`)

// RegisterSessionTools wires the built-in tools onto the provider. All
// tool failures become strings so the model can recover in conversation.
func RegisterSessionTools(ctx context.Context, provider llm.LLMProvider, deps *ToolDeps) {
	provider.RegisterFunctionToolDefinition(&llm.FunctionToolDefinition{
		Name:        "search_web",
		Description: "Search the web for real-time information.",
		Parameters:  queryParameters,
		Callback: func(args map[string]interface{}) (string, error) {
			return searchWeb(ctx, deps, args), nil
		},
	})

	provider.RegisterFunctionToolDefinition(&llm.FunctionToolDefinition{
		Name:        "search_knowledge_base",
		Description: "Search the internal knowledge base.",
		Parameters:  queryParameters,
		Callback: func(args map[string]interface{}) (string, error) {
			return searchKnowledgeBase(ctx, deps, args), nil
		},
	})

	provider.RegisterFunctionToolDefinition(&llm.FunctionToolDefinition{
		Name:        "store_long_term_memory_information",
		Description: "Store important info about the user for future conversations.",
		Parameters:  memoryParameters,
		Callback: func(args map[string]interface{}) (string, error) {
			return storeLongTermMemory(ctx, deps, args), nil
		},
	})
}

func searchWeb(ctx context.Context, deps *ToolDeps, args map[string]interface{}) string {
	query := deps.effectiveQuery(args)
	if query == "" {
		return "Please specify what to search for."
	}

	deps.notifyRoom(ctx, room.TopicMessage, "Searching the web...", nil)
	logger.Info("Searching the web", zap.String("query", query))

	if deps.Searcher == nil {
		return "Web search is not configured."
	}
	answer, sourceURLs, err := deps.Searcher.Search(ctx, query)
	if err != nil {
		logger.Error("Web search failed", zap.Error(err))
		return fmt.Sprintf("I encountered an error while searching: %v", err)
	}

	if len(sourceURLs) > 0 {
		deps.notifyRoom(ctx, room.TopicWebSearchSources, "", map[string]interface{}{
			"sources": sourceURLs,
		})
	}
	if answer == "" {
		answer = "I couldn't find specific information about that."
	}
	return fmt.Sprintf("Here's what I found:\n\n%s", answer)
}

func searchKnowledgeBase(ctx context.Context, deps *ToolDeps, args map[string]interface{}) string {
	query := deps.effectiveQuery(args)
	if query == "" {
		return "Please specify what to search for in the knowledge base."
	}

	deps.notifyRoom(ctx, room.TopicMessage, "Searching knowledge base...", nil)

	rt := deps.Runtime
	if rt == nil || rt.Namespace == "" || rt.IndexName == "" {
		return "Knowledge base is not configured yet. I'll answer with general knowledge instead."
	}
	if deps.Retriever == nil {
		return "Knowledge base is not configured yet. I'll answer with general knowledge instead."
	}

	result, err := deps.Retriever.Retrieve(ctx, rt.Namespace, rt.IndexName, query, 1)
	if err != nil {
		logger.Error("Knowledge base search failed", zap.Error(err))
		return fmt.Sprintf("Error accessing KB. Falling back to general knowledge on '%s'.", query)
	}
	if len(result.Results) == 0 {
		return fmt.Sprintf("No specific info about '%s' in KB. Falling back to general knowledge.", query)
	}

	if result.Page > 0 {
		deps.notifyRoom(ctx, room.TopicPresentationPageNumber, "", map[string]interface{}{
			"pageNumber": result.Page,
		})
	}
	content := result.Results[0].Content
	if content == "" {
		return fmt.Sprintf("No specific info about '%s' in KB. Falling back to general knowledge.", query)
	}
	return fmt.Sprintf("Based on your query:\n\n%s", content)
}

func storeLongTermMemory(ctx context.Context, deps *ToolDeps, args map[string]interface{}) string {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if key == "" || value == "" {
		return "Both key and value are required to store information."
	}

	deps.notifyRoom(ctx, room.TopicMessage, "Storing info in memory...", nil)

	if err := models.UpsertRealtimeInformation(deps.DB, deps.Runtime.CustomerID, key, value); err != nil {
		logger.Error("Failed to store memory", zap.Error(err))
		return fmt.Sprintf("Failed to store info: %v", err)
	}
	return "Stored successfully in memory"
}
