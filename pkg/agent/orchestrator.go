package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/knowledge"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/mcp"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
)

const kbSummaryQuery = "Summarize the entire document for knowledge base"

// Orchestrator turns a dispatched room into a running voice session:
// resolve the call's bot and customer, gate on credits, assemble the
// provider stack for the bot's environment, and run the session until
// the caller hangs up.
type Orchestrator struct {
	db       *gorm.DB
	cfg      *config.Config
	resolver *mcp.Resolver
}

func NewOrchestrator(db *gorm.DB, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		db:       db,
		cfg:      cfg,
		resolver: mcp.NewResolver(db),
	}
}

// HandleJob serves one dispatched call to completion. A missing bot or a
// failed credit lookup is fatal; an exhausted balance ends the call
// gracefully after a short pause so the telephony leg tears down
// cleanly. Knowledge base, custom prompt and MCP lookups degrade to
// empty rather than failing the call.
func (o *Orchestrator) HandleJob(ctx context.Context, r room.Room) error {
	participant, err := r.WaitForParticipant(ctx)
	if err != nil {
		r.Disconnect()
		return fmt.Errorf("no participant joined: %w", err)
	}
	logger.Info("Participant joined",
		zap.String("room", r.Name()),
		zap.String("identity", participant.Identity))

	meta := ResolveMetadata(o.db, ParseCallMetadata(r.Metadata()), participant)

	chatBot, err := models.GetChatBotByID(o.db, meta.KnowledgebaseID)
	if err != nil {
		r.Disconnect()
		return fmt.Errorf("chat bot %d not found: %w", meta.KnowledgebaseID, err)
	}

	check, err := models.CheckCustomerCredits(o.db, meta.CustomerID, int64(o.cfg.MinimumCredit))
	if err != nil {
		r.Disconnect()
		return fmt.Errorf("credit check failed for customer %d: %w", meta.CustomerID, err)
	}
	if !check.HasCredits {
		logger.Warn("Customer out of credits, declining call",
			zap.Uint("customerID", meta.CustomerID),
			zap.Int64("currentCredits", check.CurrentCredits))
		time.Sleep(2 * time.Second)
		r.Disconnect()
		return nil
	}

	rt := newRuntimeContext(r, meta, chatBot)

	retriever := o.buildRetriever()
	kbSummary := o.summarizeKnowledgeBase(ctx, retriever, rt)
	customPrompt := o.resolveCustomPrompt(meta, rt)
	systemPrompt := BuildSystemPrompt(kbSummary, customPrompt, time.Now())

	profile := ProfileFor(ParseEnvironment(meta.Environment), o.cfg)
	provider := profile.NewLLM(ctx, systemPrompt)
	tts, err := profile.NewTTS(profile.Voice(meta.Voice))
	if err != nil {
		logger.Warn("TTS construction failed, using fallback providers", zap.Error(err))
		profile = FallbackProfile(o.cfg)
		provider = profile.NewLLM(ctx, systemPrompt)
		if tts, err = profile.NewTTS(profile.Voice(meta.Voice)); err != nil {
			r.Disconnect()
			return fmt.Errorf("failed to construct synthesizer: %w", err)
		}
	}
	stt, err := NewSTT(o.cfg)
	if err != nil {
		r.Disconnect()
		return fmt.Errorf("failed to construct transcriber: %w", err)
	}

	meta.LLMName = profile.Model(meta.LLMName)
	session := NewSession(SessionConfig{
		DB:         o.db,
		Config:     o.cfg,
		Room:       r,
		Runtime:    rt,
		Metadata:   meta,
		Provider:   provider,
		STT:        stt,
		TTS:        tts,
		LLMOptions: profile.QueryOptions(meta.LLMName),
	})

	RegisterSessionTools(ctx, provider, &ToolDeps{
		DB:        o.db,
		Runtime:   rt,
		Searcher:  NewTavilySearcher(o.cfg.TavilyAPIKey, o.cfg.TavilyBaseURL),
		Retriever: retriever,
		LastUserMessage: func() string {
			messages := provider.GetMessages()
			for i := len(messages) - 1; i >= 0; i-- {
				if messages[i].Role == "user" {
					return messages[i].Content
				}
			}
			return ""
		},
	})
	if o.cfg.SupportsLeadCapture {
		if err := RegisterLeadCaptureTool(o.db, provider, rt); err != nil {
			logger.Warn("Lead capture unavailable", zap.Error(err))
		}
	}

	serverURLs, err := o.resolver.GetMCPServerURLs(ctx, rt.CustomerID, rt.ChatBotID, rt.ShareUUID)
	if err != nil {
		logger.Warn("MCP server lookup failed", zap.Error(err))
		serverURLs = nil
	}
	bridge := mcp.AttachMCPTools(ctx, provider, serverURLs)
	defer bridge.Close()

	if err := session.Start(ctx); err != nil {
		session.Close()
		r.Disconnect()
		return err
	}
	session.Greet(ctx)

	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Close()
	}
	r.Disconnect()
	logger.Info("Call finished", zap.String("room", r.Name()))
	return nil
}

// newRuntimeContext builds the per-call state the tools see. The
// customer id comes from the resolved metadata so the account that
// passed the credit gate is the one every later charge and transcript
// lands on, even when the payload names a customer other than the
// bot's owner.
func newRuntimeContext(r room.Room, meta CallMetadata, chatBot *models.ChatBot) *RuntimeContext {
	return &RuntimeContext{
		Room:           r,
		Namespace:      chatBot.Namespace,
		IndexName:      chatBot.IndexName,
		CustomerID:     meta.CustomerID,
		ChatBotID:      chatBot.ChatBotID,
		ConversationID: meta.ConversationID,
		UserSessionID:  meta.UserSessionID,
		ShareUUID:      meta.ShareUUID,
	}
}

// buildRetriever assembles the vector store and embedder for knowledge
// base lookups. Returns nil when the store cannot be constructed; the
// session then answers from general knowledge.
func (o *Orchestrator) buildRetriever() *knowledge.Retriever {
	store, err := knowledge.GetVectorStoreByProvider(o.cfg.KnowledgeBaseProvider, map[string]interface{}{
		"api_key":  o.cfg.PineconeApiKey,
		"base_url": o.cfg.PineconeBaseURL,
		"address":  o.cfg.MilvusAddress,
		"username": o.cfg.MilvusUsername,
		"password": o.cfg.MilvusPassword,
	})
	if err != nil {
		logger.Warn("Vector store unavailable",
			zap.String("provider", o.cfg.KnowledgeBaseProvider),
			zap.Error(err))
		return nil
	}
	embedder := knowledge.NewEmbedder(o.cfg.OpenAIAPIKey, o.cfg.OpenAIBaseURL, o.cfg.EmbeddingModel)
	return knowledge.NewRetriever(store, embedder)
}

func (o *Orchestrator) summarizeKnowledgeBase(ctx context.Context, retriever *knowledge.Retriever, rt *RuntimeContext) string {
	if retriever == nil || rt.Namespace == "" || rt.IndexName == "" {
		return ""
	}
	result, err := retriever.Retrieve(ctx, rt.Namespace, rt.IndexName, kbSummaryQuery, 1)
	if err != nil {
		logger.Warn("Knowledge base summary failed", zap.Error(err))
		return ""
	}
	var parts []string
	for _, item := range result.Results {
		if item.Content != "" {
			parts = append(parts, item.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func (o *Orchestrator) resolveCustomPrompt(meta CallMetadata, rt *RuntimeContext) string {
	if strings.TrimSpace(meta.CustomPrompt) != "" {
		return meta.CustomPrompt
	}
	prompt, err := models.GetAgentCustomPrompt(o.db, rt.ChatBotID)
	if err != nil {
		logger.Warn("Custom prompt lookup failed", zap.Error(err))
		return ""
	}
	return prompt
}
