package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/llm"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/recognizer"
	"github.com/voicebridge-ai/voicebridge/pkg/room"
	"github.com/voicebridge-ai/voicebridge/pkg/synthesizer"
)

// SessionConfig collects the collaborators for one voice call.
type SessionConfig struct {
	DB       *gorm.DB
	Config   *config.Config
	Room     room.Room
	Runtime  *RuntimeContext
	Metadata CallMetadata
	Provider llm.LLMProvider
	STT      recognizer.TranscribeService
	TTS      synthesizer.SynthesisService

	// LLMOptions carries the provider profile's completion knobs. The
	// model and temperature get defaults when left unset.
	LLMOptions llm.QueryOptions
}

// Session runs one voice call: caller audio flows through the
// transcriber, final utterances through the model, and streamed reply
// segments through the synthesizer back into the room. Every usage
// event the provider reports is charged against the customer's credit
// balance as it arrives, detached from the turn loop.
type Session struct {
	db       *gorm.DB
	cfg      *config.Config
	room     room.Room
	rt       *RuntimeContext
	meta     CallMetadata
	provider llm.LLMProvider
	stt      recognizer.TranscribeService
	tts      synthesizer.SynthesisService
	llmOpts  llm.QueryOptions

	firstReplySent atomic.Bool

	// thinking, when set, is invoked before each reply is generated so
	// callers can play hold audio while the model works
	thinking func(ctx context.Context)

	// serializes reply generation; barge-in interrupts the holder
	replyMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(sc SessionConfig) *Session {
	opts := sc.LLMOptions
	if opts.Model == "" {
		opts.Model = sc.Metadata.LLMName
	}
	if opts.Temperature == nil {
		opts.Temperature = llm.Float32Ptr(0.7)
	}
	return &Session{
		db:       sc.DB,
		cfg:      sc.Config,
		room:     sc.Room,
		rt:       sc.Runtime,
		meta:     sc.Metadata,
		provider: sc.Provider,
		stt:      sc.STT,
		tts:      sc.TTS,
		llmOpts:  opts,
		done:     make(chan struct{}),
	}
}

// Done is closed when the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// SetThinkingHook installs the hold-audio hook. Must be called before
// Start.
func (s *Session) SetThinkingHook(hook func(ctx context.Context)) {
	s.thinking = hook
}

// Start connects the transcriber and wires the room handlers. It returns
// once the plumbing is in place; the call then runs on the room's
// receive loop until disconnect.
func (s *Session) Start(ctx context.Context) error {
	s.provider.OnUsage(func(usage llm.Usage) {
		// fire-and-forget so the deduction never stalls the turn loop
		go s.deductUsage(int64(usage.TotalTokens))
	})

	s.stt.Init(
		func(text string, isFinal bool) {
			if strings.TrimSpace(text) == "" {
				return
			}
			if !isFinal {
				// caller started talking over the agent
				s.provider.Interrupt()
				return
			}
			go s.handleUtterance(ctx, text)
		},
		func(err error, fatal bool) {
			if fatal {
				logger.Error("Transcriber failed, ending call", zap.Error(err))
				s.Close()
				return
			}
			logger.Warn("Transcriber error", zap.Error(err))
		},
	)
	if err := s.stt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect transcriber: %w", err)
	}

	s.room.OnAudio(func(frame []byte) {
		if err := s.stt.SendAudio(frame); err != nil {
			logger.Warn("Failed to forward caller audio", zap.Error(err))
		}
	})

	if s.cfg.SupportsTextChat {
		s.room.OnData(func(msg room.IncomingData) {
			if msg.Topic != room.TopicMessage {
				return
			}
			go s.handleTextChat(ctx, msg)
		})
	}

	s.room.OnDisconnect(func() {
		logger.Info("Room disconnected, closing session",
			zap.String("room", s.room.Name()))
		s.Close()
	})

	return nil
}

// Greet speaks the opening line. When the customer has stored realtime
// information the greeting weaves it in, otherwise the default
// instructions apply.
func (s *Session) Greet(ctx context.Context) {
	instructions := defaultGreetingInstructions

	info, err := models.GetRealtimeInformation(s.db, s.rt.CustomerID)
	if err != nil {
		logger.Warn("Failed to load realtime information", zap.Error(err))
	} else if len(info) > 0 {
		encoded, err := json.Marshal(info)
		if err == nil {
			instructions = fmt.Sprintf(
				"Here is stored information about this user: %s. Provide a warm greeting that naturally references what you remember about them, then ask how you can help today.",
				encoded)
		}
	}

	if err := s.generateReply(ctx, instructions, false); err != nil {
		logger.Error("Greeting failed", zap.Error(err))
	}
}

func (s *Session) handleUtterance(ctx context.Context, text string) {
	logger.Info("Caller said", zap.String("text", text))
	s.logTurn(text, true, 0)

	if s.thinking != nil {
		s.thinking(ctx)
	}
	if err := s.generateReply(ctx, text, true); err != nil {
		logger.Error("Reply generation failed", zap.Error(err))
	}
}

// generateReply streams a completion and synthesizes each sentence
// segment into the room as it arrives. persist controls whether the
// assembled reply is written to the transcript; greeting instructions
// are spoken but not persisted as caller turns.
func (s *Session) generateReply(ctx context.Context, text string, persist bool) error {
	s.replyMu.Lock()
	defer s.replyMu.Unlock()

	opts := s.llmOpts
	opts.Stream = true
	reply, err := s.provider.QueryStream(text, opts, func(segment string, isComplete bool) error {
		if isComplete {
			return nil
		}
		return s.speakSegment(ctx, segment)
	})
	if err != nil {
		return err
	}

	if reply != "" {
		if s.firstReplySent.CompareAndSwap(false, true) {
			logger.Info("First response sent", zap.String("room", s.room.Name()))
		}
		if err := room.SendTextMessage(ctx, s.room, room.TopicMessage, reply, map[string]interface{}{
			"role": "assistant",
		}); err != nil {
			logger.Warn("Failed to publish assistant transcript", zap.Error(err))
		}
		if persist {
			s.logTurn(reply, false, s.lastUsageCredits())
		}
	}
	return nil
}

// FirstResponseSent reports whether the caller has heard at least one
// reply.
func (s *Session) FirstResponseSent() bool {
	return s.firstReplySent.Load()
}

// lastUsageCredits prices the provider's most recent usage report for
// the transcript row. The charge itself rides the usage hook.
func (s *Session) lastUsageCredits() int64 {
	usage, ok := s.provider.GetLastUsage()
	if !ok || usage.TotalTokens == 0 {
		return 0
	}
	return models.CalculateCreditsUsed(int64(usage.TotalTokens),
		int64(s.cfg.TokensPerCredit), int64(s.cfg.MinimumCredit))
}

func (s *Session) speakSegment(ctx context.Context, segment string) error {
	spoken := strings.TrimSpace(synthesizer.StripEmoji(segment))
	if spoken == "" {
		return nil
	}
	buffer := &synthesizer.SynthesisBuffer{}
	if err := s.tts.Synthesize(ctx, buffer, spoken); err != nil {
		logger.Error("Synthesis failed", zap.String("segment", spoken), zap.Error(err))
		return nil
	}
	if len(buffer.Data) == 0 {
		return nil
	}
	return s.room.PublishAudio(ctx, buffer.Data)
}

// handleTextChat serves typed messages arriving on the message topic.
// Text chat has its own lower credit floor so a caller who can no longer
// afford voice can still finish the exchange in text.
func (s *Session) handleTextChat(ctx context.Context, msg room.IncomingData) {
	var incoming struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &incoming); err != nil || strings.TrimSpace(incoming.Message) == "" {
		return
	}
	question := strings.TrimSpace(incoming.Message)

	check, err := models.CheckCustomerCredits(s.db, s.rt.CustomerID, int64(s.cfg.TextChatCreditFloor))
	if err != nil {
		logger.Error("Text chat credit check failed", zap.Error(err))
		return
	}
	if !check.HasCredits {
		if err := room.SendTextMessage(ctx, s.room, room.TopicMessage,
			"I'm sorry, your account does not have enough credits to continue this chat. Please top up and try again.",
			map[string]interface{}{"role": "assistant"}); err != nil {
			logger.Warn("Failed to send credit decline", zap.Error(err))
		}
		return
	}

	requestID := uuid.New().String()
	s.logTurnWithRequest(question, true, 0, requestID)

	answer, err := s.provider.QueryWithOptions(question, s.llmOpts)
	if err != nil {
		logger.Error("Text chat completion failed", zap.Error(err))
		return
	}

	// the usage hook charges the completion; the row just records it
	s.logTurnWithRequest(answer, false, s.lastUsageCredits(), requestID)

	if err := room.SendTextMessage(ctx, s.room, room.TopicMessage, answer, map[string]interface{}{
		"role": "assistant",
	}); err != nil {
		logger.Warn("Failed to send text chat reply", zap.Error(err))
	}
}

func (s *Session) logTurn(message string, isQuestion bool, credits int64) {
	s.logTurnWithRequest(message, isQuestion, credits, uuid.New().String())
}

func (s *Session) logTurnWithRequest(message string, isQuestion bool, credits int64, requestID string) {
	_, err := models.LogChatTransaction(s.db, &models.ChatTransaction{
		ConversationID: s.rt.ConversationID,
		CustomerID:     s.rt.CustomerID,
		UserSessionID:  s.rt.UserSessionID,
		Message:        message,
		Credits:        credits,
		IsQuestion:     isQuestion,
		ChatType:       models.ChatTypeNormal,
		RequestID:      requestID,
	})
	if err != nil {
		logger.Error("Failed to persist transcript turn", zap.Error(err))
	}
}

// deductUsage charges one usage event against the customer's balance.
// Every event pays at least the minimum credit, matching how each model
// turn is billed.
func (s *Session) deductUsage(totalTokens int64) {
	if totalTokens == 0 {
		return
	}
	credits := models.CalculateCreditsUsed(totalTokens, int64(s.cfg.TokensPerCredit), int64(s.cfg.MinimumCredit))
	if err := models.DeductCustomerCredits(s.db, s.rt.CustomerID, credits); err != nil {
		logger.Error("Credit deduction failed",
			zap.Uint("customerID", s.rt.CustomerID),
			zap.Int64("credits", credits),
			zap.Error(err))
		return
	}
	logger.Info("Usage charged",
		zap.Uint("customerID", s.rt.CustomerID),
		zap.Int64("totalTokens", totalTokens),
		zap.Int64("credits", credits))
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.stt.Finalize(); err != nil {
			logger.Warn("Transcriber finalize failed", zap.Error(err))
		}
		if err := s.stt.Stop(); err != nil {
			logger.Warn("Transcriber stop failed", zap.Error(err))
		}
		if err := s.tts.Close(); err != nil {
			logger.Warn("Synthesizer close failed", zap.Error(err))
		}
		s.provider.Hangup()
		close(s.done)
	})
}
