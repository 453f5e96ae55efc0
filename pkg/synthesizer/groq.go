package synthesizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

const (
	groqTTSModel       = "playai-tts"
	groqTTSModelArabic = "playai-tts-arabic"
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// arabicPlayAIVoices carry their own model on the Groq endpoint. Requests
// with one of these voices but the English model get rejected.
var arabicPlayAIVoices = map[string]bool{
	"Ahmad-PlayAI":  true,
	"Amira-PlayAI":  true,
	"Khalid-PlayAI": true,
	"Nasser-PlayAI": true,
}

// GroqConfig configures PlayAI speech over the Groq API.
type GroqConfig struct {
	APIKey     string `json:"api_key"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Codec      string `json:"codec"`
	BaseURL    string `json:"base_url"`
}

type GroqService struct {
	opt    GroqConfig
	mu     sync.Mutex
	client *resty.Client
}

func NewGroqConfig(opt SynthesisOption) GroqConfig {
	config := GroqConfig{
		APIKey:     opt.APIKey,
		Voice:      opt.Voice,
		SampleRate: 24000,
		Channels:   1,
		BitDepth:   16,
		Codec:      "wav",
		BaseURL:    opt.BaseURL,
	}
	if config.Voice == "" {
		config.Voice = "Fritz-PlayAI"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultGroqBaseURL
	}
	return config
}

func NewGroqService(opt GroqConfig) *GroqService {
	return &GroqService{
		opt:    opt,
		client: resty.New().SetBaseURL(opt.BaseURL),
	}
}

func (gs *GroqService) Provider() TTSProvider {
	return ProviderGroq
}

// ModelForVoice picks the PlayAI model matching the voice's language.
func ModelForVoice(voice string) string {
	if arabicPlayAIVoices[voice] {
		return groqTTSModelArabic
	}
	return groqTTSModel
}

func (gs *GroqService) Format() StreamFormat {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return StreamFormat{
		SampleRate: gs.opt.SampleRate,
		BitDepth:   gs.opt.BitDepth,
		Channels:   gs.opt.Channels,
		Codec:      gs.opt.Codec,
	}
}

func (gs *GroqService) CacheKey(text string) string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return fmt.Sprintf("groq.tts-%s-%d-%s.%s", gs.opt.Voice, gs.opt.SampleRate, textDigest(text), gs.opt.Codec)
}

func (gs *GroqService) Synthesize(ctx context.Context, handler SynthesisHandler, text string) error {
	gs.mu.Lock()
	opt := gs.opt
	gs.mu.Unlock()

	if opt.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}

	model := ModelForVoice(opt.Voice)
	resp, err := gs.client.R().
		SetContext(ctx).
		SetAuthToken(opt.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"model":           model,
			"input":           text,
			"voice":           opt.Voice,
			"response_format": opt.Codec,
		}).
		Post("/audio/speech")
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	audioData := resp.Body()
	if len(audioData) > 0 {
		handler.OnMessage(audioData)
	}

	logger.Info("Groq synthesis completed",
		zap.Int("audioSize", len(audioData)),
		zap.String("model", model),
		zap.String("voice", opt.Voice))
	return nil
}

func (gs *GroqService) Close() error {
	return nil
}
