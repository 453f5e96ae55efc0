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
	defaultCartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaAPIVersion     = "2024-06-10"
)

// CartesiaConfig configures the Cartesia Sonic endpoint.
type CartesiaConfig struct {
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	VoiceID    string `json:"voice_id"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	BaseURL    string `json:"base_url"`
}

type CartesiaService struct {
	opt    CartesiaConfig
	mu     sync.Mutex
	client *resty.Client
}

func NewCartesiaConfig(opt SynthesisOption) CartesiaConfig {
	config := CartesiaConfig{
		APIKey:     opt.APIKey,
		Model:      opt.Model,
		VoiceID:    opt.Voice,
		Language:   "en",
		SampleRate: 24000,
		Channels:   1,
		BitDepth:   16,
		BaseURL:    opt.BaseURL,
	}
	if config.Model == "" {
		config.Model = "sonic-2"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultCartesiaBaseURL
	}
	return config
}

func NewCartesiaService(opt CartesiaConfig) *CartesiaService {
	return &CartesiaService{
		opt:    opt,
		client: resty.New().SetBaseURL(opt.BaseURL),
	}
}

func (cs *CartesiaService) Provider() TTSProvider {
	return ProviderCartesia
}

func (cs *CartesiaService) Format() StreamFormat {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return StreamFormat{
		SampleRate: cs.opt.SampleRate,
		BitDepth:   cs.opt.BitDepth,
		Channels:   cs.opt.Channels,
		Codec:      "pcm",
	}
}

func (cs *CartesiaService) CacheKey(text string) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return fmt.Sprintf("cartesia.tts-%s-%s-%d-%s.pcm", cs.opt.Model, cs.opt.VoiceID, cs.opt.SampleRate, textDigest(text))
}

func (cs *CartesiaService) Synthesize(ctx context.Context, handler SynthesisHandler, text string) error {
	cs.mu.Lock()
	opt := cs.opt
	cs.mu.Unlock()

	if opt.APIKey == "" {
		return fmt.Errorf("CARTESIA_API_KEY is required")
	}

	body := map[string]interface{}{
		"model_id":   opt.Model,
		"transcript": text,
		"language":   opt.Language,
		"output_format": map[string]interface{}{
			"container":   "raw",
			"encoding":    "pcm_s16le",
			"sample_rate": opt.SampleRate,
		},
	}
	if opt.VoiceID != "" {
		body["voice"] = map[string]interface{}{
			"mode": "id",
			"id":   opt.VoiceID,
		}
	}

	resp, err := cs.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", opt.APIKey).
		SetHeader("Cartesia-Version", cartesiaAPIVersion).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/tts/bytes")
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

	logger.Info("Cartesia synthesis completed",
		zap.Int("audioSize", len(audioData)),
		zap.String("model", opt.Model),
		zap.String("voiceId", opt.VoiceID))
	return nil
}

func (cs *CartesiaService) Close() error {
	return nil
}
