package synthesizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// OpenAIConfig configures the OpenAI speech endpoint.
type OpenAIConfig struct {
	APIKey     string  `json:"api_key"`
	Model      string  `json:"model"`
	Voice      string  `json:"voice"`
	Speed      float64 `json:"speed"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth"`
	Codec      string  `json:"codec"`
	BaseURL    string  `json:"base_url"`
}

type OpenAIService struct {
	opt    OpenAIConfig
	mu     sync.Mutex
	client *http.Client
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

const openAITTSURL = "/v1/audio/speech"

func NewOpenAIConfig(opt SynthesisOption) OpenAIConfig {
	config := OpenAIConfig{
		APIKey:     opt.APIKey,
		Model:      opt.Model,
		Voice:      opt.Voice,
		Speed:      1.0,
		SampleRate: 24000,
		Channels:   1,
		BitDepth:   16,
		Codec:      "wav",
		BaseURL:    opt.BaseURL,
	}
	if config.Model == "" {
		config.Model = "tts-1"
	}
	if config.Voice == "" {
		config.Voice = "alloy"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	return config
}

func NewOpenAIService(opt OpenAIConfig) *OpenAIService {
	return &OpenAIService{
		opt:    opt,
		client: &http.Client{},
	}
}

func (os *OpenAIService) Provider() TTSProvider {
	return ProviderOpenAI
}

func (os *OpenAIService) Format() StreamFormat {
	os.mu.Lock()
	defer os.mu.Unlock()
	return StreamFormat{
		SampleRate: os.opt.SampleRate,
		BitDepth:   os.opt.BitDepth,
		Channels:   os.opt.Channels,
		Codec:      os.opt.Codec,
	}
}

func (os *OpenAIService) CacheKey(text string) string {
	os.mu.Lock()
	defer os.mu.Unlock()
	return fmt.Sprintf("openai.tts-%s-%s-%d-%s.%s", os.opt.Model, os.opt.Voice, os.opt.SampleRate, textDigest(text), os.opt.Codec)
}

func (os *OpenAIService) Synthesize(ctx context.Context, handler SynthesisHandler, text string) error {
	os.mu.Lock()
	opt := os.opt
	os.mu.Unlock()

	if opt.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	req := openAISpeechRequest{
		Model:          opt.Model,
		Input:          text,
		Voice:          opt.Voice,
		ResponseFormat: opt.Codec,
		Speed:          opt.Speed,
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := opt.BaseURL + openAITTSURL
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+opt.APIKey)

	resp, err := os.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(audioData) > 0 {
		handler.OnMessage(audioData)
	}

	logger.Info("OpenAI synthesis completed",
		zap.Int("audioSize", len(audioData)),
		zap.String("model", opt.Model),
		zap.String("voice", opt.Voice))
	return nil
}

func (os *OpenAIService) Close() error {
	if os.client != nil {
		os.client.CloseIdleConnections()
	}
	return nil
}
