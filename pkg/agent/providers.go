package agent

import (
	"context"
	"strings"

	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/llm"
	"github.com/voicebridge-ai/voicebridge/pkg/recognizer"
	"github.com/voicebridge-ai/voicebridge/pkg/synthesizer"
)

// Environment selects which model vendor backs a call.
type Environment string

const (
	EnvironmentGroq   Environment = "groq"
	EnvironmentGemini Environment = "gemini"
	EnvironmentOpenAI Environment = "openai"
)

// ParseEnvironment normalizes the metadata environment string. Unknown
// values fall back to groq, matching the dispatch default.
func ParseEnvironment(value string) Environment {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), " ", "") {
	case "gemini":
		return EnvironmentGemini
	case "openai":
		return EnvironmentOpenAI
	default:
		return EnvironmentGroq
	}
}

// ProviderProfile bundles the LLM endpoint and speech services for one
// environment, with its default model, voice and query knobs.
type ProviderProfile struct {
	Environment Environment

	LLMAPIKey         string
	LLMBaseURL        string
	DefaultLLMModel   string
	Temperature       *float32
	ToolChoice        string
	ParallelToolCalls *bool

	TTSProvider  synthesizer.TTSProvider
	TTSAPIKey    string
	TTSBaseURL   string
	DefaultVoice string
}

// ProfileFor returns the profile for an environment. Every environment
// maps to an OpenAI-compatible chat endpoint; they differ in base URL,
// default model and speech stack.
func ProfileFor(env Environment, cfg *config.Config) ProviderProfile {
	switch env {
	case EnvironmentGemini:
		return ProviderProfile{
			Environment:     EnvironmentGemini,
			LLMAPIKey:       cfg.GeminiAPIKey,
			LLMBaseURL:      cfg.GeminiBaseURL,
			DefaultLLMModel: "gemini-2.5-flash",
			ToolChoice:      "auto",
			TTSProvider:     synthesizer.ProviderCartesia,
			TTSAPIKey:       cfg.CartesiaAPIKey,
			TTSBaseURL:      cfg.CartesiaBaseURL,
			DefaultVoice:    "f786b574-daa5-4673-aa0c-cbe3e8534c02",
		}
	case EnvironmentOpenAI:
		return ProviderProfile{
			Environment:       EnvironmentOpenAI,
			LLMAPIKey:         cfg.OpenAIAPIKey,
			LLMBaseURL:        cfg.OpenAIBaseURL,
			DefaultLLMModel:   "gpt-5",
			ToolChoice:        "auto",
			ParallelToolCalls: llm.BoolPtr(true),
			TTSProvider:       synthesizer.ProviderOpenAI,
			TTSAPIKey:         cfg.OpenAIAPIKey,
			DefaultVoice:      "alloy",
		}
	default:
		return ProviderProfile{
			Environment:       EnvironmentGroq,
			LLMAPIKey:         cfg.GroqAPIKey,
			LLMBaseURL:        cfg.GroqBaseURL,
			DefaultLLMModel:   "openai/gpt-oss-20b",
			Temperature:       llm.Float32Ptr(0.5),
			ToolChoice:        "auto",
			ParallelToolCalls: llm.BoolPtr(true),
			TTSProvider:       synthesizer.ProviderGroq,
			TTSAPIKey:         cfg.GroqAPIKey,
			TTSBaseURL:        cfg.GroqBaseURL,
			DefaultVoice:      "Fritz-PlayAI",
		}
	}
}

// FallbackProfile is the last resort when the selected profile cannot be
// constructed: plain OpenAI with a small model and the stock voice.
func FallbackProfile(cfg *config.Config) ProviderProfile {
	return ProviderProfile{
		Environment:     EnvironmentOpenAI,
		LLMAPIKey:       cfg.OpenAIAPIKey,
		LLMBaseURL:      cfg.OpenAIBaseURL,
		DefaultLLMModel: "gpt-4o-mini",
		ToolChoice:      "auto",
		TTSProvider:     synthesizer.ProviderOpenAI,
		TTSAPIKey:       cfg.OpenAIAPIKey,
		DefaultVoice:    "alloy",
	}
}

// Model resolves the model name, preferring the caller's request.
func (p ProviderProfile) Model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.DefaultLLMModel
}

// Voice resolves the voice, preferring the caller's request.
func (p ProviderProfile) Voice(requested string) string {
	if requested != "" {
		return requested
	}
	return p.DefaultVoice
}

// QueryOptions assembles the completion options for this profile,
// preferring the caller's model when one was requested.
func (p ProviderProfile) QueryOptions(requestedModel string) llm.QueryOptions {
	return llm.QueryOptions{
		Model:             p.Model(requestedModel),
		Temperature:       p.Temperature,
		ToolChoice:        p.ToolChoice,
		ParallelToolCalls: p.ParallelToolCalls,
	}
}

// NewLLM builds the chat provider for this profile.
func (p ProviderProfile) NewLLM(ctx context.Context, systemPrompt string) llm.LLMProvider {
	return llm.NewOpenAIProvider(ctx, p.LLMAPIKey, p.LLMBaseURL, systemPrompt)
}

// NewTTS builds the speech synthesizer for this profile.
func (p ProviderProfile) NewTTS(voice string) (synthesizer.SynthesisService, error) {
	return synthesizer.NewSynthesisService(p.TTSProvider, synthesizer.SynthesisOption{
		APIKey:  p.TTSAPIKey,
		BaseURL: p.TTSBaseURL,
		Voice:   p.Voice(voice),
	})
}

// NewSTT builds the transcriber from process configuration. STT does not
// vary by environment.
func NewSTT(cfg *config.Config) (recognizer.TranscribeService, error) {
	switch cfg.STTProvider {
	case recognizer.ProviderDeepgram:
		return recognizer.NewTranscribeService(recognizer.ProviderDeepgram, recognizer.Option{
			APIKey: cfg.DeepgramAPIKey,
		})
	default:
		return recognizer.NewTranscribeService(recognizer.ProviderWhisper, recognizer.Option{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
	}
}
