package synthesizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var emojiRegex = regexp.MustCompile(`[\x{00A9}\x{00AE}\x{203C}\x{2049}\x{2122}\x{2139}\x{2194}-\x{2199}\x{21A9}-\x{21AA}\x{231A}-\x{231B}\x{2328}\x{23CF}\x{23E9}-\x{23F3}\x{23F8}-\x{23FA}\x{24C2}\x{25AA}-\x{25AB}\x{25B6}\x{25C0}\x{25FB}-\x{25FE}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{2B05}-\x{2B07}\x{2B1B}-\x{2B1C}\x{2B50}\x{2B55}\x{3030}\x{303D}\x{3297}\x{3299}\x{1F004}\x{1F0CF}\x{1F170}-\x{1F251}\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F910}-\x{1F93E}\x{1F940}-\x{1F94C}\x{1F950}-\x{1F96B}\x{1F980}-\x{1F997}\x{1F9C0}-\x{1F9E6}\x{1FA70}-\x{1FA74}\x{1FA78}-\x{1FA7A}\x{1FA80}-\x{1FA86}\x{1FA90}-\x{1FAA8}\x{1FAB0}-\x{1FAB6}\x{1FAC0}-\x{1FAC2}\x{1FAD0}-\x{1FAD6}\x{1F1E6}-\x{1F1FF}\x{200D}\x{FE0F}]`)

// TTSProvider identifies a speech synthesis backend.
type TTSProvider string

const (
	ProviderOpenAI   TTSProvider = "openai"
	ProviderGroq     TTSProvider = "groq"
	ProviderCartesia TTSProvider = "cartesia"
)

func (tp TTSProvider) ToString() string {
	return string(tp)
}

// StreamFormat describes the audio a synthesizer produces.
type StreamFormat struct {
	SampleRate int    `json:"sampleRate"`
	BitDepth   int    `json:"bitDepth"`
	Channels   int    `json:"channels"`
	Codec      string `json:"codec"`
}

// SynthesisHandler receives synthesized audio as it becomes available.
type SynthesisHandler interface {
	OnMessage([]byte)
}

type SynthesisService interface {
	Provider() TTSProvider
	Format() StreamFormat
	CacheKey(text string) string
	Synthesize(ctx context.Context, handler SynthesisHandler, text string) error
	Close() error
}

// SynthesisBuffer collects synthesized audio in memory.
type SynthesisBuffer struct {
	Data []byte
}

func (s *SynthesisBuffer) OnMessage(data []byte) {
	s.Data = append(s.Data, data...)
}

// StripEmoji removes emoji before synthesis. Most TTS backends either
// read them aloud or fail on them.
func StripEmoji(text string) string {
	return emojiRegex.ReplaceAllString(text, "")
}

func textDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// NewSynthesisService builds the synthesizer for the named provider.
func NewSynthesisService(provider TTSProvider, opt SynthesisOption) (SynthesisService, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIService(NewOpenAIConfig(opt)), nil
	case ProviderGroq:
		return NewGroqService(NewGroqConfig(opt)), nil
	case ProviderCartesia:
		return NewCartesiaService(NewCartesiaConfig(opt)), nil
	default:
		return nil, fmt.Errorf("synthesis: unknown provider: %s", provider)
	}
}

// SynthesisOption carries provider credentials and voice selection.
type SynthesisOption struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
	Voice   string `json:"voice"`
}
