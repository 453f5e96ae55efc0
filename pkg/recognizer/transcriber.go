package recognizer

import (
	"context"
	"fmt"
)

// ResultCallback receives transcript text. Interim results arrive with
// isFinal false and may be revised by later callbacks.
type ResultCallback func(text string, isFinal bool)

// ErrorCallback receives transcription errors. Fatal errors mean the
// service cannot continue for this session.
type ErrorCallback func(err error, fatal bool)

// TranscribeService turns caller audio into text.
type TranscribeService interface {
	Provider() string
	Init(onResult ResultCallback, onError ErrorCallback)
	Connect(ctx context.Context) error
	Active() bool
	SendAudio(data []byte) error
	Finalize() error
	Stop() error
}

const (
	ProviderDeepgram = "deepgram"
	ProviderWhisper  = "whisper"
)

// NewTranscribeService builds the transcriber for the configured provider.
func NewTranscribeService(provider string, opt Option) (TranscribeService, error) {
	switch provider {
	case ProviderDeepgram, "":
		return NewDeepgramASR(opt), nil
	case ProviderWhisper:
		return NewWhisperASR(opt), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", provider)
	}
}

// Option configures a transcriber. Zero values fall back to telephony
// defaults (16kHz mono linear16).
type Option struct {
	APIKey            string `json:"apiKey"`
	BaseURL           string `json:"baseUrl"`
	Model             string `json:"model"`
	Language          string `json:"language"`
	SampleRate        int    `json:"sampleRate"`
	Channels          int    `json:"channels"`
	Encoding          string `json:"encoding"`
	KeepAliveDuration string `json:"keepAliveDuration"`
}

func (o *Option) applyDefaults() {
	if o.SampleRate == 0 {
		o.SampleRate = 16000
	}
	if o.Channels == 0 {
		o.Channels = 1
	}
	if o.Encoding == "" {
		o.Encoding = "linear16"
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	if o.KeepAliveDuration == "" {
		o.KeepAliveDuration = "3s"
	}
}
