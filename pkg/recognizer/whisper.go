package recognizer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// WhisperASR buffers PCM audio and transcribes the whole utterance in one
// request on Finalize. It trades latency for not needing a streaming
// endpoint, which suits text-first sessions and tests.
type WhisperASR struct {
	opt    Option
	client *openai.Client
	ctx    context.Context

	mu       sync.Mutex
	buffer   bytes.Buffer
	onResult ResultCallback
	onError  ErrorCallback
	active   bool
}

func NewWhisperASR(opt Option) *WhisperASR {
	opt.applyDefaults()
	if opt.Model == "" {
		opt.Model = openai.Whisper1
	}
	config := openai.DefaultConfig(opt.APIKey)
	if opt.BaseURL != "" {
		config.BaseURL = opt.BaseURL
	}
	return &WhisperASR{
		opt:    opt,
		client: openai.NewClientWithConfig(config),
	}
}

func (wp *WhisperASR) Provider() string {
	return ProviderWhisper
}

func (wp *WhisperASR) Init(onResult ResultCallback, onError ErrorCallback) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.onResult = onResult
	wp.onError = onError
}

func (wp *WhisperASR) Connect(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.ctx = ctx
	wp.active = true
	wp.buffer.Reset()
	return nil
}

func (wp *WhisperASR) Active() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.active
}

func (wp *WhisperASR) SendAudio(data []byte) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.active {
		return errors.New("whisper: not connected")
	}
	_, err := wp.buffer.Write(data)
	return err
}

// Finalize transcribes everything buffered since Connect and resets the
// buffer for the next utterance.
func (wp *WhisperASR) Finalize() error {
	wp.mu.Lock()
	if !wp.active {
		wp.mu.Unlock()
		return errors.New("whisper: not connected")
	}
	pcm := make([]byte, wp.buffer.Len())
	copy(pcm, wp.buffer.Bytes())
	wp.buffer.Reset()
	ctx := wp.ctx
	onResult := wp.onResult
	onError := wp.onError
	wp.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	request := openai.AudioRequest{
		Model:    wp.opt.Model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(encodeWAV(pcm, wp.opt.SampleRate, wp.opt.Channels)),
	}
	response, err := wp.client.CreateTranscription(ctx, request)
	if err != nil {
		logger.Error("Whisper transcription failed", zap.Error(err))
		if onError != nil {
			onError(err, false)
		}
		return err
	}
	if response.Text != "" && onResult != nil {
		onResult(response.Text, true)
	}
	return nil
}

func (wp *WhisperASR) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.active = false
	wp.buffer.Reset()
	return nil
}

// encodeWAV wraps raw 16-bit PCM in a RIFF header.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
