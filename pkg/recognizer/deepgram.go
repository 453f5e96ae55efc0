package recognizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	interfacesv1 "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	websocketv1 "github.com/deepgram/deepgram-go-sdk/pkg/client/listen/v1/websocket"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

const defaultDeepgramModel = "nova-2"

// DeepgramASR streams caller audio to Deepgram over a websocket and
// reports interim and final transcripts through the result callback.
type DeepgramASR struct {
	opt    Option
	client *websocketv1.Client

	mu       sync.Mutex
	onResult ResultCallback
	onError  ErrorCallback
	sentence string

	active    atomic.Bool
	closeChan chan struct{}
	closeOnce sync.Once
}

func NewDeepgramASR(opt Option) *DeepgramASR {
	opt.applyDefaults()
	if opt.Model == "" {
		opt.Model = defaultDeepgramModel
	}
	return &DeepgramASR{
		opt:       opt,
		closeChan: make(chan struct{}),
	}
}

func (dg *DeepgramASR) Provider() string {
	return ProviderDeepgram
}

func (dg *DeepgramASR) Init(onResult ResultCallback, onError ErrorCallback) {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	dg.onResult = onResult
	dg.onError = onError
}

func (dg *DeepgramASR) Connect(ctx context.Context) error {
	client.InitWithDefault()

	transcriptOptions := interfaces.LiveTranscriptionOptions{
		Model:          dg.opt.Model,
		Language:       dg.opt.Language,
		SampleRate:     dg.opt.SampleRate,
		Channels:       dg.opt.Channels,
		Encoding:       dg.opt.Encoding,
		SmartFormat:    true,
		Punctuate:      true,
		VadEvents:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
	}
	clientOptions := interfaces.ClientOptions{}

	var err error
	dg.client, err = client.NewWebSocketUsingCallback(ctx, dg.opt.APIKey, &clientOptions, &transcriptOptions, dg)
	if err != nil {
		logger.Error("Failed creating deepgram client", zap.Error(err))
		return err
	}

	if connected := dg.client.Connect(); !connected {
		logger.Error("Failed connecting to deepgram")
		return errors.New("deepgram: connect failed")
	}
	dg.active.Store(true)
	go dg.keepAlive()
	return nil
}

func (dg *DeepgramASR) Active() bool {
	return dg.active.Load()
}

func (dg *DeepgramASR) SendAudio(data []byte) error {
	if !dg.active.Load() {
		return errors.New("deepgram: not connected")
	}
	_, err := dg.client.Write(data)
	return err
}

func (dg *DeepgramASR) Finalize() error {
	if dg.client == nil {
		return nil
	}
	return dg.client.Finalize()
}

func (dg *DeepgramASR) Stop() error {
	dg.closeOnce.Do(func() {
		close(dg.closeChan)
	})
	dg.active.Store(false)
	if dg.client != nil {
		dg.client.Stop()
	}
	return nil
}

func (dg *DeepgramASR) keepAlive() {
	keepAliveDuration, _ := time.ParseDuration(dg.opt.KeepAliveDuration)
	if keepAliveDuration <= 0 {
		keepAliveDuration = 3 * time.Second
	}

	ticker := time.NewTicker(keepAliveDuration)
	defer ticker.Stop()

	for {
		select {
		case <-dg.closeChan:
			return
		case <-ticker.C:
			if err := dg.client.KeepAlive(); err != nil {
				logger.Error("Deepgram keep alive failed", zap.Error(err))
				dg.emitError(err, true)
				return
			}
		}
	}
}

func (dg *DeepgramASR) emitResult(text string, isFinal bool) {
	dg.mu.Lock()
	onResult := dg.onResult
	dg.mu.Unlock()
	if onResult != nil {
		onResult(text, isFinal)
	}
}

func (dg *DeepgramASR) emitError(err error, fatal bool) {
	dg.mu.Lock()
	onError := dg.onError
	dg.mu.Unlock()
	if onError != nil {
		onError(err, fatal)
	}
}

// Open implements the Deepgram callback interface.
func (dg *DeepgramASR) Open(or *interfacesv1.OpenResponse) error {
	logger.Info("Deepgram connection opened")
	return nil
}

func (dg *DeepgramASR) Message(mr *interfacesv1.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	sentence := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if sentence == "" {
		return nil
	}

	logger.Debug("Deepgram transcript received",
		zap.String("sentence", sentence),
		zap.Bool("isFinal", mr.IsFinal))

	if mr.IsFinal {
		dg.mu.Lock()
		dg.sentence = sentence
		dg.mu.Unlock()
		dg.emitResult(sentence, true)
	} else {
		dg.emitResult(sentence, false)
	}
	return nil
}

func (dg *DeepgramASR) Metadata(md *interfacesv1.MetadataResponse) error {
	logger.Debug("Deepgram metadata received", zap.String("requestId", md.RequestID))
	return nil
}

func (dg *DeepgramASR) SpeechStarted(ssr *interfacesv1.SpeechStartedResponse) error {
	logger.Debug("Deepgram speech started")
	return nil
}

func (dg *DeepgramASR) UtteranceEnd(ur *interfacesv1.UtteranceEndResponse) error {
	dg.mu.Lock()
	sentence := dg.sentence
	dg.sentence = ""
	dg.mu.Unlock()
	if sentence != "" {
		dg.emitResult(sentence, true)
	}
	return nil
}

// Close implements the Deepgram callback interface for connection close
// events. Stop ends the session from our side.
func (dg *DeepgramASR) Close(cr *interfacesv1.CloseResponse) error {
	logger.Info("Deepgram connection closed")
	dg.active.Store(false)
	return nil
}

func (dg *DeepgramASR) Error(er *interfacesv1.ErrorResponse) error {
	err := fmt.Errorf("deepgram: %s (%s): %s", er.ErrCode, er.ErrMsg, er.Description)
	logger.Error("Deepgram reported error", zap.Error(err))
	dg.emitError(err, true)
	return nil
}

func (dg *DeepgramASR) UnhandledEvent(byData []byte) error {
	logger.Warn("Deepgram unhandled event", zap.ByteString("data", byData))
	return nil
}
