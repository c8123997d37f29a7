// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recognizer_deepgram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	internal_recognizer "github.com/rapidaai/media-core/internal/recognizer"
	"github.com/rapidaai/media-core/pkg/commons"
	"github.com/rapidaai/media-core/pkg/utils"
)

const (
	DefaultModel    = "nova"
	DefaultLanguage = "en-US"
	DefaultEncoding = "linear16"
)

// deepgramProvider opens live transcription sessions over the Deepgram
// websocket API.
type deepgramProvider struct {
	logger  commons.Logger
	key     string
	mdlOpts utils.Option
}

// NewProvider builds a Deepgram recognition provider. credentials must
// carry "key".
func NewProvider(logger commons.Logger, credentials map[string]interface{}, opts utils.Option) (internal_recognizer.Provider, error) {
	key, _ := credentials["key"].(string)
	if key == "" {
		return nil, errors.New("illegal vault config: key is required")
	}
	return &deepgramProvider{
		logger:  logger,
		key:     key,
		mdlOpts: opts,
	}, nil
}

func (dg *deepgramProvider) Name() string {
	return "deepgram"
}

// GetKey returns the configured API key.
func (dg *deepgramProvider) GetKey() string {
	return dg.key
}

// GetEncoding reports the wire encoding sent to Deepgram.
func (dg *deepgramProvider) GetEncoding() string {
	return DefaultEncoding
}

// SpeechToTextOptions builds the live transcription options from the
// session settings plus listen.* overrides.
func (dg *deepgramProvider) SpeechToTextOptions(cfg internal_recognizer.StreamConfig) *interfaces.LiveTranscriptionOptions {
	opts := &interfaces.LiveTranscriptionOptions{
		Model:          DefaultModel,
		Language:       DefaultLanguage,
		Channels:       cfg.Channels,
		SmartFormat:    true,
		InterimResults: cfg.InterimResults,
		FillerWords:    true,
		VadEvents:      cfg.VoiceActivityEvents,
		Endpointing:    "5",
		Punctuate:      cfg.Punctuation,
		NoDelay:        true,
		Encoding:       DefaultEncoding,
		SampleRate:     cfg.SampleRate,
		Diarize:        false,
		Multichannel:   false,
	}
	if len(cfg.Languages) > 0 {
		opts.Language = cfg.Languages[0]
	}
	if cfg.Model != "" {
		opts.Model = cfg.Model
	}

	if model, err := dg.mdlOpts.GetString("listen.model"); err == nil {
		opts.Model = model
	}
	if language, err := dg.mdlOpts.GetString("listen.language"); err == nil {
		opts.Language = language
	}
	if endpointing, err := dg.mdlOpts.GetString("listen.endpointing"); err == nil {
		opts.Endpointing = endpointing
	}
	if keywords, err := dg.mdlOpts.GetStringSlice("listen.keyword"); err == nil {
		// nova-3 renamed keywords to keyterms
		if strings.HasPrefix(opts.Model, "nova-3") {
			opts.Keyterm = keywords
		} else {
			opts.Keywords = keywords
		}
	}
	return opts
}

// OpenSession dials the live endpoint and starts the listener.
func (dg *deepgramProvider) OpenSession(ctx context.Context, cfg internal_recognizer.StreamConfig) (internal_recognizer.Session, error) {
	sess := &deepgramSession{
		logger: dg.logger,
		recv:   make(chan recvItem, 64),
		closed: make(chan struct{}),
	}

	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	client, err := listen.NewWSUsingCallback(ctx, dg.key, cOptions, dg.SpeechToTextOptions(cfg), &deepgramCallback{sess: sess})
	if err != nil {
		return nil, fmt.Errorf("deepgram client: %w", err)
	}
	sess.client = client

	if ok := client.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}
	return sess, nil
}

type recvItem struct {
	result internal_recognizer.Result
	err    error
}

// deepgramSession adapts the SDK callback surface to the Session
// interface. The SDK invokes the msginterfaces callbacks from its socket
// reader goroutine; results are handed over on a channel.
type deepgramSession struct {
	logger commons.Logger
	client *listen.WSCallback

	recv      chan recvItem
	closed    chan struct{}
	closeOnce sync.Once
}

func (ds *deepgramSession) Send(ctx context.Context, pcm []byte) error {
	select {
	case <-ds.closed:
		return errors.New("deepgram session closed")
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := ds.client.WriteBinary(pcm); err != nil {
		return fmt.Errorf("deepgram write: %w", err)
	}
	return nil
}

func (ds *deepgramSession) Recv() (internal_recognizer.Result, error) {
	select {
	case item := <-ds.recv:
		return item.result, item.err
	case <-ds.closed:
		return internal_recognizer.Result{}, internal_recognizer.ErrSessionExpired
	}
}

func (ds *deepgramSession) Close() error {
	ds.closeOnce.Do(func() {
		close(ds.closed)
		if ds.client != nil {
			ds.client.Stop()
		}
	})
	return nil
}

func (ds *deepgramSession) push(item recvItem) {
	select {
	case ds.recv <- item:
	case <-ds.closed:
	}
}

// ============================================================
// msginterfaces.LiveMessageCallback
// ============================================================

// deepgramCallback feeds SDK events into the owning session. A separate
// type because the callback surface has its own Close(CloseResponse).
type deepgramCallback struct {
	sess *deepgramSession
}

func (dc *deepgramCallback) Open(or *msginterfaces.OpenResponse) error {
	dc.sess.logger.Debug("deepgram stream open")
	return nil
}

func (dc *deepgramCallback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if strings.TrimSpace(alt.Transcript) == "" {
		return nil
	}
	dc.sess.push(recvItem{result: internal_recognizer.Result{
		Text:       alt.Transcript,
		IsFinal:    mr.IsFinal,
		Confidence: alt.Confidence,
	}})
	return nil
}

func (dc *deepgramCallback) Metadata(md *msginterfaces.MetadataResponse) error {
	return nil
}

func (dc *deepgramCallback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (dc *deepgramCallback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (dc *deepgramCallback) Close(cr *msginterfaces.CloseResponse) error {
	// server side close: the stream reached its end of life
	dc.sess.push(recvItem{err: internal_recognizer.ErrSessionExpired})
	return nil
}

func (dc *deepgramCallback) Error(er *msginterfaces.ErrorResponse) error {
	dc.sess.push(recvItem{err: fmt.Errorf("deepgram stream error: %s", er.Description)})
	return nil
}

func (dc *deepgramCallback) UnhandledEvent(byData []byte) error {
	return nil
}
