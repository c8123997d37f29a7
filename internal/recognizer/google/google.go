// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recognizer_google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	internal_recognizer "github.com/rapidaai/media-core/internal/recognizer"
	"github.com/rapidaai/media-core/pkg/commons"
	"github.com/rapidaai/media-core/pkg/utils"
)

const (
	DefaultLanguageCode = "en-US"
	DefaultModel        = "long"
)

// googleProvider opens Speech-to-Text v2 streaming sessions.
type googleProvider struct {
	logger       commons.Logger
	clientOptons []option.ClientOption
	mdlOpts      utils.Option
	projectId    string
}

// NewProvider builds a Google recognition provider. credentials carries
// "key", "project_id" and/or "service_account_key"; opts the listen.*
// overrides.
func NewProvider(logger commons.Logger, credentials map[string]interface{}, opts utils.Option) (internal_recognizer.Provider, error) {
	co := make([]option.ClientOption, 0)
	var projectID string
	if v, ok := credentials["key"]; ok {
		if key, ok := v.(string); ok && key != "" {
			co = append(co, option.WithAPIKey(key))
		}
	}
	if v, ok := credentials["project_id"]; ok {
		if prj, ok := v.(string); ok && prj != "" {
			projectID = prj
			co = append(co, option.WithQuotaProject(prj))
		}
	}
	if v, ok := credentials["service_account_key"]; ok {
		if serviceCrd, ok := v.(string); ok && serviceCrd != "" {
			co = append(co, option.WithCredentialsJSON([]byte(serviceCrd)))
		}
	}
	if projectID == "" {
		return nil, errors.New("illegal vault config: project_id is required")
	}

	return &googleProvider{
		logger:       logger,
		clientOptons: co,
		mdlOpts:      opts,
		projectId:    projectID,
	}, nil
}

func (gog *googleProvider) Name() string {
	return "google"
}

// GetRecognizer returns the recognizer resource path, regional when
// listen.region is set to anything but "global".
func (gog *googleProvider) GetRecognizer() string {
	if region, err := gog.mdlOpts.GetString("listen.region"); err == nil {
		if region != "global" {
			return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", gog.projectId, region)
		}
	}
	return fmt.Sprintf("projects/%s/locations/global/recognizers/_", gog.projectId)
}

func (gog *googleProvider) GetSpeechToTextClientOptions() []option.ClientOption {
	if region, err := gog.mdlOpts.GetString("listen.region"); err == nil {
		if region != "global" {
			return append(gog.clientOptons, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:443", region)))
		}
	}
	return gog.clientOptons
}

// StreamingOptions builds the streaming recognition config from the fixed
// session settings plus listen.* overrides.
func (gog *googleProvider) StreamingOptions(cfg internal_recognizer.StreamConfig) *speechpb.StreamingRecognitionConfig {
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{DefaultLanguageCode}
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(cfg.SampleRate),
					AudioChannelCount: int32(cfg.Channels),
				},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: cfg.Punctuation,
				EnableWordConfidence:       true,
				ProfanityFilter:            true,
			},
			LanguageCodes: languages,
			Model:         model,
		},
		StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
			EnableVoiceActivityEvents: cfg.VoiceActivityEvents,
			InterimResults:            cfg.InterimResults,
		},
	}
}

// OpenSession dials the (optionally regional) Speech endpoint and sends
// the configuration request before any audio.
func (gog *googleProvider) OpenSession(ctx context.Context, cfg internal_recognizer.StreamConfig) (internal_recognizer.Session, error) {
	client, err := speech.NewClient(ctx, gog.GetSpeechToTextClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("google streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: gog.GetRecognizer(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: gog.StreamingOptions(cfg),
		},
	}); err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("google streaming config: %w", err)
	}

	return &googleSession{
		logger:     gog.logger,
		client:     client,
		stream:     stream,
		recognizer: gog.GetRecognizer(),
		cancel:     cancel,
	}, nil
}

// googleSession is one live StreamingRecognize stream.
type googleSession struct {
	logger     commons.Logger
	client     *speech.Client
	stream     speechpb.Speech_StreamingRecognizeClient
	recognizer string
	cancel     context.CancelFunc

	pending   []internal_recognizer.Result
	closeOnce sync.Once
}

func (gs *googleSession) Send(ctx context.Context, pcm []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := gs.stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: gs.recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	})
	if err != nil {
		return mapStreamErr(err)
	}
	return nil
}

// Recv returns one recognition result per call, buffering the extra
// alternatives a single response may carry.
func (gs *googleSession) Recv() (internal_recognizer.Result, error) {
	for len(gs.pending) == 0 {
		resp, err := gs.stream.Recv()
		if err != nil {
			return internal_recognizer.Result{}, mapStreamErr(err)
		}
		for _, res := range resp.GetResults() {
			alts := res.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			gs.pending = append(gs.pending, internal_recognizer.Result{
				Text:       alts[0].GetTranscript(),
				IsFinal:    res.GetIsFinal(),
				Confidence: float64(alts[0].GetConfidence()),
			})
		}
	}
	out := gs.pending[0]
	gs.pending = gs.pending[1:]
	return out, nil
}

func (gs *googleSession) Close() error {
	var err error
	gs.closeOnce.Do(func() {
		err = gs.stream.CloseSend()
		gs.cancel()
		if cerr := gs.client.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// mapStreamErr normalizes the provider's end-of-stream signals. Google
// closes long streams with OUT_OF_RANGE at the max stream duration; a
// clean EOF after CloseSend means the same thing.
func mapStreamErr(err error) error {
	if errors.Is(err, io.EOF) {
		return internal_recognizer.ErrSessionExpired
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.OutOfRange {
		return internal_recognizer.ErrSessionExpired
	}
	return err
}
