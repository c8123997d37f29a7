// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import "time"

// Opus audio constants (WebRTC standard: 48kHz)
const (
	OpusSampleRate    = 48000
	OpusFrameDuration = 20   // milliseconds
	OpusFrameBytes    = 1920 // 960 samples * 2 bytes (20ms at 48kHz)
	OpusChannels      = 2    // Opus RTP always signals 2 encoding channels (opus/48000/2) per RFC 7587, even for mono voice
	OpusPayloadType   = 111  // Standard dynamic payload type for Opus
	OpusSDPFmtpLine   = "minptime=10;useinbandfec=1;stereo=0;sprop-stereo=0"
)

// Internal recognition format: LINEAR16 little-endian PCM
const (
	RecognitionSampleRate = 16000
	RecognitionChannels   = 1
	BytesPerSample        = 2
)

// AudioConfig describes a raw PCM stream.
type AudioConfig struct {
	SampleRate int
	Channels   int
}

// RecognitionConfig is the fixed format every provider session receives.
func RecognitionConfig() AudioConfig {
	return AudioConfig{SampleRate: RecognitionSampleRate, Channels: RecognitionChannels}
}

// BytesPerMs returns the PCM byte rate per millisecond for this config.
func (c AudioConfig) BytesPerMs() int {
	return c.SampleRate * c.Channels * BytesPerSample / 1000
}

// BytesFor returns the PCM byte count covering d of audio in this config.
func (c AudioConfig) BytesFor(d time.Duration) int {
	return c.BytesPerMs() * int(d.Milliseconds())
}

// DurationOf returns the play time of n PCM bytes in this config.
func (c AudioConfig) DurationOf(n int) time.Duration {
	bpms := c.BytesPerMs()
	if bpms == 0 {
		return 0
	}
	return time.Duration(n/bpms) * time.Millisecond
}
