// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio_codec

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// maxFrameSamples covers a 120ms Opus frame at 16kHz mono.
const maxFrameSamples = 1920

// OpusDecoder decodes RTP Opus payloads straight to 16kHz mono LINEAR16
// PCM. Opus decoders are multi-rate, so asking libopus for 16kHz output
// avoids a separate resampling pass on the recognition path. Not safe for
// concurrent use; each inbound track owns one decoder.
type OpusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	pcmBuf     []int16
}

// NewOpusDecoder creates a mono decoder producing PCM at sampleRate.
func NewOpusDecoder(sampleRate int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder init: %w", err)
	}
	return &OpusDecoder{
		dec:        dec,
		sampleRate: sampleRate,
		pcmBuf:     make([]int16, maxFrameSamples),
	}, nil
}

// Decode decodes one Opus payload and returns little-endian int16 PCM.
// The returned slice is freshly allocated; callers may retain it.
func (d *OpusDecoder) Decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(payload, d.pcmBuf)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = byte(d.pcmBuf[i])
		out[i*2+1] = byte(d.pcmBuf[i] >> 8)
	}
	return out, nil
}

// SampleRate reports the PCM output rate of this decoder.
func (d *OpusDecoder) SampleRate() int {
	return d.sampleRate
}
