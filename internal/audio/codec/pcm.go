// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio_codec

import (
	"fmt"

	internal_audio "github.com/rapidaai/media-core/internal/audio"
)

// PCMDecoder adapts raw LINEAR16 sources to the recognition format:
// telephony style legs deliver 8kHz (sometimes stereo) PCM, the provider
// sessions want 16kHz mono. Stateless; safe to share across frames of one
// track.
type PCMDecoder struct {
	srcRate     int
	srcChannels int
	dstRate     int
}

// NewPCMDecoder creates a decoder converting srcRate/srcChannels LINEAR16
// input to mono PCM at dstRate.
func NewPCMDecoder(srcRate, srcChannels, dstRate int) (*PCMDecoder, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("unsupported pcm rates %d -> %d", srcRate, dstRate)
	}
	if srcChannels != 1 && srcChannels != 2 {
		return nil, fmt.Errorf("unsupported pcm channel count %d", srcChannels)
	}
	return &PCMDecoder{
		srcRate:     srcRate,
		srcChannels: srcChannels,
		dstRate:     dstRate,
	}, nil
}

// Decode downmixes stereo input and resamples to the target rate.
func (d *PCMDecoder) Decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	pcm := payload
	if d.srcChannels == 2 {
		pcm = internal_audio.StereoToMono(pcm)
	}
	return internal_audio.ResampleMono16(pcm, d.srcRate, d.dstRate), nil
}

// SampleRate reports the PCM output rate of this decoder.
func (d *PCMDecoder) SampleRate() int {
	return d.dstRate
}
