// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResampleMono16Passthrough(t *testing.T) {
	pcm := pcmFromSamples([]int16{1, 2, 3, 4})
	out := ResampleMono16(pcm, 16000, 16000)
	assert.Equal(t, pcm, out)
}

func TestResampleMono16Downsample(t *testing.T) {
	// 48kHz -> 16kHz keeps one of every three samples
	src := make([]int16, 480) // 10ms at 48kHz
	for i := range src {
		src[i] = int16(i)
	}
	out := ResampleMono16(pcmFromSamples(src), 48000, 16000)
	assert.Len(t, out, 160*2) // 10ms at 16kHz
}

func TestResampleMono16Upsample(t *testing.T) {
	src := []int16{0, 300}
	out := samplesFromPCM(ResampleMono16(pcmFromSamples(src), 8000, 16000))
	assert.Len(t, out, 4)
	// interpolated midpoint lies between the two source samples
	assert.Equal(t, int16(0), out[0])
	assert.InDelta(t, 150, int(out[1]), 1)
}

func TestStereoToMonoAverages(t *testing.T) {
	stereo := pcmFromSamples([]int16{100, 200, -100, 100})
	mono := samplesFromPCM(StereoToMono(stereo))
	assert.Equal(t, []int16{150, 0}, mono)
}

func TestAudioConfigConversions(t *testing.T) {
	cfg := RecognitionConfig()
	assert.Equal(t, 32, cfg.BytesPerMs())
	assert.Equal(t, 8000, cfg.BytesFor(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, cfg.DurationOf(8000))
}
