// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcmFromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func samplesFromPCM(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}

func TestNormalizeGainBoostsQuietAudio(t *testing.T) {
	pcm := pcmFromSamples([]int16{2000, -2000, 3000, -1500})
	factor := NormalizeGain(pcm)

	assert.Greater(t, factor, 1.0)
	samples := samplesFromPCM(pcm)
	assert.Equal(t, int16(GainTargetPeak), samples[2])
}

func TestNormalizeGainCapsFactor(t *testing.T) {
	pcm := pcmFromSamples([]int16{1200, -1200})
	factor := NormalizeGain(pcm)

	assert.InDelta(t, GainMaxFactor, factor, 1e-9)
	samples := samplesFromPCM(pcm)
	assert.Equal(t, int16(1200*GainMaxFactor), samples[0])
}

func TestNormalizeGainLeavesSilence(t *testing.T) {
	pcm := pcmFromSamples([]int16{10, -20, 5, 0})
	factor := NormalizeGain(pcm)

	assert.Equal(t, 1.0, factor)
	assert.Equal(t, []int16{10, -20, 5, 0}, samplesFromPCM(pcm))
}

func TestNormalizeGainLeavesLoudAudio(t *testing.T) {
	pcm := pcmFromSamples([]int16{30000, -30000})
	factor := NormalizeGain(pcm)

	assert.Equal(t, 1.0, factor)
	assert.Equal(t, []int16{30000, -30000}, samplesFromPCM(pcm))
}

func TestNormalizeGainNeverClips(t *testing.T) {
	pcm := pcmFromSamples([]int16{8000, 23000, -23000})
	NormalizeGain(pcm)

	for _, s := range samplesFromPCM(pcm) {
		assert.LessOrEqual(t, int(s), 32767)
		assert.GreaterOrEqual(t, int(s), -32768)
	}
}
