// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio_codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func TestNewPCMDecoderRejectsBadFormats(t *testing.T) {
	tests := []struct {
		name        string
		srcRate     int
		srcChannels int
		dstRate     int
	}{
		{"zero source rate", 0, 1, 16000},
		{"zero target rate", 8000, 1, 0},
		{"three channels", 8000, 3, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewPCMDecoder(tt.srcRate, tt.srcChannels, tt.dstRate)
			assert.Error(t, err)
			assert.Nil(t, d)
		})
	}
}

func TestPCMDecoderPassthrough(t *testing.T) {
	d, err := NewPCMDecoder(16000, 1, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, d.SampleRate())

	in := pcmBytes(100, -200, 300)
	out, err := d.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPCMDecoderUpsamples(t *testing.T) {
	d, err := NewPCMDecoder(8000, 1, 16000)
	require.NoError(t, err)

	out, err := d.Decode(pcmBytes(1000, 2000))
	require.NoError(t, err)
	// 2 samples at 8kHz cover the same time as 4 at 16kHz
	assert.Len(t, out, 8)
}

func TestPCMDecoderDownmixesStereo(t *testing.T) {
	d, err := NewPCMDecoder(16000, 2, 16000)
	require.NoError(t, err)

	// L/R pairs average per frame
	out, err := d.Decode(pcmBytes(1000, 3000, -500, 500))
	require.NoError(t, err)
	assert.Equal(t, pcmBytes(2000, 0), out)
}

func TestPCMDecoderEmptyPayload(t *testing.T) {
	d, err := NewPCMDecoder(8000, 1, 16000)
	require.NoError(t, err)

	out, err := d.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
