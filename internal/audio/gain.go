// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

// Gain normalization bounds. Quiet callers get boosted toward the target
// peak before recognition; loud audio is never attenuated.
const (
	GainTargetPeak   = 24000 // ~73% of int16 full scale
	GainMaxFactor    = 8.0
	GainActivePeak   = 1000 // below this the buffer is treated as silence
	int16SampleLimit = 32767
)

// NormalizeGain boosts quiet little-endian int16 PCM toward GainTargetPeak
// in place. The gain factor is capped at GainMaxFactor, silence and already
// loud audio pass through untouched. Returns the applied factor.
func NormalizeGain(pcm []byte) float64 {
	peak := peakAmplitude(pcm)
	if peak < GainActivePeak || peak >= GainTargetPeak {
		return 1.0
	}

	factor := float64(GainTargetPeak) / float64(peak)
	if factor > GainMaxFactor {
		factor = GainMaxFactor
	}

	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		scaled := int32(float64(sample) * factor)
		if scaled > int16SampleLimit {
			scaled = int16SampleLimit
		} else if scaled < -int16SampleLimit-1 {
			scaled = -int16SampleLimit - 1
		}
		pcm[i] = byte(scaled)
		pcm[i+1] = byte(scaled >> 8)
	}
	return factor
}

func peakAmplitude(pcm []byte) int {
	peak := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int(int16(pcm[i]) | int16(pcm[i+1])<<8)
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}
