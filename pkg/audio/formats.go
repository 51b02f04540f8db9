package audio

import "time"

// Format constants shared by the engine, sources and sinks.
const (
	// Engine PCM format.
	SampleRate  = 48_000 // Hz
	NumChannels = 2      // interleaved stereo

	// Render frame (20 ms).
	FrameDuration = 20 * time.Millisecond
	FrameSamples  = 960                        // samples per channel
	FrameLen      = FrameSamples * NumChannels // interleaved float32 values
	FrameBytes    = FrameLen * 2               // 16-bit PCM
)
