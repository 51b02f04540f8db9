package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

func TestFloat32PCM16RoundTrip(t *testing.T) {
	src := []float32{0, 0.5, -0.5, 0.25, -1, 1}

	buf := make([]byte, len(src)*2)
	n := audio.Float32ToPCM16LE(buf, src)
	require.Equal(t, len(src)*2, n)

	dst := make([]float32, len(src))
	m := audio.PCM16LEToFloat32(dst, buf)
	require.Equal(t, len(src), m)

	for i := range src {
		assert.InDelta(t, src[i], dst[i], 2.0/32768.0, "sample %d", i)
	}
}

func TestFloat32ToPCM16LEClampsOutOfRange(t *testing.T) {
	buf := make([]byte, 4)
	audio.Float32ToPCM16LE(buf, []float32{2.0, -2.0})

	dst := make([]float32, 2)
	audio.PCM16LEToFloat32(dst, buf)

	assert.InDelta(t, 1.0, dst[0], 0.001)
	assert.InDelta(t, -1.0, dst[1], 0.001)
}

func TestMonoToStereo(t *testing.T) {
	st := audio.MonoToStereo([]float32{0.1, 0.2})
	assert.Equal(t, []float32{0.1, 0.1, 0.2, 0.2}, st)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, float32(0), audio.Clamp01(-0.5))
	assert.Equal(t, float32(1), audio.Clamp01(1.5))
	assert.Equal(t, float32(0.7), audio.Clamp01(0.7))
}

func TestClampSample(t *testing.T) {
	assert.Equal(t, float32(1), audio.ClampSample(1.8))
	assert.Equal(t, float32(-1), audio.ClampSample(-1.8))
	assert.Equal(t, float32(-0.3), audio.ClampSample(-0.3))
}
