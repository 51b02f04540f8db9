package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// ErrOutsideLibrary is returned for clip paths that resolve outside the
// configured library directory.
var ErrOutsideLibrary = errors.New("clip path escapes the library directory")

// Store loads WAV clips from the library directory, converts them to
// the engine format and caches the decoded result. Clips must already
// be at the engine sample rate; mono material is widened to stereo.
type Store struct {
	logger *zap.Logger
	dir    string
	cache  *ClipCache
}

// NewStore creates a Store rooted at dir.
func NewStore(logger *zap.Logger, dir string, cache *ClipCache) *Store {
	return &Store{logger: logger, dir: dir, cache: cache}
}

// resolve joins name onto the library root and rejects escapes.
func (s *Store) resolve(name string) (string, error) {
	root := filepath.Clean(s.dir)
	path := filepath.Clean(filepath.Join(root, name))
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideLibrary, name)
	}
	return path, nil
}

// Load returns the decoded clip for name, from cache when possible.
// Concurrent loads of the same uncached clip may decode twice; the
// cache keeps one of the results.
func (s *Store) Load(name string) (*audio.Clip, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	if clip, ok := s.cache.Get(path); ok {
		return clip, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode clip %q: %w", name, err)
	}
	clip, err = s.conform(name, clip)
	if err != nil {
		return nil, err
	}

	s.cache.Add(path, clip)
	s.logger.Debug("Clip loaded",
		zap.String("clip", name),
		zap.Duration("duration", clip.Duration()),
		zap.Int("cached", s.cache.Len()))
	return clip, nil
}

// conform converts a decoded clip to the engine format. There is no
// resampler; material recorded at another rate is rejected rather than
// played at the wrong pitch.
func (s *Store) conform(name string, clip *audio.Clip) (*audio.Clip, error) {
	if clip.SampleRate != audio.SampleRate {
		return nil, fmt.Errorf("clip %q: unsupported sample rate %d, want %d", name, clip.SampleRate, audio.SampleRate)
	}
	switch clip.NumChannels {
	case audio.NumChannels:
		return clip, nil
	case 1:
		return &audio.Clip{
			SampleRate:  clip.SampleRate,
			NumChannels: audio.NumChannels,
			Samples:     audio.MonoToStereo(clip.Samples),
		}, nil
	default:
		return nil, fmt.Errorf("clip %q: unsupported channel count %d", name, clip.NumChannels)
	}
}
