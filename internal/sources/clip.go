package sources

import (
	"context"
	"io"
	"strconv"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// ClipSource plays one clip from the store, optionally looping. The
// decoded clip is shared through the store cache; the source only
// tracks its own playback position.
type ClipSource struct {
	id    string
	store *Store
	file  string
	loop  bool

	clip *audio.Clip
	pos  int
}

// NewClipSource returns a clip source for file, resolved against the
// store's library directory at Initialize time.
func NewClipSource(id string, store *Store, file string, loop bool) *ClipSource {
	return &ClipSource{id: id, store: store, file: file, loop: loop}
}

func (c *ClipSource) ID() string { return c.id }

// Initialize loads and decodes the clip. Decoding happens here, off the
// render path, so starting the source later is allocation-free.
func (c *ClipSource) Initialize(_ context.Context) error {
	clip, err := c.store.Load(c.file)
	if err != nil {
		return err
	}
	c.clip = clip
	c.pos = 0
	return nil
}

func (c *ClipSource) ReadPCM(dst []float32) (int, error) {
	samples := c.clip.Samples
	if len(samples) == 0 || (c.pos >= len(samples) && !c.loop) {
		return 0, io.EOF
	}

	written := 0
	for written < len(dst) {
		if c.pos >= len(samples) {
			if !c.loop {
				break
			}
			c.pos = 0
		}
		n := copy(dst[written:], samples[c.pos:])
		written += n
		c.pos += n
	}
	if written == 0 {
		return 0, io.EOF
	}
	return written, nil
}

// Close is a no-op: the decoded clip belongs to the store cache, and a
// removal racing an in-flight frame must not invalidate what the render
// path is reading.
func (c *ClipSource) Close() error { return nil }

// Metadata implements mixer.MetadataProvider.
func (c *ClipSource) Metadata() map[string]string {
	return map[string]string{
		"kind": "clip",
		"file": c.file,
		"loop": strconv.FormatBool(c.loop),
	}
}
