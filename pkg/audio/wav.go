package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrUnsupportedWAV marks WAV streams that are not uncompressed 16-bit
// PCM. Compressed encodings are decoded upstream, never here.
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

// Clip is a fully decoded in-memory PCM clip.
type Clip struct {
	SampleRate  int
	NumChannels int
	Samples     []float32 // interleaved, normalized [-1, 1]
}

// Duration returns the clip length in wall time.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 || c.NumChannels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.NumChannels

	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// DecodeWAV reads a RIFF/WAVE stream holding uncompressed 16-bit PCM and
// returns the decoded clip. Unknown chunks (LIST, fact, ...) are skipped.
func DecodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, errors.New("not a riff/wave stream")
	}

	var (
		numChannels uint16
		sampleRate  uint32
		haveFmt     bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("wav stream has no data chunk")
			}

			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("short fmt chunk")
			}
			var fmtChunk [16]byte
			if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(fmtChunk[0:2])
			numChannels = binary.LittleEndian.Uint16(fmtChunk[2:4])
			sampleRate = binary.LittleEndian.Uint32(fmtChunk[4:8])
			bits := binary.LittleEndian.Uint16(fmtChunk[14:16])
			if format != 1 || bits != 16 {
				return nil, ErrUnsupportedWAV
			}
			if size > 16 {
				if _, err := io.CopyN(io.Discard, r, int64(size-16)); err != nil {
					return nil, fmt.Errorf("skip fmt extension: %w", err)
				}
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("data chunk before fmt chunk")
			}
			raw := make([]byte, size)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("read data chunk: %w", err)
			}
			samples := make([]float32, len(raw)/2)
			PCM16LEToFloat32(samples, raw)

			return &Clip{
				SampleRate:  int(sampleRate),
				NumChannels: int(numChannels),
				Samples:     samples,
			}, nil
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++ // chunks are word-aligned
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

// Writer streams normalized float32 samples into a WAV container as
// 16-bit PCM. The RIFF sizes are written as placeholders and patched on
// Close, so the destination must support seeking. The destination itself
// is never closed.
type Writer struct {
	w         io.WriteSeeker
	dataBytes uint32
	buf       []byte
	closed    bool
}

// NewWriter writes the WAV header and returns a Writer appending to w.
func NewWriter(w io.WriteSeeker, sampleRate, numChannels int) (*Writer, error) {
	if err := writeWAVHeader(w, sampleRate, numChannels, 0); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}

	return &Writer{w: w}, nil
}

// WriteSamples appends interleaved samples to the data chunk.
func (w *Writer) WriteSamples(samples []float32) error {
	if w.closed {
		return errors.New("wav writer is closed")
	}

	need := len(samples) * 2
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	buf := w.buf[:need]
	Float32ToPCM16LE(buf, samples)

	n, err := w.w.Write(buf)
	w.dataBytes += uint32(n)
	if err != nil {
		return fmt.Errorf("write pcm data: %w", err)
	}

	return nil
}

// Close patches the RIFF and data chunk sizes in place. Safe to call twice.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("seek riff size: %w", err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, w.dataBytes+36); err != nil {
		return fmt.Errorf("patch riff size: %w", err)
	}
	if _, err := w.w.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("seek data size: %w", err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, w.dataBytes); err != nil {
		return fmt.Errorf("patch data size: %w", err)
	}

	return nil
}

func writeWAVHeader(w io.Writer, sampleRate, numChannels int, dataSize uint32) error {
	const bitsPerSample = 16
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	write := func(v any) error {
		return binary.Write(w, binary.LittleEndian, v)
	}

	// RIFF chunk
	if _, err := io.WriteString(w, "RIFF"); err != nil {
		return err
	}
	if err := write(dataSize + 36); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "WAVE"); err != nil {
		return err
	}

	// fmt  sub-chunk
	if _, err := io.WriteString(w, "fmt "); err != nil {
		return err
	}
	if err := write(uint32(16)); err != nil { // PCM header size
		return err
	}
	if err := write(uint16(1)); err != nil { // PCM format
		return err
	}
	if err := write(uint16(numChannels)); err != nil {
		return err
	}
	if err := write(uint32(sampleRate)); err != nil {
		return err
	}
	if err := write(uint32(byteRate)); err != nil {
		return err
	}
	if err := write(uint16(blockAlign)); err != nil {
		return err
	}
	if err := write(uint16(bitsPerSample)); err != nil {
		return err
	}

	// data sub-chunk
	if _, err := io.WriteString(w, "data"); err != nil {
		return err
	}

	return write(dataSize)
}
