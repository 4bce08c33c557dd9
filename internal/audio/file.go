// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ledviz/internal/log"
	"ledviz/internal/queue"
	"ledviz/internal/sample"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// pairDecoder yields stereo pairs from an encoded stream. ReadPairs
// returns io.EOF once the stream is exhausted.
type pairDecoder interface {
	ReadPairs(dst []sample.Pair) (int, error)
	SampleRate() int
	Rewind() error
}

// FileSource plays an audio file into the pipeline at its native rate.
type FileSource struct {
	path string
	loop bool
	file *os.File
	dec  pairDecoder
}

// OpenFile opens path and selects a decoder by extension.
func OpenFile(path string, loop bool) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}

	dec, err := newPairDecoder(filepath.Ext(path), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if dec.SampleRate() <= 0 {
		f.Close()
		return nil, fmt.Errorf("%s: invalid sample rate %d", path, dec.SampleRate())
	}

	return &FileSource{path: path, loop: loop, file: f, dec: dec}, nil
}

func newPairDecoder(ext string, rs io.ReadSeeker) (pairDecoder, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return newWAVPairs(rs)
	case ".mp3":
		return newMP3Pairs(rs)
	case ".ogg", ".oga":
		return newOggPairs(rs)
	case ".flac":
		return newFLACPairs(rs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// SampleRate returns the file's native rate.
func (s *FileSource) SampleRate() float64 { return float64(s.dec.SampleRate()) }

// Run plays the file in real time. Without looping it returns
// ErrEndOfStream after the last pair.
func (s *FileSource) Run(ctx context.Context, out *queue.Queue[sample.Pair]) error {
	log.WithFields(log.Fields{
		"file":        s.path,
		"sample_rate": s.dec.SampleRate(),
		"loop":        s.loop,
	}).Info("File playback started")

	return pace(ctx, s.SampleRate(), out, s.Fill)
}

// Fill decodes up to len(dst) pairs, rewinding at the end when looping.
func (s *FileSource) Fill(dst []sample.Pair) (int, error) {
	total := 0
	progressed := true
	for total < len(dst) {
		n, err := s.dec.ReadPairs(dst[total:])
		total += n
		if n > 0 {
			progressed = true
		}

		switch {
		case err == nil:
			if n == 0 {
				return total, nil
			}
		case !errors.Is(err, io.EOF):
			return total, fmt.Errorf("decode %s: %w", s.path, err)
		case !s.loop || !progressed:
			// Not looping, or a rewind produced nothing.
			return total, ErrEndOfStream
		default:
			if err := s.dec.Rewind(); err != nil {
				return total, fmt.Errorf("rewind %s: %w", s.path, err)
			}
			progressed = false
			log.Debugf("Looping %s", s.path)
		}
	}
	return total, nil
}

func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// --- WAV ---

type wavPairs struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	scale    float32
	unsigned bool
}

func newWAVPairs(rs io.ReadSeeker) (*wavPairs, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	// IsValidFile walks the chunk list; start over at the PCM data.
	if err := dec.Rewind(); err != nil {
		return nil, fmt.Errorf("locate WAV data: %w", err)
	}

	channels := int(dec.NumChans)
	bits := int(dec.BitDepth)
	if channels < 1 || bits < 8 || bits > 32 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bits)
	}

	return &wavPairs{
		dec: dec,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
		},
		channels: channels,
		scale:    1 / float32(int64(1)<<(bits-1)),
		unsigned: bits == 8,
	}, nil
}

func (w *wavPairs) ReadPairs(dst []sample.Pair) (int, error) {
	want := len(dst) * w.channels
	if cap(w.buf.Data) < want {
		w.buf.Data = make([]int, want)
	}
	w.buf.Data = w.buf.Data[:want]

	n, err := w.dec.PCMBuffer(w.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	frames := n / w.channels
	for i := range frames {
		l := w.value(w.buf.Data[i*w.channels])
		r := l
		if w.channels > 1 {
			r = w.value(w.buf.Data[i*w.channels+1])
		}
		dst[i] = sample.Pair{L: l, R: r}
	}
	return frames, nil
}

func (w *wavPairs) value(v int) float32 {
	if w.unsigned {
		v -= 128
	}
	return float32(v) * w.scale
}

func (w *wavPairs) SampleRate() int { return int(w.dec.SampleRate) }

func (w *wavPairs) Rewind() error { return w.dec.Rewind() }

// --- MP3 ---

// mp3Pairs reads the decoder's 16-bit little-endian stereo output.
type mp3Pairs struct {
	dec *mp3.Decoder
	raw []byte
}

func newMP3Pairs(r io.Reader) (*mp3Pairs, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Pairs{dec: dec}, nil
}

func (m *mp3Pairs) ReadPairs(dst []sample.Pair) (int, error) {
	want := len(dst) * 4
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
	}
	raw := m.raw[:want]

	n, err := io.ReadFull(m.dec, raw)
	frames := n / 4
	for i := range frames {
		o := i * 4
		l := int16(uint16(raw[o]) | uint16(raw[o+1])<<8)
		r := int16(uint16(raw[o+2]) | uint16(raw[o+3])<<8)
		dst[i] = sample.Pair{L: float32(l) / 32768, R: float32(r) / 32768}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if frames > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return frames, err
}

func (m *mp3Pairs) SampleRate() int { return m.dec.SampleRate() }

func (m *mp3Pairs) Rewind() error {
	_, err := m.dec.Seek(0, io.SeekStart)
	return err
}

// --- Ogg Vorbis ---

type oggPairs struct {
	reader   *oggvorbis.Reader
	channels int
	buf      []float32
}

func newOggPairs(r io.Reader) (*oggPairs, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggPairs{reader: reader, channels: reader.Channels()}, nil
}

func (o *oggPairs) ReadPairs(dst []sample.Pair) (int, error) {
	want := len(dst) * o.channels
	if cap(o.buf) < want {
		o.buf = make([]float32, want)
	}
	buf := o.buf[:want]

	n, err := o.reader.Read(buf)
	frames := n / o.channels
	for i := range frames {
		l := buf[i*o.channels]
		r := l
		if o.channels > 1 {
			r = buf[i*o.channels+1]
		}
		dst[i] = sample.Pair{L: l, R: r}
	}
	if frames > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return frames, err
}

func (o *oggPairs) SampleRate() int { return o.reader.SampleRate() }

func (o *oggPairs) Rewind() error { return o.reader.SetPosition(0) }

// --- FLAC ---

type flacPairs struct {
	stream  *flac.Stream
	scale   float32
	pending []sample.Pair
}

func newFLACPairs(rs io.ReadSeeker) (*flacPairs, error) {
	stream, err := flac.NewSeek(rs)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	bps := int(stream.Info.BitsPerSample)
	if bps < 4 || bps > 32 {
		return nil, fmt.Errorf("unsupported FLAC bit depth %d", bps)
	}
	return &flacPairs{
		stream: stream,
		scale:  1 / float32(int64(1)<<(bps-1)),
	}, nil
}

func (f *flacPairs) ReadPairs(dst []sample.Pair) (int, error) {
	total := copy(dst, f.pending)
	f.pending = f.pending[total:]
	for total < len(dst) {
		frame, err := f.stream.ParseNext()
		if err != nil {
			if total > 0 && errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}

		nSamples := int(frame.Subframes[0].NSamples)
		stereo := len(frame.Subframes) > 1
		f.pending = f.pending[:0]
		for i := range nSamples {
			l := float32(frame.Subframes[0].Samples[i]) * f.scale
			r := l
			if stereo {
				r = float32(frame.Subframes[1].Samples[i]) * f.scale
			}
			f.pending = append(f.pending, sample.Pair{L: l, R: r})
		}
		n := copy(dst[total:], f.pending)
		f.pending = f.pending[n:]
		total += n
	}
	return total, nil
}

func (f *flacPairs) SampleRate() int { return int(f.stream.Info.SampleRate) }

func (f *flacPairs) Rewind() error {
	f.pending = nil
	_, err := f.stream.Seek(0)
	return err
}
