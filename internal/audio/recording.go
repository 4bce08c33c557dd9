// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"ledviz/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// wavRecorder writes interleaved int32 capture buffers to a PCM WAV file,
// narrowed to the recording bit depth. write and close may race; the mutex
// is uncontended except at shutdown.
type wavRecorder struct {
	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	shift  int
	frames uint64
}

func newWAVRecorder(path string, rate, channels, bitDepth, framesPerBuffer int) (*wavRecorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &wavRecorder{
		file: file,
		enc:  wav.NewEncoder(file, rate, bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
			Data:           make([]int, framesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
		shift: 32 - bitDepth,
	}, nil
}

// write is a no-op once the recorder is closed.
func (r *wavRecorder) write(pcm []int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}

	if cap(r.buf.Data) < len(pcm) {
		r.buf.Data = make([]int, len(pcm))
	}
	data := r.buf.Data[:len(pcm)]
	for i, v := range pcm {
		data[i] = int(v >> r.shift)
	}
	r.buf.Data = data
	r.frames += uint64(len(pcm) / r.buf.Format.NumChannels)
	return r.enc.Write(r.buf)
}

// close finalises the WAV header and closes the file.
func (r *wavRecorder) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	err := r.enc.Close()
	r.enc = nil
	return errors.Join(err, r.file.Close())
}

// StartRecording writes the raw captured input to filename as PCM WAV at
// the given bit depth (16, 24 or 32).
func (e *Engine) StartRecording(filename string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	rec, err := newWAVRecorder(filename, int(e.config.SampleRate), e.channels, bitDepth, e.config.FramesPerBuffer)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.close()
		return ErrAlreadyRecording
	}
	return nil
}

// StopRecording finishes the current recording, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	if err := rec.close(); err != nil {
		return err
	}
	log.Debugf("Recorded %d frames", rec.frames)
	return nil
}

// IsRecording reports whether input is being written to disk.
func (e *Engine) IsRecording() bool {
	return e.recorder.Load() != nil
}
