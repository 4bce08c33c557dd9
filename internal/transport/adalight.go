// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"ledviz/internal/log"
	"ledviz/internal/sample"

	"go.bug.st/serial"
)

// portTimeout bounds reads on the serial port; the strip never answers.
const portTimeout = 100 * time.Millisecond

// openSerial is replaced in tests.
var openSerial = serial.Open

// Adalight drives a strip speaking the Adalight serial protocol. A mono
// frame is laid out as a mirrored spectrum with an accent bar after each
// half:
//
//	[levels reversed][accent][levels][accent]
//
// so bass sits at the centre and the accent bars flash with Impact. A
// split frame puts the two sides next to each other in each half, each
// accent bar following its own side:
//
//	[right reversed][left][left accent][left reversed][right][right accent]
type Adalight struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	palette  *Palette
	channels int
	accent   int
	buf      []byte
	sent     uint64
}

// NewAdalight writes frames for channels outputs plus two accent bars of
// accent LEDs each to w.
func NewAdalight(w io.Writer, palette *Palette, channels, accent int) (*Adalight, error) {
	if channels < 1 {
		return nil, fmt.Errorf("adalight: channels must be at least 1, got %d", channels)
	}
	if accent < 0 {
		return nil, fmt.Errorf("adalight: accent length must not be negative, got %d", accent)
	}
	count := 2*channels + 2*accent
	if count > 1<<16 {
		return nil, fmt.Errorf("adalight: %d LEDs exceed the protocol limit", count)
	}

	a := &Adalight{
		w:        w,
		palette:  palette,
		channels: channels,
		accent:   accent,
		buf:      make([]byte, 0, 6+3*count),
	}
	if c, ok := w.(io.Closer); ok {
		a.closer = c
	}
	return a, nil
}

// OpenAdalight opens the serial port at path as 8N1 at baud, without flow
// control. A regular file is written as is, which captures the byte stream.
func OpenAdalight(path string, baud int, palette *Palette, channels, accent int) (*Adalight, error) {
	w, err := openDevice(path, baud)
	if err != nil {
		return nil, fmt.Errorf("open LED device: %w", err)
	}
	a, err := NewAdalight(w, palette, channels, accent)
	if err != nil {
		w.Close()
		return nil, err
	}
	log.Infof("Adalight: Writing %d LEDs to %s at %d baud", a.LEDCount(), path, baud)
	return a, nil
}

func openDevice(path string, baud int) (io.WriteCloser, error) {
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		return os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	}
	if baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", baud)
	}
	port, err := openSerial(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(portTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// LEDCount returns the number of LEDs addressed per frame.
func (a *Adalight) LEDCount() int { return 2*a.channels + 2*a.accent }

// AdalightHeader returns the 6 byte frame header for count LEDs.
func AdalightHeader(count int) [6]byte {
	n := count - 1
	hi, lo := byte(n>>8), byte(n)
	return [6]byte{'A', 'd', 'a', hi, lo, hi ^ lo ^ 0x55}
}

// Encode appends the wire form of frame to dst.
func (a *Adalight) Encode(dst []byte, frame sample.Frame) []byte {
	h := AdalightHeader(a.LEDCount())
	dst = append(dst, h[:]...)

	if frame.Split() {
		left := a.channels / 2
		right := a.channels - left
		dst = a.appendReversed(dst, frame.LevelsR, right)
		dst = a.appendForward(dst, frame.Levels, left)
		dst = a.appendAccent(dst, frame.Impact)
		dst = a.appendReversed(dst, frame.Levels, left)
		dst = a.appendForward(dst, frame.LevelsR, right)
		return a.appendAccent(dst, frame.ImpactR)
	}

	dst = a.appendReversed(dst, frame.Levels, a.channels)
	dst = a.appendAccent(dst, frame.Impact)
	dst = a.appendForward(dst, frame.Levels, a.channels)
	return a.appendAccent(dst, frame.Impact)
}

func (a *Adalight) appendForward(dst []byte, levels []float64, n int) []byte {
	for i := range n {
		dst = a.appendLevel(dst, levels, i)
	}
	return dst
}

func (a *Adalight) appendReversed(dst []byte, levels []float64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		dst = a.appendLevel(dst, levels, i)
	}
	return dst
}

// appendLevel pads channels missing from levels with black.
func (a *Adalight) appendLevel(dst []byte, levels []float64, i int) []byte {
	var c RGB
	if i < len(levels) {
		c = a.palette.Color(i, levels[i])
	}
	return append(dst, c.R, c.G, c.B)
}

func (a *Adalight) appendAccent(dst []byte, impact float64) []byte {
	e := scale8(255, impact)
	for range a.accent {
		dst = append(dst, e, e, e)
	}
	return dst
}

// Send encodes and writes one frame.
func (a *Adalight) Send(frame sample.Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return fmt.Errorf("adalight: closed")
	}
	a.buf = a.Encode(a.buf[:0], frame)
	if _, err := a.w.Write(a.buf); err != nil {
		return fmt.Errorf("adalight: write: %w", err)
	}
	a.sent++
	return nil
}

// Close closes the underlying device when it is closable.
func (a *Adalight) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return nil
	}
	log.Debugf("Adalight: Closing after %d frames", a.sent)
	a.w = nil
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

var _ Transport = (*Adalight)(nil)
