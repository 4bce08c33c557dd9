// SPDX-License-Identifier: MIT

// Package udp publishes pipeline frames as compact binary datagrams.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"ledviz/internal/log"
	"ledviz/internal/sample"
)

// headerSize is sequence + timestamp + count.
const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by ParsePacket for truncated datagrams.
var ErrShortPacket = errors.New("udp: short packet")

// PacketSender is the datagram sink used by a Publisher.
type PacketSender interface {
	Send(data []byte) error
	Close() error
}

// Publisher packs frames into a defined binary format and sends them with
// a PacketSender. Frames arriving faster than the minimum interval are
// skipped so receivers are not flooded.
type Publisher struct {
	sender      PacketSender
	minInterval time.Duration

	mu       sync.Mutex
	lastSent time.Time
	closed   bool

	sequenceNum uint32 // Monotonically increasing sequence number for packets.
	skipped     uint64

	// Pre-allocated buffers to reduce allocations in the hot path.
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a Publisher. A negative interval is treated as 0
// (send every frame).
func NewPublisher(sender PacketSender, minInterval time.Duration) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if minInterval < 0 {
		log.Warnf("UDPPublisher: Invalid interval %s, sending every frame", minInterval)
		minInterval = 0
	}
	log.Infof("UDPPublisher: Initializing (Min interval: %s)", minInterval)

	return &Publisher{
		sender:       sender,
		minInterval:  minInterval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Level Count       | uint16         | 2            | Number of floats (N)    |
| Levels            | []float32      | N * 4        | Channel levels, 0..1    |
| Impact            | float32        | 4            | Accent scalar, 0..1     |
+-----------------------------------------------------------------------------+

Split frames append the right side in the same form:

| Right Count       | uint16         | 2            | Number of floats (M)    |
| Right Levels      | []float32      | M * 4        | Right channel levels    |
| Right Impact      | float32        | 4            | Right accent scalar     |

|<- 4 Bytes ->|<--- 8 Bytes --->|<- 2 Bytes ->|<--- N * 4 Bytes --->|<- 4 Bytes ->|
+-------------+-----------------+-------------+---------------------+-------------+
|  Sequence   |    Timestamp    |    Count    |       Levels        |   Impact    |
+-------------+-----------------+-------------+---------------------+-------------+
*/

// Send publishes frame unless the previous packet went out less than the
// minimum interval ago.
func (p *Publisher) Send(frame sample.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("UDPPublisher: closed")
	}

	now := frame.Time
	if now.IsZero() {
		now = time.Now()
	}
	if !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.minInterval {
		p.skipped++
		return nil
	}

	packet, err := p.buildPacket(frame, now)
	if err != nil {
		log.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return err
	}

	if err := p.sender.Send(packet); err != nil {
		return err
	}
	p.lastSent = now
	log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	return nil
}

// buildPacket packs the sequence number, timestamp, count, levels and
// impact into the reusable buffer, followed by the right side of a split
// frame.
func (p *Publisher) buildPacket(frame sample.Frame, now time.Time) ([]byte, error) {
	if len(frame.Levels) > math.MaxUint16 || len(frame.LevelsR) > math.MaxUint16 {
		return nil, fmt.Errorf("%d levels exceed packet limit", max(len(frame.Levels), len(frame.LevelsR)))
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	// Chain error checks for cleaner code.
	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, now.UnixNano())
	}
	if err == nil {
		err = p.writeSide(frame.Levels, frame.Impact)
	}
	if err == nil && frame.Split() {
		err = p.writeSide(frame.LevelsR, frame.ImpactR)
	}
	if err != nil {
		return nil, err
	}

	return p.packetBuffer.Bytes(), nil
}

// writeSide appends count, levels and impact.
func (p *Publisher) writeSide(levels []float64, impact float64) error {
	if cap(p.f32Buffer) < len(levels) {
		p.f32Buffer = make([]float32, len(levels))
	}
	p.f32Buffer = p.f32Buffer[:len(levels)]
	for i, v := range levels {
		p.f32Buffer[i] = float32(v)
	}

	err := binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.f32Buffer)))
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, float32(impact))
	}
	return err
}

// Skipped returns the number of frames suppressed by the minimum interval.
func (p *Publisher) Skipped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Close closes the sender. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	log.Debugf("UDPPublisher: Closing after %d packets (%d skipped)", p.sequenceNum, p.skipped)
	return p.sender.Close()
}

// Packet is a decoded datagram. LevelsR is nil unless the frame was split.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Levels    []float32
	Impact    float32
	LevelsR   []float32
	ImpactR   float32
}

// ParsePacket decodes a datagram produced by Publisher.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	pkt := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
	}

	var ok bool
	rest := b[12:]
	if pkt.Levels, pkt.Impact, rest, ok = parseSide(rest); !ok {
		return Packet{}, ErrShortPacket
	}
	if len(rest) > 0 {
		if pkt.LevelsR, pkt.ImpactR, _, ok = parseSide(rest); !ok {
			return Packet{}, ErrShortPacket
		}
	}
	return pkt, nil
}

// parseSide decodes count, levels and impact from the front of b.
func parseSide(b []byte) (levels []float32, impact float32, rest []byte, ok bool) {
	if len(b) < 2 {
		return nil, 0, nil, false
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+4*n+4 {
		return nil, 0, nil, false
	}
	levels = make([]float32, n)
	off := 2
	for i := range levels {
		levels[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off:]))
		off += 4
	}
	impact = math.Float32frombits(binary.BigEndian.Uint32(b[off:]))
	return levels, impact, b[off+4:], true
}
