// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"ledviz/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp: sender closed")

// SenderStats counts what a Sender did with the packets it was given.
type SenderStats struct {
	Packets uint64 // Datagrams written.
	Bytes   uint64 // Payload bytes written.
	Refused uint64 // Datagrams the receiver's host refused.
	Failed  uint64 // Other write errors.
}

// Sender writes datagrams to one visualiser. A refused datagram means
// nothing is listening yet; it is counted and dropped so the publisher
// keeps running until a receiver starts.
type Sender struct {
	target *net.UDPAddr

	mu   sync.Mutex // Serialises writes against Close.
	conn io.WriteCloser

	packets atomic.Uint64
	bytes   atomic.Uint64
	refused atomic.Uint64
	failed  atomic.Uint64
}

// NewSender connects to targetAddress, in "host:port" form.
func NewSender(targetAddress string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}
	log.Infof("UDP Sender: Sending frames to %s", addr)
	return newSender(conn, addr), nil
}

func newSender(conn io.WriteCloser, target *net.UDPAddr) *Sender {
	return &Sender{conn: conn, target: target}
}

// Target returns the resolved destination.
func (s *Sender) Target() *net.UDPAddr { return s.target }

// Send writes one datagram. Only errors other than a refusal are returned.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrSenderClosed
	}
	n, err := s.conn.Write(data)
	switch {
	case err == nil:
		s.packets.Add(1)
		s.bytes.Add(uint64(n))
		return nil
	case errors.Is(err, syscall.ECONNREFUSED):
		if s.refused.Add(1) == 1 {
			log.Warnf("UDP Sender: Nothing listening on %s, dropping frames until it starts", s.target)
		}
		return nil
	default:
		s.failed.Add(1)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
}

// Stats returns a snapshot of the counters.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
		Refused: s.refused.Load(),
		Failed:  s.failed.Load(),
	}
}

// Close closes the connection. It is safe to call more than once.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	st := s.Stats()
	log.WithFields(log.Fields{
		"target":  s.target.String(),
		"packets": st.Packets,
		"bytes":   st.Bytes,
		"refused": st.Refused,
		"failed":  st.Failed,
	}).Debug("UDP Sender: Closing")

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ PacketSender = (*Sender)(nil)
