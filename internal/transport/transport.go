// SPDX-License-Identifier: MIT

// Package transport holds the output sinks that consume pipeline frames:
// the Adalight LED strip, WebSocket and UDP broadcasters, a logging sink
// and a fan-out that drives several of them at once.
package transport

import "ledviz/internal/sample"

// Transport receives every published frame. Implementations must be safe
// for use from the consumer goroutine while Close is called from another,
// and must not modify frame.Levels.
type Transport interface {
	Send(frame sample.Frame) error
	Close() error
}
