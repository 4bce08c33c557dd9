// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"ledviz/internal/log"
	"ledviz/internal/sample"
)

// LoggingTransport implements the Transport interface by logging a summary
// of every nth frame at debug level.
type LoggingTransport struct {
	every uint64
	sent  atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance. every < 1
// logs every frame.
func NewLoggingTransport(every int) *LoggingTransport {
	log.Debug("Transport: Using LoggingTransport")
	return &LoggingTransport{every: uint64(max(every, 1))}
}

// Send logs the peak channel, impact and beat flag of the frame.
func (lt *LoggingTransport) Send(frame sample.Frame) error {
	n := lt.sent.Add(1)
	if (n-1)%lt.every != 0 || !log.IsDebug() {
		return nil
	}

	peak, at := 0.0, -1
	for i, v := range frame.Levels {
		if v > peak {
			peak, at = v, i
		}
	}

	fields := log.Fields{
		"seq":          frame.Seq,
		"peak":         peak,
		"peak_channel": at,
		"impact":       frame.Impact,
		"beat":         frame.Beat,
	}
	if frame.Split() {
		fields["impact_r"] = frame.ImpactR
	}
	log.WithFields(fields).Debug("LOG_TRANSPORT: frame")
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("LOG_TRANSPORT: Close called after %d frames.", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
