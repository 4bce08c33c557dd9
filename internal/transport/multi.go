// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	"ledviz/internal/sample"
)

// Multi fans each frame out to several transports.
type Multi struct {
	sinks []Transport
}

// NewMulti ignores nil sinks.
func NewMulti(sinks ...Transport) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends a sink.
func (m *Multi) Add(s Transport) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Send delivers frame to every sink; one failing sink does not starve the rest.
func (m *Multi) Send(frame sample.Frame) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = (*Multi)(nil)
