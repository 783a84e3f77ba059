/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

// Package srq implements the SRQ (service-request) subsystem: a local TCP
// listener whose address is published to a VXI-11 gateway so the gateway
// can open a back-channel connection and deliver service-request
// notifications. A reader goroutine accepts a single inbound connection,
// signals readiness and exit over channels, and supports cooperative
// cancellation of a reader blocked in Accept or
// Read (the Go equivalent of an interruptible syscall: closing the
// blocking socket unblocks it).
package srq

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hanlet/asyn/pkg/log"
)

// readSize matches the gateway's SRQ notification frame size; the payload
// itself is never parsed; SRQ is treated as an edge, not a message.
const readSize = 512

// teardownAttempts and teardownInterval bound how long Stop waits for the
// reader to notice an interrupt before giving up on it, per the port
// disconnect sequence: wait up to 2s, interrupt, repeat up to 10 times.
const (
	teardownAttempts = 10
	teardownInterval = 2 * time.Second
)

// Subsystem runs the SRQ reader for one connected Port. Exactly one exists
// per connected Port and it is joined at disconnect.
type Subsystem struct {
	logger log.Logger
	onSRQ  func()

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn

	armedCh  chan struct{}
	doneCh   chan struct{}
	startErr error
}

// New constructs a Subsystem. onSRQ is invoked (from the reader goroutine)
// once per non-empty read delivered by the gateway; it must not block.
func New(logger log.Logger, onSRQ func()) *Subsystem {
	return &Subsystem{logger: logger, onSRQ: onSRQ}
}

// Start binds an ephemeral local TCP listener and launches the reader.
// It blocks until the reader has either bound the listener (state
// LISTENING) or failed to (state EXIT) -- i.e. until "ready" is signalled
// once, matching the state machine's INIT transitions -- then returns the
// address to publish via create_intr_chan.
func (s *Subsystem) Start() (net.Addr, error) {
	s.armedCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run()
	<-s.armedCh
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.mu.Lock()
	addr := s.listener.Addr()
	s.mu.Unlock()
	return addr, nil
}

func (s *Subsystem) run() {
	defer close(s.doneCh)

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		s.startErr = fmt.Errorf("srq: bind listener: %w", err)
		close(s.armedCh) // INIT -> EXIT
		return
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.armedCh) // INIT -> LISTENING

	conn, err := listener.Accept()
	if err != nil {
		// LISTENING -> EXIT, interrupted or real accept failure either way.
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.read(conn) // READING -> EXIT
}

func (s *Subsystem) read(conn net.Conn) {
	buf := make([]byte, readSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 && s.onSRQ != nil {
			s.onSRQ()
		}
		if err != nil {
			return
		}
	}
}

// interrupt closes whichever socket the reader is currently blocked on,
// unblocking Accept or Read the way an interruptible syscall would. It is
// safe to call more than once and from a different goroutine than the
// reader.
func (s *Subsystem) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close() // nolint: errcheck
		return
	}
	if s.listener != nil {
		s.listener.Close() // nolint: errcheck
	}
}

// Stop drives the reader to termination: wait up to teardownInterval for
// it to exit on its own, interrupt it if it hasn't, and repeat up to
// teardownAttempts times before giving up and logging a warning. The
// reader signals doneCh exactly once, on its way out, regardless of which
// state it exits from, so Stop can always tell whether it succeeded.
func (s *Subsystem) Stop() {
	if s.doneCh == nil {
		return // never started
	}
	for i := 0; i < teardownAttempts; i++ {
		select {
		case <-s.doneCh:
			return
		case <-time.After(teardownInterval):
			s.interrupt()
		}
	}
	s.logger.Warnw("SRQ reader thread will not terminate, abandoning", "attempts", teardownAttempts)
}
