/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package srq

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanlet/asyn/pkg/log"
)

func TestStartStopWithoutConnection(t *testing.T) {
	s := New(log.L(), func() {})
	addr, err := s.Start()
	require.NoError(t, err)
	assert.NotNil(t, addr)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSRQDeliversOnSRQForEveryNonEmptyRead(t *testing.T) {
	var count int32
	s := New(log.L(), func() { atomic.AddInt32(&count, 1) })
	addr, err := s.Start()
	require.NoError(t, err)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("srq"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("srq"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 2 }, 2*time.Second, 10*time.Millisecond)

	s.Stop()
}

func TestStartReturnsTCPAddr(t *testing.T) {
	// A bind failure of net.Listen("tcp", ":0") is impractical to force
	// deterministically, so the failure path is not exercised here; this
	// verifies that Start returns a usable TCP address, which is the
	// property Start's caller depends on.
	s := New(log.L(), func() {})
	addr, err := s.Start()
	require.NoError(t, err)
	_, ok := addr.(*net.TCPAddr)
	assert.True(t, ok)
	s.Stop()
}
