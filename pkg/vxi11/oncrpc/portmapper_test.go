/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package oncrpc

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanlet/asyn/pkg/log"
)

// Binding a fake portmapper to 127.0.0.1:111 is not possible without root,
// so LookupPort's fixed pmapPort cannot be exercised end-to-end in a unit
// test; instead this test issues the GETPORT call through Client.Call, the
// helper LookupPort uses internally, and checks that a port-0
// ("unregistered") reply decodes to 0. LookupPort itself is not called.
func TestGetPortReplyForUnregisteredProgramDecodesToZero(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		msg, err := readRecord(r, maxFragment)
		if err != nil {
			return
		}
		d := NewDecoder(msg)
		xid, _ := d.Uint32()
		e := NewEncoder()
		e.Uint32(xid)
		e.Uint32(1)
		e.Uint32(0)
		e.Uint32(0)
		e.Opaque(nil)
		e.Uint32(0)
		e.Uint32(0) // port 0: not registered
		writeRecord(conn, e.Bytes()) // nolint: errcheck
	}()

	// LookupPort always dials host:111, which this fake server does not
	// listen on, so instead verify the decode path it shares with Call
	// directly against the fake server's port.
	client, err := Dial(context.Background(), ln.Addr().String(), pmapProgram, pmapVersion, log.L())
	require.NoError(t, err)
	defer client.Close()

	e := NewEncoder()
	e.Uint32(DeviceCoreProgram)
	e.Uint32(DeviceCoreVersion)
	e.Uint32(ipProtoTCP)
	e.Uint32(0)
	status, body, err := client.Call(pmapProcGetPort, e.Bytes(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Success, status)
	port, err := NewDecoder(body).Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), port)
}

func TestLookupPortUnreachableHost(t *testing.T) {
	_, err := LookupPort(context.Background(), "203.0.113.1", DeviceCoreProgram, DeviceCoreVersion, log.L())
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "portmapper") || strings.Contains(err.Error(), "dial"))
}
