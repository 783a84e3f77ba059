/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package oncrpc

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanlet/asyn/pkg/log"
)

// fakeServer accepts exactly one connection and hands it to handle, which
// decides whether and how to reply.
func fakeServer(t *testing.T, handle func(conn net.Conn)) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()
	return ln
}

func readCallXid(t *testing.T, r *bufio.Reader) uint32 {
	t.Helper()
	msg, err := readRecord(r, maxFragment)
	require.NoError(t, err)
	d := NewDecoder(msg)
	xid, err := d.Uint32()
	require.NoError(t, err)
	return xid
}

func writeSuccessReply(t *testing.T, conn net.Conn, xid uint32, body []byte) {
	t.Helper()
	e := NewEncoder()
	e.Uint32(xid)
	e.Uint32(1) // REPLY
	e.Uint32(0) // MSG_ACCEPTED
	e.Uint32(0) // verifier flavor AUTH_NONE
	e.Opaque(nil)
	e.Uint32(0) // SUCCESS
	reply := append(e.Bytes(), body...)
	require.NoError(t, writeRecord(conn, reply))
}

func TestClientCallSuccess(t *testing.T) {
	ln := fakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		xid := readCallXid(t, r)
		body := NewEncoder()
		body.Uint32(123)
		writeSuccessReply(t, conn, xid, body.Bytes())
	})
	defer ln.Close()

	client, err := Dial(context.Background(), ln.Addr().String(), 1, 1, log.L())
	require.NoError(t, err)
	defer client.Close()

	status, body, err := client.Call(10, nil, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Success, status)
	d := NewDecoder(body)
	v, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(123), v)
}

func TestClientCallTimeout(t *testing.T) {
	ln := fakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		readCallXid(t, r)
		time.Sleep(500 * time.Millisecond) // never reply in time
	})
	defer ln.Close()

	client, err := Dial(context.Background(), ln.Addr().String(), 1, 1, log.L())
	require.NoError(t, err)
	defer client.Close()

	status, _, err := client.Call(10, nil, 50*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, TimedOut, status)
}

func TestClientCallFailedOnConnectionClose(t *testing.T) {
	ln := fakeServer(t, func(conn net.Conn) {
		conn.Close() // hang up without replying
	})
	defer ln.Close()

	client, err := Dial(context.Background(), ln.Addr().String(), 1, 1, log.L())
	require.NoError(t, err)
	defer client.Close()

	status, _, err := client.Call(10, nil, 2*time.Second)
	assert.Error(t, err)
	assert.Equal(t, Failed, status)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	ln := fakeServer(t, func(conn net.Conn) { conn.Close() })
	defer ln.Close()

	client, err := Dial(context.Background(), ln.Addr().String(), 1, 1, log.L())
	require.NoError(t, err)
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}
