/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package oncrpc

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/hanlet/asyn/pkg/log"
)

// Call status, modelled after the handful of Sun RPC reply statuses the
// VXI-11 core actually distinguishes (RFC 1057 has more, but only success,
// timeout, and "anything else" matter to a caller).
type CallStatus int

const (
	// Success means the call completed and a reply was decoded.
	Success CallStatus = iota
	// TimedOut means no reply arrived before the call's deadline.
	TimedOut
	// Failed covers connection loss, garbled replies, and RPC-level
	// rejections (auth, program/version mismatch, and so on).
	Failed
)

func (s CallStatus) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case TimedOut:
		return "TIMEDOUT"
	default:
		return "FAILED"
	}
}

// maxFragment bounds a single RPC record; VXI-11 replies are small except
// for device_read, which is still well under this.
const maxFragment = 1 << 20

// Client is a minimal ONC-RPC client over a single TCP connection to one
// program/version pair (DEVICE_CORE for control calls, or a client-side
// stub used only to decode replies arriving on an accepted connection for
// DEVICE_INTR). It implements call framing (record marking) and the call
// message header; procedure-specific argument/result encoding lives in
// proc.go.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	prog    uint32
	vers    uint32
	mu      sync.Mutex
	xid     uint32
	logger  log.Logger
	closed  int32
}

// Dial connects to addr and returns a Client bound to prog/vers.
func Dial(ctx context.Context, addr string, prog, vers uint32, logger log.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		prog:   prog,
		vers:   vers,
		logger: logger,
	}, nil
}

// Close shuts down the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.conn.Close()
}

// RemoteAddr returns the address of the connected peer.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local address of the connection, i.e. the address
// the kernel chose (via getsockname semantics) to reach RemoteAddr. This is
// the address a gateway dialing back into the driver (create_intr_chan)
// must use, since the driver and gateway are separate hosts on the
// network, not an address the driver can assume or hardcode.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Call sends one RPC request and waits for the matching reply, subject to
// the given deadline. It returns TimedOut if the deadline elapses without a
// reply, Failed for any other transport or decode error, and Success with
// the raw reply payload otherwise.
func (c *Client) Call(proc uint32, argBytes []byte, deadline time.Duration) (CallStatus, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.xid++
	xid := c.xid

	msg := callMessage(xid, c.prog, c.vers, proc, argBytes)

	if err := c.conn.SetWriteDeadline(time.Now().Add(deadline)); err != nil {
		return Failed, nil, errors.Wrap(err, "set write deadline")
	}
	if err := writeRecord(c.conn, msg); err != nil {
		return Failed, nil, errors.Wrap(err, "write RPC call")
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return Failed, nil, errors.Wrap(err, "set read deadline")
	}
	reply, err := readRecord(c.r, maxFragment)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return TimedOut, nil, nil
		}
		return Failed, nil, errors.Wrap(err, "read RPC reply")
	}

	replyXid, body, err := decodeReplyHeader(reply)
	if err != nil {
		return Failed, nil, err
	}
	if replyXid != xid {
		return Failed, nil, fmt.Errorf("oncrpc: reply xid %d does not match call xid %d", replyXid, xid)
	}
	return Success, body, nil
}

// callMessage builds a full Sun RPC call message: header plus opaque
// procedure arguments. Credentials and verifiers are always AUTH_NONE,
// matching drvVxi11.c, which never authenticates to the gateway.
func callMessage(xid, prog, vers, proc uint32, args []byte) []byte {
	e := NewEncoder()
	e.Uint32(xid)
	e.Uint32(0) // CALL
	e.Uint32(2) // RPC version 2
	e.Uint32(prog)
	e.Uint32(vers)
	e.Uint32(proc)
	e.Uint32(0) // AUTH_NONE
	e.Uint32(0) // zero-length body
	e.Uint32(0) // AUTH_NONE verifier
	e.Uint32(0)
	b := e.Bytes()
	return append(b, args...)
}

// decodeReplyHeader validates a Sun RPC reply message and returns the xid
// plus the remaining (procedure result) bytes.
func decodeReplyHeader(reply []byte) (uint32, []byte, error) {
	d := NewDecoder(reply)
	xid, err := d.Uint32()
	if err != nil {
		return 0, nil, err
	}
	msgType, err := d.Uint32()
	if err != nil {
		return 0, nil, err
	}
	if msgType != 1 {
		return 0, nil, fmt.Errorf("oncrpc: expected REPLY, got message type %d", msgType)
	}
	replyStat, err := d.Uint32()
	if err != nil {
		return 0, nil, err
	}
	if replyStat != 0 {
		return 0, nil, fmt.Errorf("oncrpc: RPC denied, reply_stat=%d", replyStat)
	}
	// Verifier: flavor + opaque body.
	if _, err := d.Uint32(); err != nil {
		return 0, nil, err
	}
	if _, err := d.Opaque(); err != nil {
		return 0, nil, err
	}
	acceptStat, err := d.Uint32()
	if err != nil {
		return 0, nil, err
	}
	if acceptStat != 0 {
		return 0, nil, fmt.Errorf("oncrpc: call rejected, accept_stat=%d", acceptStat)
	}
	return xid, reply[len(reply)-d.Remaining():], nil
}

// writeRecord frames one RPC message as a single, final fragment (the
// VXI-11 exchanges here never need multi-fragment records) with the
// 4-byte record-marking header from RFC 1057: high bit set means "last
// fragment", the low 31 bits are the fragment length.
func writeRecord(w io.Writer, msg []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(msg))|0x80000000)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// readRecord reassembles one or more record-marked fragments into a single
// message, the client-side counterpart of the fragment loop used by the
// reference portmapper server when reading requests off a TCP connection.
func readRecord(r *bufio.Reader, max int) ([]byte, error) {
	var out []byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		headerVal := binary.BigEndian.Uint32(header[:])
		length := headerVal & 0x7fffffff
		last := headerVal&0x80000000 != 0
		if int(length) > max {
			return nil, fmt.Errorf("oncrpc: fragment of %d bytes exceeds limit %d", length, max)
		}
		frag := make([]byte, length)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, err
		}
		out = append(out, frag...)
		if last {
			break
		}
	}
	return out, nil
}
