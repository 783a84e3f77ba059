/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package vxi11

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanlet/asyn/pkg/vxi11/oncrpc"
)

// fakeGateway is a minimal stand-in DEVICE_CORE server used to drive Port
// methods without a real VXI-11 gateway: it frames and decodes just
// enough Sun RPC to satisfy oncrpc.Client, and dispatches by procedure
// number to a caller-supplied handler table. This duplicates, at a small
// scale, the record-marking and reply-header logic in
// pkg/vxi11/oncrpc/client.go -- necessary because that package keeps its
// framing helpers unexported and this test lives in a different package.
type fakeGateway struct {
	ln       net.Listener
	handlers map[uint32]func(args []byte) []byte
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	g := &fakeGateway{ln: ln, handlers: make(map[uint32]func(args []byte) []byte)}
	go g.serve()
	return g
}

func (g *fakeGateway) on(proc uint32, handler func(args []byte) []byte) {
	g.handlers[proc] = handler
}

func (g *fakeGateway) addr() string {
	return g.ln.Addr().String()
}

func (g *fakeGateway) close() {
	g.ln.Close() // nolint: errcheck
}

func (g *fakeGateway) serve() {
	conn, err := g.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		msg, err := readFrame(r)
		if err != nil {
			return
		}
		d := oncrpc.NewDecoder(msg)
		xid, _ := d.Uint32()
		d.Uint32() // CALL
		d.Uint32() // rpcvers
		d.Uint32() // prog
		d.Uint32() // vers
		proc, _ := d.Uint32()
		d.Uint32() // cred flavor
		d.Opaque() // nolint: errcheck // cred body
		d.Uint32() // verf flavor
		d.Opaque() // nolint: errcheck // verf body
		args := msg[len(msg)-d.Remaining():]

		handler, ok := g.handlers[proc]
		if !ok {
			// No handler registered: simulate a gateway that never answers
			// this procedure, so the client's own read deadline is what
			// ends the call.
			continue
		}
		result := handler(args)
		e := oncrpc.NewEncoder()
		e.Uint32(xid)
		e.Uint32(1) // REPLY
		e.Uint32(0) // MSG_ACCEPTED
		e.Uint32(0) // verf flavor
		e.Opaque(nil)
		e.Uint32(0) // SUCCESS
		reply := append(e.Bytes(), result...)
		if err := writeFrame(conn, reply); err != nil {
			return
		}
	}
}

func writeFrame(w io.Writer, msg []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(msg))|0x80000000)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// The oncrpc package only defines Decode functions for VXI-11 result
// structs (real callers never need to produce one); these mirror their
// field order to let fakeGateway handlers build canned replies.

func encodeCreateLinkResp(r oncrpc.CreateLinkResp) []byte {
	e := oncrpc.NewEncoder()
	e.Int32(r.Error)
	e.Uint32(r.Link)
	e.Uint32(uint32(r.AbortPort))
	e.Uint32(r.MaxRecvSize)
	return e.Bytes()
}

func encodeDeviceWriteResp(r oncrpc.DeviceWriteResp) []byte {
	e := oncrpc.NewEncoder()
	e.Int32(r.Error)
	e.Uint32(r.Size)
	return e.Bytes()
}

func encodeDeviceReadResp(r oncrpc.DeviceReadResp) []byte {
	e := oncrpc.NewEncoder()
	e.Int32(r.Error)
	e.Uint32(r.Reason)
	e.Opaque(r.Data)
	return e.Bytes()
}

func encodeDeviceDocmdResp(r oncrpc.DeviceDocmdResp) []byte {
	e := oncrpc.NewEncoder()
	e.Int32(r.Error)
	e.Opaque(r.Data)
	return e.Bytes()
}

func encodeDeviceError(r oncrpc.DeviceError) []byte {
	e := oncrpc.NewEncoder()
	e.Int32(r.Error)
	return e.Bytes()
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		v := binary.BigEndian.Uint32(header[:])
		length := v & 0x7fffffff
		last := v&0x80000000 != 0
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
