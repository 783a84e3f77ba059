/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

// Package oncrpc implements the minimal subset of Sun RPC (ONC-RPC) and XDR
// needed to talk to a VXI-11 DEVICE_CORE server over TCP: call framing via
// record marking, the call/reply message headers, and the XDR primitives
// used by the VXI-11 procedure arguments and results. It does not attempt to
// be a general-purpose RPC library; the procedure-specific encode/decode
// logic lives in proc.go.
package oncrpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encoder accumulates an XDR-encoded byte stream.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded stream so far.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Uint32 appends a 4-byte unsigned integer.
func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// Int32 appends a 4-byte signed integer.
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Bool appends an XDR boolean (4-byte 0 or 1).
func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Opaque appends a variable-length opaque: a 4-byte length followed by the
// bytes themselves, padded to a 4-byte boundary.
func (e *Encoder) Opaque(data []byte) {
	e.Uint32(uint32(len(data)))
	e.buf.Write(data)
	if pad := (4 - len(data)%4) % 4; pad > 0 {
		e.buf.Write(make([]byte, pad))
	}
}

// String appends an XDR string, encoded the same way as Opaque.
func (e *Encoder) String(s string) {
	e.Opaque([]byte(s))
}

// Decoder reads an XDR-encoded byte stream sequentially.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps data for sequential decoding.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.data) {
		return fmt.Errorf("oncrpc: short XDR buffer: need %d bytes at offset %d, have %d", n, d.pos, len(d.data))
	}
	return nil
}

// Uint32 decodes the next 4-byte unsigned integer.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// Int32 decodes the next 4-byte signed integer.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Bool decodes the next XDR boolean.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	return v != 0, err
}

// Opaque decodes a variable-length opaque, consuming its padding.
func (d *Decoder) Opaque() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:d.pos+int(n)])
	d.pos += int(n)
	if pad := (4 - int(n)%4) % 4; pad > 0 {
		if err := d.need(pad); err != nil {
			return nil, err
		}
		d.pos += pad
	}
	return out, nil
}

// String decodes an XDR string.
func (d *Decoder) String() (string, error) {
	b, err := d.Opaque()
	return string(b), err
}

// Remaining reports how many undecoded bytes are left.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}
