/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package vxi11

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hanlet/asyn/pkg/vxi11/oncrpc"
)

// Wire-level device_read reason bits, per the VXI-11 standard.
const (
	reasonReqCnt uint32 = 1 // VXI_REQCNT: requested count satisfied
	reasonChr    uint32 = 2 // VXI_CHR: EOS terminator matched
	reasonEnd    uint32 = 4 // VXI_ENDR: bus END seen
)

// EOMReason is the driver's outward-facing end-of-message bitfield,
// assembled from the wire reason bits returned by device_read.
type EOMReason uint8

const (
	EOMCNT EOMReason = 1 << iota
	EOMEOS
	EOMEND
)

func eomReasonFromWire(wire uint32) EOMReason {
	var e EOMReason
	if wire&reasonReqCnt != 0 {
		e |= EOMCNT
	}
	if wire&reasonChr != 0 {
		e |= EOMEOS
	}
	if wire&reasonEnd != 0 {
		e |= EOMEND
	}
	return e
}

func (p *Port) requireConnected(addr int) (*DeviceLink, error) {
	if !p.Connected() {
		return nil, &Error{Op: "io", Port: p.Name, Addr: addr, Status: StatusError,
			Message: fmt.Sprintf("io: port %q is not connected", p.Name)}
	}
	slot, err := p.getDeviceLink(addr)
	if err != nil {
		return nil, err
	}
	if !slot.connected {
		return nil, &Error{Op: "io", Port: p.Name, Addr: addr, Status: StatusError,
			Message: fmt.Sprintf("io: port %q addr %d: device link not connected", p.Name, addr)}
	}
	return slot, nil
}

// Write implements write(addr, bytes, timeout) (C3): chunks data into
// pieces no larger than maxRecvSize, setting ENDW only on the final
// chunk, and stops early if the gateway reports writing fewer bytes than
// requested for a chunk. On VXI_IOTIMEOUT with recoverWithIFC set, it
// invokes ifc() (best-effort) before returning the timeout. After the
// stream completes it sends the "_?" post-sequence.
func (p *Port) Write(addr int, data []byte, timeout time.Duration) (int, error) {
	slot, err := p.requireConnected(addr)
	if err != nil {
		return 0, err
	}

	chunkSize := len(data)
	p.mu.Lock()
	if p.maxRecvSize > 0 && int(p.maxRecvSize) < chunkSize {
		chunkSize = int(p.maxRecvSize)
	}
	p.mu.Unlock()
	if chunkSize == 0 {
		chunkSize = len(data)
	}

	total := 0
	for total < len(data) || (len(data) == 0 && total == 0) {
		end := total + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[total:end]
		last := end == len(data)
		var flags uint32
		if last {
			flags = oncrpc.FlagEndW
		}

		args := oncrpc.DeviceWriteParms{
			Link:      slot.id,
			IOTimeout: ioTimeoutMillis(timeout),
			Flags:     flags,
			Data:      chunk,
		}.Encode()
		body, err := p.ioCall(oncrpc.ProcDeviceWrite, args, timeout)
		if err != nil {
			if IsTimeout(err) && p.RecoverWithIFC {
				p.Ifc() // nolint: errcheck
			}
			return total, err
		}
		resp, err := oncrpc.DecodeDeviceWriteResp(body)
		if err != nil {
			return total, errors.Wrap(err, "decode device_write reply")
		}
		if resp.Error != ErrNone {
			verr := newVXIError("write", p.Name, addr, resp.Error)
			if resp.Error == ErrIOTimeout && p.RecoverWithIFC {
				p.Ifc() // nolint: errcheck
			}
			return total, verr
		}

		total += int(resp.Size)
		if int(resp.Size) < len(chunk) {
			break
		}
		if len(data) == 0 {
			break
		}
	}

	p.writeCmd(untalkUnlisten) // nolint: errcheck
	return total, nil
}

// Read implements read(addr, buf, timeout) (C3): issues device_read calls
// for up to len(buf) bytes, passing TERMCHRSET|termChar when the slot's
// EOS is set. A VXI_IOTIMEOUT reply carrying zero bytes is retried at the
// VXI layer only while timeout is infinite (timeout < 0), matching the
// testable infinite-read property; any other RPC outcome -- a non-zero
// reason, a finite-timeout IOTIMEOUT, or an error -- ends the call. A
// successful reply with reason 0 and a non-empty payload does not end the
// read: the original driver's vxiRead loops issuing further device_read
// calls, shrinking the requested size by what has already arrived, until
// the gateway reports a non-zero reason or stops returning data. On
// VXI_IOTIMEOUT with recoverWithIFC set, ifc() is invoked (best-effort)
// before returning the timeout.
func (p *Port) Read(addr int, buf []byte, timeout time.Duration) (int, EOMReason, error) {
	slot, err := p.requireConnected(addr)
	if err != nil {
		return 0, 0, err
	}

	nRead := 0
	remaining := buf
	var lastReason uint32
	for {
		var flags uint32
		var termChar byte
		if slot.eos != noEos {
			flags = oncrpc.FlagTermCharSet
			termChar = byte(slot.eos)
		}

		args := oncrpc.DeviceReadParms{
			Link:        slot.id,
			RequestSize: uint32(len(remaining)),
			IOTimeout:   ioTimeoutMillis(timeout),
			Flags:       flags,
			TermChar:    termChar,
		}.Encode()
		body, err := p.ioCall(oncrpc.ProcDeviceRead, args, timeout)
		if err != nil {
			if IsTimeout(err) && p.RecoverWithIFC {
				p.Ifc() // nolint: errcheck
			}
			return nRead, eomReasonFromWire(lastReason), err
		}
		resp, err := oncrpc.DecodeDeviceReadResp(body)
		if err != nil {
			return nRead, eomReasonFromWire(lastReason), errors.Wrap(err, "decode device_read reply")
		}

		if resp.Error == ErrIOTimeout && len(resp.Data) == 0 && timeout < 0 {
			continue // VXI-layer retry: infinite read, no data yet.
		}
		if resp.Error != ErrNone {
			if resp.Error == ErrIOTimeout && p.RecoverWithIFC {
				p.Ifc() // nolint: errcheck
			}
			return nRead, eomReasonFromWire(lastReason), newVXIError("read", p.Name, addr, resp.Error)
		}

		thisRead := len(resp.Data)
		n := copy(remaining, resp.Data)
		nRead += n
		remaining = remaining[n:]
		lastReason = resp.Reason

		if resp.Reason != 0 || thisRead <= 0 {
			break
		}
	}

	p.writeCmd(untalkUnlisten) // nolint: errcheck
	return nRead, eomReasonFromWire(lastReason), nil
}

// Flush sends nothing to the gateway, which buffers nothing the driver can
// flush. It returns success when the Port and the addressed device link are
// connected, and an error otherwise.
func (p *Port) Flush(addr int) error {
	if _, err := p.requireConnected(addr); err != nil {
		return err
	}
	return nil
}

// SetEos implements setEos(addr, bytes, len): len==0 clears EOS (stored as
// noEos); len==1 stores the byte unsigned; any other length is rejected
// and leaves the prior state untouched.
func (p *Port) SetEos(addr int, eos []byte) error {
	slot, err := p.getDeviceLink(addr)
	if err != nil {
		return err
	}
	switch len(eos) {
	case 0:
		slot.eos = noEos
	case 1:
		slot.eos = int16(eos[0])
	default:
		return fmt.Errorf("vxi11: setEos: port %q addr %d: length %d not in {0,1}", p.Name, addr, len(eos))
	}
	return nil
}

// GetEos implements getEos(addr): the inverse of SetEos.
func (p *Port) GetEos(addr int) ([]byte, error) {
	slot, err := p.getDeviceLink(addr)
	if err != nil {
		return nil, err
	}
	if slot.eos == noEos {
		return nil, nil
	}
	return []byte{byte(slot.eos)}, nil
}
