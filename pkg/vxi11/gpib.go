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

// docmd command codes (C4). All docmd calls use network_order=1 and no
// locking. These match the VXI-11 standard's published docmd identifiers.
const (
	cmdSend = 0x020000
	cmdStat = 0x020001
	cmdRen  = 0x020003
	cmdIfc  = 0x020010
)

// Bus-status selectors (C4), combined by busStatus(request=0) into a
// bitfield with bit i set iff selector i is non-zero.
const (
	vxiBstatREN                = 1
	vxiBstatSRQ                = 2
	vxiBstatNDAC               = 3
	vxiBstatSystemController   = 4
	vxiBstatControllerInCharge = 5
	vxiBstatTalker             = 6
	vxiBstatListener           = 7
	vxiBstatBusAddress         = 8
)

// GPIB address header bases (see addr.go): ladBase for primary, sadBase
// for secondary.

// untalkUnlisten is the post-I/O "_?" byte pair: ASCII '_' (0x5F) and '?'
// (0x3F) happen to equal the GPIB UNT (untalk) and UNL (unlisten) bus
// commands, so sending this two-character string via writeCmd restores an
// idle addressing state on the bus. The original source marks this
// sequence "SHOULD THIS BE DONE ???"; it is kept as-is, not removed.
var untalkUnlisten = []byte("_?")

// Serial-poll timeout workaround bytes: Serial Poll Disable, then Untalk.
const (
	ibSPD = 0x19
	ibUNT = 0x5F
)

// docmd issues device_docmd with the given command code and payload,
// using the Port's call timeout, and returns the response data.
func (p *Port) docmd(cmd int32, data []byte) ([]byte, error) {
	serverLink := p.links.server
	args := oncrpc.DeviceDocmdParms{
		Link:         serverLink.id,
		Flags:        0,
		IOTimeout:    ioTimeoutMillis(p.CallTimeout),
		LockTimeout:  0,
		Cmd:          cmd,
		NetworkOrder: true,
		DataSize:     1,
		Data:         data,
	}.Encode()
	body, err := p.call(oncrpc.ProcDeviceDocmd, args)
	if err != nil {
		return nil, err
	}
	resp, err := oncrpc.DecodeDeviceDocmdResp(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode device_docmd reply")
	}
	if resp.Error != ErrNone {
		return nil, newVXIError("docmd", p.Name, -1, resp.Error)
	}
	return resp.Data, nil
}

func networkOrder16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// writeCmd sends bytes with ATN true on the server link (SEND), returning
// the number of bytes the gateway reports it sent.
func (p *Port) writeCmd(data []byte) (int, error) {
	resp, err := p.docmd(cmdSend, data)
	if err != nil {
		return 0, err
	}
	return len(resp), nil
}

// AddressedCmd constructs the 1- or 2-byte GPIB address header -- addr +
// LADBASE for primary-only, (primary+LADBASE, secondary+SADBASE) for
// extended -- sends it, then sends data, then the "_?" post-sequence.
// Mismatched byte counts at any step are reported.
func (p *Port) AddressedCmd(addr int, data []byte) error {
	primary, secondary, extended, err := decodeAddr(addr)
	if err != nil {
		return err
	}
	var header []byte
	if !extended {
		header = []byte{byte(primary + ladBase)}
	} else {
		header = []byte{byte(primary + ladBase), byte(secondary + sadBase)}
	}
	if n, err := p.writeCmd(header); err != nil {
		return err
	} else if n != len(header) {
		return fmt.Errorf("vxi11: addressedCmd: port %q addr %d: header write %d/%d bytes", p.Name, addr, n, len(header))
	}
	if n, err := p.writeCmd(data); err != nil {
		return err
	} else if n != len(data) {
		return fmt.Errorf("vxi11: addressedCmd: port %q addr %d: data write %d/%d bytes", p.Name, addr, n, len(data))
	}
	if _, err := p.writeCmd(untalkUnlisten); err != nil {
		return err
	}
	return nil
}

// UniversalCmd sends a single command byte.
func (p *Port) UniversalCmd(cmd byte) error {
	_, err := p.writeCmd([]byte{cmd})
	return err
}

// Ifc issues an Interface Clear.
func (p *Port) Ifc() error {
	_, err := p.docmd(cmdIfc, nil)
	return err
}

// Ren toggles Remote Enable.
func (p *Port) Ren(onOff bool) error {
	var v uint16
	if onOff {
		v = 1
	}
	_, err := p.docmd(cmdRen, networkOrder16(v))
	return err
}

// busStatusSelector queries a single selector (C4).
func (p *Port) busStatusSelector(selector int) (uint16, error) {
	resp, err := p.docmd(cmdStat, networkOrder16(uint16(selector)))
	if err != nil {
		return 0, err
	}
	if len(resp) < 2 {
		return 0, fmt.Errorf("vxi11: busStatus: port %q: short response for selector %d", p.Name, selector)
	}
	return uint16(resp[0])<<8 | uint16(resp[1]), nil
}

// BusStatus implements busStatus(request, timeout): request==0 combines
// every selector in [REN..LISTENER] into a bitfield where bit i is set iff
// selector i returned non-zero; any non-zero request returns the raw
// value. busStatus is not atomic across selectors when request==0 -- each
// is a separate RPC call.
func (p *Port) BusStatus(request int, timeout time.Duration) (uint16, error) {
	if request < 0 || request > vxiBstatBusAddress {
		return 0, fmt.Errorf("vxi11: busStatus: invalid request %d", request)
	}
	if request != 0 {
		return p.busStatusSelector(request)
	}
	var result uint16
	for selector := vxiBstatREN; selector <= vxiBstatListener; selector++ {
		v, err := p.busStatusSelector(selector)
		if err != nil {
			return 0, err
		}
		if v != 0 {
			result |= 1 << uint(selector)
		}
	}
	return result, nil
}

func (p *Port) busStatus(request int, timeout time.Duration) (uint16, error) {
	return p.BusStatus(request, timeout)
}

// SrqStatus reports the current SRQ line state.
func (p *Port) SrqStatus() (bool, error) {
	v, err := p.busStatusSelector(vxiBstatSRQ)
	return v != 0, err
}

// srqEnable issues device_enable_srq. On enable, the handle is a printable
// identifier uniquely naming this Port (its pointer's printable form), so
// the gateway can echo it back in SRQ messages.
func (p *Port) srqEnable(onOff bool) error {
	args := oncrpc.DeviceEnableSrqParms{
		Link:   p.links.server.id,
		Enable: onOff,
		Handle: []byte(fmt.Sprintf("%p", p)),
	}.Encode()
	body, err := p.call(oncrpc.ProcDeviceEnableSrq, args)
	if err != nil {
		return err
	}
	resp, err := oncrpc.DecodeDeviceError(body)
	if err != nil {
		return errors.Wrap(err, "decode device_enable_srq reply")
	}
	if resp.Error != ErrNone {
		return newVXIError("srqEnable", p.Name, -1, resp.Error)
	}
	return nil
}

// SrqEnable is the exported form of srqEnable.
func (p *Port) SrqEnable(onOff bool) error {
	return p.srqEnable(onOff)
}

// SerialPoll lazily creates the device link for addr if absent, then
// issues device_readstb. On VXI_IOTIMEOUT it additionally sends the
// {IBSPD, IBUNT} workaround through writeCmd before reporting the
// timeout.
func (p *Port) SerialPoll(addr int, timeout time.Duration) (byte, error) {
	slot, err := p.getDeviceLink(addr)
	if err != nil {
		return 0, err
	}
	if !slot.connected {
		primary, secondary, extended, err := decodeAddr(addr)
		if err != nil {
			return 0, err
		}
		device := fmt.Sprintf("%s,%d", p.VXIName, primary)
		if extended {
			device = fmt.Sprintf("%s,%d", device, secondary)
		}
		if err := p.createDeviceLink(slot, device); err != nil {
			return 0, err
		}
	}

	args := oncrpc.DeviceGenericParms{
		Link:        slot.id,
		Flags:       0,
		LockTimeout: 0,
		IOTimeout:   ioTimeoutMillis(timeout),
	}.Encode()
	body, err := p.ioCall(oncrpc.ProcDeviceReadStb, args, timeout)
	if err != nil {
		if IsTimeout(err) {
			p.writeCmd([]byte{ibSPD, ibUNT}) // nolint: errcheck
		}
		return 0, err
	}
	resp, err := oncrpc.DecodeDeviceReadStbResp(body)
	if err != nil {
		return 0, errors.Wrap(err, "decode device_readstb reply")
	}
	if resp.Error != ErrNone {
		if resp.Error == ErrIOTimeout {
			p.writeCmd([]byte{ibSPD, ibUNT}) // nolint: errcheck
		}
		return 0, newVXIError("serialPoll", p.Name, addr, resp.Error)
	}
	return resp.Stb, nil
}

// SerialPollBegin and SerialPollEnd are no-ops kept for interface
// symmetry; the gateway maintains its own polling state.
func (p *Port) SerialPollBegin(addr int) error { return nil }
func (p *Port) SerialPollEnd(addr int) error   { return nil }
