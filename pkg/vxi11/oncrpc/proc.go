/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package oncrpc

// Program/version numbers and procedure codes for the VXI-11 DEVICE_CORE
// and DEVICE_INTR programs, as fixed by the VXI-11 standard's .x
// definitions. These are a hard compatibility contract: values here are not
// configurable.
const (
	DeviceCoreProgram = 0x0607AF
	DeviceCoreVersion = 1

	DeviceAsyncProgram = 0x0607B0
	DeviceAsyncVersion = 1

	DeviceIntrProgram = 0x0607B1
	DeviceIntrVersion = 1
)

const (
	ProcCreateLink     = 10
	ProcDeviceWrite    = 11
	ProcDeviceRead     = 12
	ProcDeviceReadStb  = 13
	ProcDeviceTrigger  = 14
	ProcDeviceClear    = 15
	ProcDeviceRemote   = 16
	ProcDeviceLocal    = 17
	ProcDeviceLock     = 18
	ProcDeviceUnlock   = 19
	ProcDeviceEnableSrq = 20
	ProcDeviceDocmd    = 22
	ProcDestroyLink    = 23
	ProcCreateIntrChan = 25
	ProcDestroyIntrChan = 26

	ProcDeviceIntrSrq = 30
)

// Flags used in request parameter structs.
const (
	FlagTermCharSet = 1 << 7 // VXI_TERMCHRSET
	FlagEndW        = 1 << 3 // VXI_ENDW
)

// CreateLinkParms is the argument struct for create_link.
type CreateLinkParms struct {
	ClientID     int32
	LockDevice   bool
	LockTimeout  uint32
	Device       string
}

func (p CreateLinkParms) Encode() []byte {
	e := NewEncoder()
	e.Int32(p.ClientID)
	e.Bool(p.LockDevice)
	e.Uint32(p.LockTimeout)
	e.String(p.Device)
	return e.Bytes()
}

// CreateLinkResp is the result struct for create_link.
type CreateLinkResp struct {
	Error       int32
	Link        uint32
	AbortPort   uint16
	MaxRecvSize uint32
}

func DecodeCreateLinkResp(b []byte) (CreateLinkResp, error) {
	d := NewDecoder(b)
	var r CreateLinkResp
	var err error
	if r.Error, err = d.Int32(); err != nil {
		return r, err
	}
	lid, err := d.Uint32()
	if err != nil {
		return r, err
	}
	r.Link = lid
	abort, err := d.Uint32()
	if err != nil {
		return r, err
	}
	r.AbortPort = uint16(abort)
	if r.MaxRecvSize, err = d.Uint32(); err != nil {
		return r, err
	}
	return r, nil
}

// DeviceWriteParms is the argument struct for device_write.
type DeviceWriteParms struct {
	Link      uint32
	IOTimeout uint32
	LockTimeout uint32
	Flags     uint32
	Data      []byte
}

func (p DeviceWriteParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.Link)
	e.Uint32(p.IOTimeout)
	e.Uint32(p.LockTimeout)
	e.Uint32(p.Flags)
	e.Opaque(p.Data)
	return e.Bytes()
}

// DeviceWriteResp is the result struct for device_write.
type DeviceWriteResp struct {
	Error int32
	Size  uint32
}

func DecodeDeviceWriteResp(b []byte) (DeviceWriteResp, error) {
	d := NewDecoder(b)
	var r DeviceWriteResp
	var err error
	if r.Error, err = d.Int32(); err != nil {
		return r, err
	}
	if r.Size, err = d.Uint32(); err != nil {
		return r, err
	}
	return r, nil
}

// DeviceReadParms is the argument struct for device_read.
type DeviceReadParms struct {
	Link        uint32
	RequestSize uint32
	IOTimeout   uint32
	LockTimeout uint32
	Flags       uint32
	TermChar    byte
}

func (p DeviceReadParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.Link)
	e.Uint32(p.RequestSize)
	e.Uint32(p.IOTimeout)
	e.Uint32(p.LockTimeout)
	e.Uint32(p.Flags)
	e.Uint32(uint32(p.TermChar))
	return e.Bytes()
}

// DeviceReadResp is the result struct for device_read.
type DeviceReadResp struct {
	Error  int32
	Reason uint32
	Data   []byte
}

func DecodeDeviceReadResp(b []byte) (DeviceReadResp, error) {
	d := NewDecoder(b)
	var r DeviceReadResp
	var err error
	if r.Error, err = d.Int32(); err != nil {
		return r, err
	}
	if r.Reason, err = d.Uint32(); err != nil {
		return r, err
	}
	if r.Data, err = d.Opaque(); err != nil {
		return r, err
	}
	return r, nil
}

// DeviceGenericParms is the argument struct shared by device_readstb,
// device_trigger, device_clear, device_remote, device_local and
// device_lock. device_enable_srq uses DeviceEnableSrqParms instead.
type DeviceGenericParms struct {
	Link        uint32
	Flags       uint32
	LockTimeout uint32
	IOTimeout   uint32
}

func (p DeviceGenericParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.Link)
	e.Uint32(p.Flags)
	e.Uint32(p.LockTimeout)
	e.Uint32(p.IOTimeout)
	return e.Bytes()
}

// DeviceError is the minimal result struct returned by most generic calls.
type DeviceError struct {
	Error int32
}

func DecodeDeviceError(b []byte) (DeviceError, error) {
	d := NewDecoder(b)
	e, err := d.Int32()
	return DeviceError{Error: e}, err
}

// DeviceDocmdParms is the argument struct for device_docmd.
type DeviceDocmdParms struct {
	Link          uint32
	Flags         uint32
	IOTimeout     uint32
	LockTimeout   uint32
	Cmd           int32
	NetworkOrder  bool
	DataSize      int32
	Data          []byte
}

func (p DeviceDocmdParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.Link)
	e.Uint32(p.Flags)
	e.Uint32(p.IOTimeout)
	e.Uint32(p.LockTimeout)
	e.Int32(p.Cmd)
	e.Bool(p.NetworkOrder)
	e.Int32(p.DataSize)
	e.Opaque(p.Data)
	return e.Bytes()
}

// DeviceDocmdResp is the result struct for device_docmd.
type DeviceDocmdResp struct {
	Error int32
	Data  []byte
}

func DecodeDeviceDocmdResp(b []byte) (DeviceDocmdResp, error) {
	d := NewDecoder(b)
	var r DeviceDocmdResp
	var err error
	if r.Error, err = d.Int32(); err != nil {
		return r, err
	}
	if r.Data, err = d.Opaque(); err != nil {
		return r, err
	}
	return r, nil
}

// DeviceEnableSrqParms is the argument struct for device_enable_srq.
type DeviceEnableSrqParms struct {
	Link   uint32
	Enable bool
	Handle []byte
}

func (p DeviceEnableSrqParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.Link)
	e.Bool(p.Enable)
	e.Opaque(p.Handle)
	return e.Bytes()
}

// DeviceReadStbResp is the result struct for device_readstb.
type DeviceReadStbResp struct {
	Error int32
	Stb   byte
}

func DecodeDeviceReadStbResp(b []byte) (DeviceReadStbResp, error) {
	d := NewDecoder(b)
	var r DeviceReadStbResp
	var err error
	if r.Error, err = d.Int32(); err != nil {
		return r, err
	}
	stb, err := d.Uint32()
	if err != nil {
		return r, err
	}
	r.Stb = byte(stb)
	return r, nil
}

// CreateIntrChanParms is the argument struct for create_intr_chan.
type CreateIntrChanParms struct {
	HostAddr uint32 // IPv4 address, network byte order in a host-order uint32
	HostPort uint16
	Prog     uint32
	Vers     uint32
	Family   uint32 // DEVICE_TCP == 0
}

func (p CreateIntrChanParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.HostAddr)
	e.Uint32(uint32(p.HostPort))
	e.Uint32(p.Prog)
	e.Uint32(p.Vers)
	e.Uint32(p.Family)
	return e.Bytes()
}

// DestroyLinkParms is the argument struct for destroy_link.
type DestroyLinkParms struct {
	Link uint32
}

func (p DestroyLinkParms) Encode() []byte {
	e := NewEncoder()
	e.Uint32(p.Link)
	return e.Bytes()
}
