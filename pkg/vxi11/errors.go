/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package vxi11

import (
	"fmt"

	"github.com/hanlet/asyn/pkg/vxi11/oncrpc"
)

// VXI error codes, as defined by the VXI-11 standard. The gateway returns
// one of these in the error field of almost every reply.
const (
	ErrNone         int32 = 0
	ErrSyntax       int32 = 1
	ErrNoAccess     int32 = 3
	ErrInvLink      int32 = 4
	ErrParamErr     int32 = 5
	ErrNoChan       int32 = 6
	ErrNotSupp      int32 = 8
	ErrNoRes        int32 = 9
	ErrDevLock      int32 = 11
	ErrNoLock       int32 = 12
	ErrIOTimeout    int32 = 15
	ErrIOErr        int32 = 17
	ErrInvAddr      int32 = 21
	ErrAbort        int32 = 23
	ErrChanExist    int32 = 29
)

var vxiErrorText = map[int32]string{
	ErrNone:      "no error",
	ErrSyntax:    "syntax error",
	ErrNoAccess:  "device not accessible",
	ErrInvLink:   "invalid link identifier",
	ErrParamErr:  "parameter error",
	ErrNoChan:    "channel not established",
	ErrNotSupp:   "operation not supported",
	ErrNoRes:     "out of resources",
	ErrDevLock:   "device locked by another link",
	ErrNoLock:    "no lock held by this link",
	ErrIOTimeout: "I/O timeout",
	ErrIOErr:     "I/O error",
	ErrInvAddr:   "invalid address",
	ErrAbort:     "abort",
	ErrChanExist: "channel already established",
}

// vxiErrorString renders a VXI error code the same way the gateway's own
// error text would read, falling back to the numeric code for values the
// standard does not define.
func vxiErrorString(code int32) string {
	if s, ok := vxiErrorText[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown VXI error %d", code)
}

// Status is the outward-facing outcome of a driver operation. Every
// operation collapses the much richer VXI/RPC failure space down to these
// three kinds, per the error handling design: success, timeout, error.
type Status int

const (
	StatusSuccess Status = iota
	StatusTimeout
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Error is the driver's error type. It carries both a human-readable
// diagnostic (port name, address, and the decoded VXI or RPC text, never
// machine secrets) and the machine-readable status and VXI code so a
// caller can react programmatically without parsing the message.
type Error struct {
	Op      string
	Port    string
	Addr    int
	Code    int32 // VXI error code, or -1 if this was an RPC-layer failure
	Status  Status
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// newVXIError builds an Error from a gateway-reported VXI error code.
// VXI_IOTIMEOUT maps to StatusTimeout; every other non-OK code maps to
// StatusError, per the error map (C7).
func newVXIError(op, port string, addr int, code int32) *Error {
	status := StatusError
	if code == ErrIOTimeout {
		status = StatusTimeout
	}
	return &Error{
		Op:      op,
		Port:    port,
		Addr:    addr,
		Code:    code,
		Status:  status,
		Message: fmt.Sprintf("%s: port %q addr %d: %s (vxi code %d)", op, port, addr, vxiErrorString(code), code),
	}
}

// newRPCError builds an Error from a transport-layer failure. A
// oncrpc.TimedOut status during an I/O call maps to StatusTimeout; any
// other RPC failure maps to StatusError and, per C1/C7, triggers Port
// disconnect at the call site.
func newRPCError(op, port string, addr int, callStatus oncrpc.CallStatus, cause error) *Error {
	status := StatusError
	if callStatus == oncrpc.TimedOut {
		status = StatusTimeout
	}
	msg := fmt.Sprintf("%s: port %q addr %d: RPC %s", op, port, addr, callStatus)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{
		Op:      op,
		Port:    port,
		Addr:    addr,
		Code:    -1,
		Status:  status,
		Message: msg,
	}
}

// IsTimeout reports whether err represents a timeout, matching the VXI or
// RPC layer classification the error map produces.
func IsTimeout(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Status == StatusTimeout
	}
	return false
}
