/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package oncrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/hanlet/asyn/pkg/log"
)

// RFC 1057 portmapper program, used to discover the TCP port a gateway has
// bound DEVICE_CORE (or DEVICE_INTR) to. Gateways register with rpcbind
// rather than fixing a well-known port for the VXI-11 core service.
const (
	pmapProgram     = 100000
	pmapVersion     = 2
	pmapProcGetPort = 3
	pmapPort        = 111

	ipProtoTCP = 6
)

// LookupPort asks the portmapper on host for the TCP port serving
// (prog, vers). It returns an error if rpcbind is unreachable or reports
// that no such program is registered.
func LookupPort(ctx context.Context, host string, prog, vers uint32, logger log.Logger) (int, error) {
	addr := fmt.Sprintf("%s:%d", host, pmapPort)
	client, err := Dial(ctx, addr, pmapProgram, pmapVersion, logger)
	if err != nil {
		return 0, fmt.Errorf("oncrpc: contact portmapper at %s: %w", addr, err)
	}
	defer client.Close()

	e := NewEncoder()
	e.Uint32(prog)
	e.Uint32(vers)
	e.Uint32(ipProtoTCP)
	e.Uint32(0) // port, ignored in the call arguments

	status, body, err := client.Call(pmapProcGetPort, e.Bytes(), 5*time.Second)
	if err != nil {
		return 0, err
	}
	if status != Success {
		return 0, fmt.Errorf("oncrpc: portmapper GETPORT: %s", status)
	}
	port, err := NewDecoder(body).Uint32()
	if err != nil {
		return 0, fmt.Errorf("oncrpc: decode portmapper reply: %w", err)
	}
	if port == 0 {
		return 0, fmt.Errorf("oncrpc: program %#x version %d not registered on %s", prog, vers, host)
	}
	return int(port), nil
}
