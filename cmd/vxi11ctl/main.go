/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

// Command vxi11ctl configures a single VXI-11 gateway connection, reports
// its status, and optionally exercises write and read against one GPIB
// address. It is meant for manual testing and scripting, not as the only
// way to drive the driver core -- Configure is the library entry point
// most callers should use directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hanlet/asyn/pkg/log"
	"github.com/hanlet/asyn/pkg/portmgr"
	"github.com/hanlet/asyn/pkg/vxi11"
)

func main() {
	var (
		portName       = flag.String("port", "L0", "port name to register")
		host           = flag.String("host", "", "gateway hostname or IP address (required)")
		vxiName        = flag.String("vxi-name", "gpib0", "VXI-11 device string passed to create_link")
		addr           = flag.Int("addr", vxi11.ServerAddr, "GPIB address to talk to (-1 for the server link only)")
		recoverWithIFC = flag.Bool("recover-with-ifc", false, "issue an Interface Clear after an I/O timeout")
		timeout        = flag.Duration("timeout", 4*time.Second, "default I/O timeout; negative means wait forever")
		statusEndpoint = flag.String("status-endpoint", "", "if set, serve port status over gRPC at this tcp://host:port or unix://path endpoint")
		write          = flag.String("write", "", "if set, write this string to addr after connecting")
		read           = flag.Int("read", 0, "if > 0, read up to this many bytes from addr after any write")
	)
	_ = log.InitSimpleFlags()
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "vxi11ctl: -host is required")
		os.Exit(2)
	}

	logger := log.NewSimpleLogger(log.NewSimpleConfig())
	log.Set(logger)

	mgr := portmgr.New(logger)

	ctx := context.Background()
	port, err := vxi11.Configure(ctx, vxi11.Config{
		PortName:       *portName,
		Host:           *host,
		VXIName:        *vxiName,
		RecoverWithIFC: *recoverWithIFC,
		DefaultTimeout: *timeout,
	}, mgr, mgr, logger)
	if err != nil {
		logger.Fatalf("configure: %v", err)
	}

	if *statusEndpoint != "" {
		status := portmgr.NewStatusServer(*statusEndpoint, mgr, logger)
		if err := status.Start(ctx); err != nil {
			logger.Fatalf("status service: %v", err)
		}
		logger.Infow("status service ready", "address", status.Addr())
	}

	if !port.Connected() {
		logger.Fatalf("vxi11ctl: port %q did not connect", *portName)
	}

	if *addr != vxi11.ServerAddr {
		if err := port.Connect(ctx, *addr); err != nil {
			logger.Fatalf("connect addr %d: %v", *addr, err)
		}
	}

	if *write != "" {
		n, err := port.Write(*addr, []byte(*write), *timeout)
		if err != nil {
			logger.Fatalf("write: %v", err)
		}
		logger.Infow("write complete", "bytes", n)
	}

	if *read > 0 {
		buf := make([]byte, *read)
		n, reason, err := port.Read(*addr, buf, *timeout)
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		logger.Infow("read complete", "bytes", n, "reason", reason)
		os.Stdout.Write(buf[:n]) // nolint: errcheck
	}

	if *statusEndpoint == "" {
		port.DisconnectPort()
	} else {
		select {} // keep the status service up until killed
	}
}
