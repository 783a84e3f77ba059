/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package vxi11

import (
	"context"
	"fmt"
	"time"

	"github.com/hanlet/asyn/pkg/log"
)

// defaultDefaultTimeout is substituted for any configured default I/O
// timeout too small to be meaningful (<= 100us), matching the original
// driver's "effectively unset" threshold.
const defaultDefaultTimeout = 4 * time.Second

// Registrar is the subset of the Port Manager collaborator API (§6) that
// Configure calls outward into at setup time: registering the new Port
// under its name and declaring whether it multiplexes several device
// addresses or serves exactly one ("single-link", e.g. an "inst0"-style
// VXI name).
type Registrar interface {
	Register(portName string, port *Port, multiDevice bool) error
}

// Config captures Configure's parameters as an explicit object rather
// than a long positional argument list, since most of them are optional
// and several only make sense in combination.
type Config struct {
	// PortName names the asyn Port being created; also used to derive the
	// SRQ reader's diagnostic name ("<PortName>SRQ").
	PortName string
	// Host is the gateway's hostname or IP address.
	Host string
	// VXIName is the VXI-11 device string passed to create_link for the
	// server link (e.g. "gpib0" or "inst0"). A name starting with "inst"
	// (case-insensitive) puts the Port in single-link mode.
	VXIName string
	// RecoverWithIFC, when set, has I/O timeouts trigger an Interface
	// Clear before being reported to the caller.
	RecoverWithIFC bool
	// DefaultTimeout is stored on the Port as Port.DefaultTimeout. Values
	// <= 100us are replaced by defaultDefaultTimeout. Read and Write take
	// their timeout as an argument and do not fall back to this value.
	DefaultTimeout time.Duration
	// Priority is written to the "port configured" log line only; it is not
	// passed to the Registrar or to the SRQ reader, and the driver core does
	// not otherwise use it.
	Priority int
	// NoAutoConnect suppresses the automatic ConnectPort call Configure
	// otherwise makes once registration succeeds.
	NoAutoConnect bool
}

// Configure implements the C8 configuration entry point: it builds a Port
// from cfg, registers it with reg (declaring multi-device capability
// unless the Port is single-link), and -- unless NoAutoConnect is set --
// connects it immediately. No option registration takes place here: the
// rpctimeout option is always available through Port.SetOption. The returned
// Port is ready for Connect/Read/Write/etc. regardless of whether the
// initial connect attempt here succeeded; callers may retry ConnectPort
// later.
func Configure(ctx context.Context, cfg Config, reg Registrar, observer Observer, logger log.Logger) (*Port, error) {
	if cfg.PortName == "" {
		return nil, fmt.Errorf("vxi11: configure: PortName is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("vxi11: configure: Host is required")
	}
	if logger == nil {
		logger = log.L()
	}

	defaultTimeout := cfg.DefaultTimeout
	if defaultTimeout <= 100*time.Microsecond {
		defaultTimeout = defaultDefaultTimeout
	}

	port := newPort(cfg.PortName, cfg.Host, cfg.VXIName, cfg.RecoverWithIFC, defaultTimeout, logger, observer)

	if reg != nil {
		if err := reg.Register(cfg.PortName, port, !port.IsSingleLink); err != nil {
			return nil, fmt.Errorf("vxi11: configure: register port %q: %w", cfg.PortName, err)
		}
	}

	logger.Infow("port configured", "port", cfg.PortName, "host", cfg.Host, "vxiName", cfg.VXIName,
		"singleLink", port.IsSingleLink, "srqThread", cfg.PortName+"SRQ", "priority", cfg.Priority)

	if !cfg.NoAutoConnect {
		if err := port.ConnectPort(ctx); err != nil {
			logger.Warnw("initial connect failed, port remains configured for later retry", "port", cfg.PortName, "error", err)
		}
	}

	return port, nil
}
