/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package vxi11

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hanlet/asyn/pkg/log"
	"github.com/hanlet/asyn/pkg/vxi11/oncrpc"
	"github.com/hanlet/asyn/pkg/vxi11/srq"
)

// platformMaxRPCWait stands in for "the platform maximum" RPC deadline
// that a negative (infinite) io_timeout maps to. A real OS RPC deadline
// cannot be literally infinite, so a very large, finite one is used, and
// ioCall additionally retries indefinitely on RPC-layer timeout while the
// caller's timeout is negative (see ioCall).
const platformMaxRPCWait = 365 * 24 * time.Hour

// defaultCallTimeout is the RPC call timeout used for ordinary control
// calls (create_link, destroy_link, docmd, and so on) unless overridden by
// the rpctimeout option.
const defaultCallTimeout = 4 * time.Second

// Observer receives Port and per-address lifecycle notifications. This is
// the subset of the Port Manager collaborator API (§6) that the driver
// core calls outward into; the rest (locking, getAddr, AsynUser) is the Port
// Manager's own responsibility and is not modelled here. See package
// portmgr for a reference implementation.
type Observer interface {
	ConnectDevice(port string, addr int)
	Disconnect(port string, addr int)
	ExceptionConnect(port string, addr int)
	ExceptionDisconnect(port string, addr int)

	// SRQ delivers the SRQ notification hook: an edge, not a message,
	// raised once per non-empty read the SRQ reader observes.
	SRQ(port string)
}

// Port is one configured gateway connection: a server link, the device
// link table, the SRQ subsystem, and the RPC client used to reach it. A
// Port is constructed once by Configure and lives until process exit;
// Connect/Disconnect cycle its connected state without rebuilding it.
type Port struct {
	Name           string
	Host           string
	VXIName        string
	IsSingleLink   bool
	RecoverWithIFC bool
	CallTimeout    time.Duration
	DefaultTimeout time.Duration

	logger  log.Logger
	observer Observer

	mu          sync.Mutex
	client      *oncrpc.Client
	links       *linkTable
	maxRecvSize uint32
	abortPort   uint16
	ctrlAddr    int
	connected   bool

	srq *srq.Subsystem

	rpcInit sync.Once // process-wide RPC init latch, per port, not global
}

func newPort(name, host, vxiName string, recoverWithIFC bool, defaultTimeout time.Duration, logger log.Logger, observer Observer) *Port {
	return &Port{
		Name:           name,
		Host:           host,
		VXIName:        vxiName,
		IsSingleLink:   strings.HasPrefix(strings.ToLower(vxiName), "inst"),
		RecoverWithIFC: recoverWithIFC,
		CallTimeout:    defaultCallTimeout,
		DefaultTimeout: defaultTimeout,
		logger:         logger,
		observer:       observer,
		links:          newLinkTable(),
		ctrlAddr:       -1,
	}
}

// Connected reports whether the Port is currently connected to its
// gateway.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// call is the ordinary control-call primitive (C1): it uses the Port's
// configured RPC timeout and, on any RPC status other than success or
// timeout, disconnects the Port. Timeouts do not disconnect.
func (p *Port) call(proc uint32, args []byte) ([]byte, error) {
	p.mu.Lock()
	client := p.client
	timeout := p.CallTimeout
	p.mu.Unlock()
	if client == nil {
		return nil, &Error{Op: "call", Port: p.Name, Addr: -1, Status: StatusError, Message: fmt.Sprintf("call: port %q is not connected", p.Name)}
	}

	status, body, err := client.Call(proc, args, timeout)
	switch status {
	case oncrpc.Success:
		return body, nil
	case oncrpc.TimedOut:
		return nil, newRPCError("call", p.Name, -1, status, err)
	default:
		rpcErr := newRPCError("call", p.Name, -1, status, err)
		p.DisconnectPort()
		return nil, rpcErr
	}
}

// ioCall is the I/O call primitive (C1): the RPC wait is
// max(userTimeout+1s, 1s), with a negative userTimeout mapping to the
// platform maximum. While userTimeout is negative, a low-level RPC timeout
// is retried indefinitely so that reads can wait forever; any other
// outcome -- success, a non-timeout RPC failure, or a VXI-level response
// (even VXI_IOTIMEOUT) -- returns immediately.
func (p *Port) ioCall(proc uint32, args []byte, userTimeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return nil, &Error{Op: "ioCall", Port: p.Name, Addr: -1, Status: StatusError, Message: fmt.Sprintf("ioCall: port %q is not connected", p.Name)}
	}

	rpcWait := userTimeout + time.Second
	infinite := userTimeout < 0
	if infinite {
		rpcWait = platformMaxRPCWait
	} else if rpcWait < time.Second {
		rpcWait = time.Second
	}

	for {
		status, body, err := client.Call(proc, args, rpcWait)
		if status == oncrpc.TimedOut && infinite {
			continue
		}
		switch status {
		case oncrpc.Success:
			return body, nil
		case oncrpc.TimedOut:
			return nil, newRPCError("ioCall", p.Name, -1, status, err)
		default:
			rpcErr := newRPCError("ioCall", p.Name, -1, status, err)
			p.DisconnectPort()
			return nil, rpcErr
		}
	}
}

// ioTimeoutMillis converts a duration into the io_timeout milliseconds
// field sent to the gateway, saturating to the platform's 32-bit maximum
// instead of wrapping, matching getIoTimeout's ULONG_MAX saturation for
// negative (infinite) timeouts.
func ioTimeoutMillis(timeout time.Duration) uint32 {
	if timeout < 0 {
		return 0xFFFFFFFF
	}
	ms := timeout.Milliseconds()
	if ms > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(ms)
}

// createDeviceLink issues create_link for the server link ("<vxiName>") or
// a device link ("<vxiName>,<primary>[,<secondary>]"), per C2. On success
// it stores lid, maxRecvSize and abortPort, applying invariant 3's match
// policy: the first response's values are retained, later ones are only
// compared and logged if they disagree.
func (p *Port) createDeviceLink(link *DeviceLink, device string) error {
	args := oncrpc.CreateLinkParms{
		ClientID:    0,
		LockDevice:  false,
		LockTimeout: 0,
		Device:      device,
	}.Encode()
	body, err := p.call(oncrpc.ProcCreateLink, args)
	if err != nil {
		return err
	}
	resp, err := oncrpc.DecodeCreateLinkResp(body)
	if err != nil {
		return errors.Wrap(err, "decode create_link reply")
	}
	if resp.Error != ErrNone {
		return newVXIError("createDeviceLink", p.Name, -1, resp.Error)
	}

	p.mu.Lock()
	if p.maxRecvSize == 0 {
		p.maxRecvSize = resp.MaxRecvSize
		p.abortPort = resp.AbortPort
	} else if resp.MaxRecvSize != p.maxRecvSize || resp.AbortPort != p.abortPort {
		p.logger.Warnw("create_link returned values differing from the first link", "port", p.Name,
			"maxRecvSize", resp.MaxRecvSize, "origMaxRecvSize", p.maxRecvSize,
			"abortPort", resp.AbortPort, "origAbortPort", p.abortPort)
	}
	p.mu.Unlock()

	link.id = resp.Link
	link.connected = true
	return nil
}

// destroyDeviceLink issues destroy_link; failures are reported but never
// fatal to the caller.
func (p *Port) destroyDeviceLink(link *DeviceLink) {
	if !link.connected {
		return
	}
	args := oncrpc.DestroyLinkParms{Link: link.id}.Encode()
	if _, err := p.call(oncrpc.ProcDestroyLink, args); err != nil {
		p.logger.Warnw("destroy_link failed", "port", p.Name, "error", err)
	}
	link.connected = false
}

// getDeviceLink resolves addr to its DeviceLink slot (C2).
func (p *Port) getDeviceLink(addr int) (*DeviceLink, error) {
	return p.links.slot(addr, p.IsSingleLink)
}

// ConnectPort implements connectPort (C6): resolve and dial the gateway,
// create the server link, learn the controller address, verify controller
// role, start the SRQ subsystem, and notify observers.
func (p *Port) ConnectPort(ctx context.Context) error {
	p.rpcInit.Do(func() {
		// The oncrpc transport needs no process-wide initialisation, unlike
		// the platform RPC library the original driver depended on; this
		// latch exists only to preserve that lifecycle shape per port.
	})

	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	port, err := oncrpc.LookupPort(ctx, p.Host, oncrpc.DeviceCoreProgram, oncrpc.DeviceCoreVersion, p.logger)
	if err != nil {
		return errors.Wrapf(err, "connectPort %q: locate DEVICE_CORE on %s", p.Name, p.Host)
	}
	client, err := oncrpc.Dial(ctx, fmt.Sprintf("%s:%d", p.Host, port), oncrpc.DeviceCoreProgram, oncrpc.DeviceCoreVersion, p.logger)
	if err != nil {
		return errors.Wrapf(err, "connectPort %q: dial %s", p.Name, p.Host)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	device := p.VXIName
	if err := p.createDeviceLink(&p.links.server, device); err != nil {
		p.closeClient()
		return errors.Wrapf(err, "connectPort %q: create server link", p.Name)
	}

	ctrlAddr, err := p.busStatus(vxiBstatBusAddress, p.CallTimeout)
	if err != nil {
		p.DisconnectPort()
		return errors.Wrapf(err, "connectPort %q: query controller address", p.Name)
	}
	p.mu.Lock()
	p.ctrlAddr = int(ctrlAddr)
	p.mu.Unlock()
	if slot, err := p.getDeviceLink(int(ctrlAddr)); err == nil {
		slot.id = p.links.server.id
		slot.connected = true
	}

	sysController, err := p.busStatus(vxiBstatSystemController, p.CallTimeout)
	if err != nil {
		p.DisconnectPort()
		return errors.Wrapf(err, "connectPort %q: query system controller", p.Name)
	}
	if sysController == 0 {
		inCharge, err := p.busStatus(vxiBstatControllerInCharge, p.CallTimeout)
		if err != nil {
			p.DisconnectPort()
			return errors.Wrapf(err, "connectPort %q: query controller in charge", p.Name)
		}
		if inCharge == 0 {
			p.DisconnectPort()
			return &Error{Op: "connectPort", Port: p.Name, Status: StatusError,
				Message: fmt.Sprintf("connectPort: port %q: gateway is neither system controller nor controller in charge", p.Name)}
		}
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.startSRQ(ctx)

	if p.observer != nil {
		p.observer.ConnectDevice(p.Name, ServerAddr)
	}
	return nil
}

// startSRQ implements C5's connect-time sequence: start the reader, get
// its listener address, register it with the gateway via
// create_intr_chan, and enable SRQ. Failures here are non-fatal: the Port
// runs without SRQ, with a warning.
func (p *Port) startSRQ(ctx context.Context) {
	s := srq.New(p.logger, p.onSRQ)
	addr, err := s.Start()
	if err != nil {
		p.logger.Warnw("SRQ subsystem failed to start, continuing without SRQ", "port", p.Name, "error", err)
		return
	}
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		p.logger.Warnw("SRQ listener address has unexpected type, continuing without SRQ", "port", p.Name)
		s.Stop()
		return
	}

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	localAddr, ok := client.LocalAddr().(*net.TCPAddr)
	if !ok || localAddr.IP == nil {
		p.logger.Warnw("SRQ subsystem could not determine local address, continuing without SRQ", "port", p.Name)
		s.Stop()
		return
	}
	localIP := localAddr.IP.To4()
	if localIP == nil {
		p.logger.Warnw("SRQ subsystem local address is not IPv4, continuing without SRQ", "port", p.Name, "address", localAddr.IP)
		s.Stop()
		return
	}

	args := oncrpc.CreateIntrChanParms{
		HostAddr: ipv4ToUint32(localIP),
		HostPort: uint16(tcpAddr.Port),
		Prog:     oncrpc.DeviceIntrProgram,
		Vers:     oncrpc.DeviceIntrVersion,
		Family:   0, // DEVICE_TCP
	}.Encode()
	body, err := p.call(oncrpc.ProcCreateIntrChan, args)
	if err != nil {
		p.logger.Warnw("create_intr_chan failed, continuing without SRQ", "port", p.Name, "error", err)
		s.Stop()
		return
	}
	resp, err := oncrpc.DecodeDeviceError(body)
	if err != nil || resp.Error != ErrNone {
		p.logger.Warnw("create_intr_chan rejected, continuing without SRQ", "port", p.Name, "error", err)
		s.Stop()
		return
	}

	if err := p.srqEnable(true); err != nil {
		p.logger.Warnw("device_enable_srq failed, continuing without SRQ", "port", p.Name, "error", err)
		s.Stop()
		return
	}

	p.mu.Lock()
	p.srq = s
	p.mu.Unlock()
}

// onSRQ is invoked from the SRQ reader goroutine; it forwards the edge
// notification to the observer.
func (p *Port) onSRQ() {
	if p.observer != nil {
		p.observer.SRQ(p.Name)
	}
}

// DisconnectPort implements disconnectPort (C6): destroy all non-
// controller device links (notifying observers per-address first),
// destroy the intr channel, server link, and RPC client, tear down SRQ,
// and notify observers the Port is disconnected.
func (p *Port) DisconnectPort() {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return
	}
	ctrlAddr := p.ctrlAddr
	isSingleLink := p.IsSingleLink
	// Cleared up front, not after teardown: the RPCs below go through
	// call/ioCall, whose own failure path re-enters DisconnectPort, and
	// that re-entrant call must see "already disconnected" rather than
	// recurse through the same teardown again.
	p.connected = false
	p.mu.Unlock()

	if !isSingleLink {
		for primary := 0; primary < NumGPIBAddresses; primary++ {
			for secondary := 0; secondary < NumGPIBAddresses; secondary++ {
				// The secondary==0 slot doubles as the primary-only address
				// (see decodeAddr); ctrlAddr is always a primary-only
				// address, so it only ever needs excluding there -- every
				// secondary-addressed slot is torn down unconditionally,
				// matching vxiDisconnectPort's separate .primary/.secondary
				// loops in the original driver.
				if secondary == 0 && primary == ctrlAddr {
					continue
				}
				slot := &p.links.devices[primary][secondary]
				if slot.connected {
					addr := encodeAddr(primary, secondary, secondary != 0)
					p.disconnectException(addr, slot)
				}
			}
		}
	}

	if _, err := p.call(oncrpc.ProcDestroyIntrChan, nil); err != nil {
		p.logger.Warnw("destroy_intr_chan failed", "port", p.Name, "error", err)
	}
	p.destroyDeviceLink(&p.links.server)
	p.closeClient()

	p.mu.Lock()
	s := p.srq
	p.srq = nil
	p.mu.Unlock()
	if s != nil {
		s.Stop()
	}

	if p.observer != nil {
		p.observer.Disconnect(p.Name, ServerAddr)
	}
}

// disconnectException implements the per-address disconnect-exception
// notification sub-protocol from the original driver: the observer is
// told the address connected (so its per-address state is consistent),
// then exception-disconnected, before the link itself is torn down.
func (p *Port) disconnectException(addr int, slot *DeviceLink) {
	if p.observer != nil {
		p.observer.ConnectDevice(p.Name, addr)
		p.observer.ExceptionDisconnect(p.Name, addr)
	}
	p.destroyDeviceLink(slot)
}

func (p *Port) closeClient() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client != nil {
		client.Close() // nolint: errcheck
	}
}

// Connect implements connect(addr) (C6): addr == -1 delegates to
// ConnectPort. For a positive addr, an already-connected slot fails with
// "already connected"; if the Port itself is not yet connected, the
// per-address connect is deferred (reported to the observer without
// creating a gateway link) until the Port connects.
func (p *Port) Connect(ctx context.Context, addr int) error {
	if addr == ServerAddr {
		return p.ConnectPort(ctx)
	}

	slot, err := p.getDeviceLink(addr)
	if err != nil {
		return err
	}
	if slot.connected {
		return &Error{Op: "connect", Port: p.Name, Addr: addr, Status: StatusError,
			Message: fmt.Sprintf("connect: port %q addr %d: already connected", p.Name, addr)}
	}

	if !p.Connected() {
		if p.observer != nil {
			p.observer.ConnectDevice(p.Name, addr)
		}
		return nil
	}

	primary, secondary, extended, err := decodeAddr(addr)
	if err != nil {
		return err
	}
	device := fmt.Sprintf("%s,%d", p.VXIName, primary)
	if extended {
		device = fmt.Sprintf("%s,%d", device, secondary)
	}
	if err := p.createDeviceLink(slot, device); err != nil {
		return err
	}
	if p.observer != nil {
		p.observer.ConnectDevice(p.Name, addr)
	}
	return nil
}

// Disconnect implements disconnect(addr) (C6).
func (p *Port) Disconnect(addr int) {
	if addr == ServerAddr {
		p.DisconnectPort()
		return
	}
	slot, err := p.getDeviceLink(addr)
	if err != nil {
		return
	}
	p.destroyDeviceLink(slot)
	if p.observer != nil {
		p.observer.Disconnect(p.Name, addr)
	}
}

// SetOption implements the rpctimeout option (C6): a case-insensitive key,
// value parsed as a floating-point number of seconds.
func (p *Port) SetOption(key, value string) error {
	if !strings.EqualFold(key, "rpctimeout") {
		return fmt.Errorf("vxi11: unsupported option %q", key)
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("vxi11: rpctimeout value %q: %w", value, err)
	}
	p.mu.Lock()
	p.CallTimeout = time.Duration(seconds * float64(time.Second))
	p.mu.Unlock()
	return nil
}

// Report writes host, resolved VXI name, controller address, maxRecvSize,
// and (at higher detail) the single-link flag and RPC call timeout, for
// diagnostics. Carried from the original driver's report() method, which
// the distilled specification only refers to indirectly via the Port
// Manager's introspection needs.
func (p *Port) Report(w io.Writer, details int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(w, "%s: host=%s vxiName=%s connected=%v ctrlAddr=%d maxRecvSize=%d\n", //nolint: errcheck
		p.Name, p.Host, p.VXIName, p.connected, p.ctrlAddr, p.maxRecvSize)
	if details > 0 {
		fmt.Fprintf(w, "    isSingleLink=%v recoverWithIFC=%v callTimeout=%s abortPort=%d\n", //nolint: errcheck
			p.IsSingleLink, p.RecoverWithIFC, p.CallTimeout, p.abortPort)
	}
}

// CtrlAddr returns the gateway's active controller address, as last learned
// at connect time, or -1 if the Port has never connected.
func (p *Port) CtrlAddr() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctrlAddr
}

// MaxRecvSize returns the largest single device_write payload the gateway
// will accept, learned from the server link's create_link reply.
func (p *Port) MaxRecvSize() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxRecvSize
}

func ipv4ToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}
