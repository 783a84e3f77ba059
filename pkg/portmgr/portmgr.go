/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

// Package portmgr is a reference implementation of the Port Manager
// collaborator that every vxi11.Port talks to: it satisfies
// vxi11.Registrar and vxi11.Observer, tracks per-address lock and
// connection state, and hands out AsynUser handles the way the original
// asyn layer's registerPort/lockPort/createAsynUser family does. A real
// deployment could replace this with something backed by a database or a
// cluster-wide coordinator; this one keeps everything in memory.
package portmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/hanlet/asyn/pkg/log"
	"github.com/hanlet/asyn/pkg/vxi11"
)

// AsynUser is a per-caller handle, analogous to the original driver's
// asynUser: it carries the caller's desired timeout and an opaque
// userPvt value, and accumulates the last error message set against it.
type AsynUser struct {
	Timeout time.Duration
	UserPvt interface{}

	mu           sync.Mutex
	errorMessage string
}

// SetErrorMessage records the most recent error text for this user.
func (u *AsynUser) SetErrorMessage(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errorMessage = msg
}

// ErrorMessage returns the most recently recorded error text, if any.
func (u *AsynUser) ErrorMessage() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.errorMessage
}

// deviceState is the Manager's per-(port,addr) bookkeeping: whether the
// address is currently connected from the driver core's point of view,
// and which AsynUser, if any, holds the lock.
type deviceState struct {
	connected  bool
	lockHolder *AsynUser
}

// portEntry bundles a registered Port with its addressing mode and
// per-address device states.
type portEntry struct {
	port        *vxi11.Port
	multiDevice bool
	devices     map[int]*deviceState
}

// Manager is the in-memory Port Manager. Zero value is not usable; use
// New.
type Manager struct {
	logger log.Logger

	mu    sync.Mutex
	ports map[string]*portEntry
}

// New constructs an empty Manager.
func New(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.L()
	}
	return &Manager{logger: logger, ports: make(map[string]*portEntry)}
}

func (m *Manager) entry(portName string) (*portEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ports[portName]
	if !ok {
		return nil, fmt.Errorf("portmgr: unknown port %q", portName)
	}
	return e, nil
}

func (e *portEntry) deviceState(addr int) *deviceState {
	d, ok := e.devices[addr]
	if !ok {
		d = &deviceState{}
		e.devices[addr] = d
	}
	return d
}

// Register implements vxi11.Registrar: it records the Port under its
// name and whether it multiplexes several device addresses.
func (m *Manager) Register(portName string, port *vxi11.Port, multiDevice bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ports[portName]; exists {
		return fmt.Errorf("portmgr: port %q already registered", portName)
	}
	m.ports[portName] = &portEntry{port: port, multiDevice: multiDevice, devices: make(map[int]*deviceState)}
	m.logger.Infow("port registered", "port", portName, "multiDevice", multiDevice)
	return nil
}

// Port looks up a previously registered Port by name.
func (m *Manager) Port(portName string) (*vxi11.Port, error) {
	e, err := m.entry(portName)
	if err != nil {
		return nil, err
	}
	return e.port, nil
}

// ConnectDevice implements vxi11.Observer: marks addr connected.
func (m *Manager) ConnectDevice(portName string, addr int) {
	e, err := m.entry(portName)
	if err != nil {
		m.logger.Warnw("connectDevice for unknown port", "port", portName, "addr", addr)
		return
	}
	m.mu.Lock()
	e.deviceState(addr).connected = true
	m.mu.Unlock()
}

// Disconnect implements vxi11.Observer: marks addr disconnected and
// releases any lock held on it.
func (m *Manager) Disconnect(portName string, addr int) {
	e, err := m.entry(portName)
	if err != nil {
		m.logger.Warnw("disconnect for unknown port", "port", portName, "addr", addr)
		return
	}
	m.mu.Lock()
	d := e.deviceState(addr)
	d.connected = false
	d.lockHolder = nil
	m.mu.Unlock()
}

// ExceptionConnect implements vxi11.Observer by marking addr connected,
// exactly as ConnectDevice does; the driver core never calls this directly today, but the hook
// exists for symmetry with the original exception-connect/disconnect
// pairing.
func (m *Manager) ExceptionConnect(portName string, addr int) {
	m.ConnectDevice(portName, addr)
}

// ExceptionDisconnect implements vxi11.Observer: the driver core uses
// this to report an address whose link was torn down unexpectedly, as
// opposed to a cooperative Disconnect call.
func (m *Manager) ExceptionDisconnect(portName string, addr int) {
	e, err := m.entry(portName)
	if err != nil {
		m.logger.Warnw("exceptionDisconnect for unknown port", "port", portName, "addr", addr)
		return
	}
	m.mu.Lock()
	d := e.deviceState(addr)
	d.connected = false
	d.lockHolder = nil
	m.mu.Unlock()
	m.logger.Warnw("device link lost, exception disconnect", "port", portName, "addr", addr)
}

// SRQ implements vxi11.Observer: logs the service-request edge. A real
// Port Manager would fan this out to whichever AsynUser has registered
// interrupt interest; this reference implementation only logs it.
func (m *Manager) SRQ(portName string) {
	m.logger.Debugw("SRQ received", "port", portName)
}

// LockPort acquires an exclusive lock on (portName, addr) for user. It
// fails if another user already holds it.
func (m *Manager) LockPort(portName string, addr int, user *AsynUser) error {
	e, err := m.entry(portName)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := e.deviceState(addr)
	if d.lockHolder != nil && d.lockHolder != user {
		return fmt.Errorf("portmgr: port %q addr %d: already locked", portName, addr)
	}
	d.lockHolder = user
	return nil
}

// UnlockPort releases a lock previously acquired by user; unlocking an
// address not locked by user is a no-op.
func (m *Manager) UnlockPort(portName string, addr int, user *AsynUser) error {
	e, err := m.entry(portName)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := e.deviceState(addr)
	if d.lockHolder == user {
		d.lockHolder = nil
	}
	return nil
}

// GetAddr decodes addr into its (primary, secondary) GPIB components, per
// the same addressing scheme vxi11 uses internally.
func (m *Manager) GetAddr(addr int) (primary, secondary int, err error) {
	return vxi11.DecodeAddr(addr)
}

// CreateAsynUser allocates a new AsynUser handle.
func (m *Manager) CreateAsynUser(timeout time.Duration, userPvt interface{}) *AsynUser {
	return &AsynUser{Timeout: timeout, UserPvt: userPvt}
}

// FreeAsynUser releases user's locks across every registered port.
func (m *Manager) FreeAsynUser(user *AsynUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.ports {
		for _, d := range e.devices {
			if d.lockHolder == user {
				d.lockHolder = nil
			}
		}
	}
}

// Connected reports addr's last-known connected state for portName, as
// observed through the Observer callbacks.
func (m *Manager) Connected(portName string, addr int) (bool, error) {
	e, err := m.entry(portName)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return e.deviceState(addr).connected, nil
}

// PortNames returns the names of every registered port, for status
// reporting.
func (m *Manager) PortNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.ports))
	for name := range m.ports {
		names = append(names, name)
	}
	return names
}
