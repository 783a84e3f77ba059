/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

// Package vxi11 implements the client side of the VXI-11 (TCP/IP Instrument
// Protocol) driver core: RPC transport, the per-gateway link table, device
// I/O, GPIB control commands, the SRQ subsystem, port lifecycle, and the
// VXI/RPC error taxonomy. It talks to LAN<->GPIB gateways such as the
// HP/Agilent E2050 and E5810, and to single-link VXI-11 instruments.
//
// The package does not provide locking, a synchronous convenience wrapper,
// or CLI registration; those are the responsibility of a collaborating Port
// Manager (see package portmgr for a reference implementation of that
// collaborator API).
package vxi11
