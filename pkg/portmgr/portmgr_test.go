/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package portmgr_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hanlet/asyn/pkg/log"
	"github.com/hanlet/asyn/pkg/portmgr"
	"github.com/hanlet/asyn/pkg/vxi11"
)

// registerTestPort registers a Port under mgr without ever dialing a real
// gateway: NoAutoConnect suppresses Configure's initial ConnectPort call,
// which is exactly what a Port Manager's registration bookkeeping needs to
// exercise independently of transport.
func registerTestPort(mgr *portmgr.Manager, name, vxiName string) *vxi11.Port {
	port, err := vxi11.Configure(context.Background(), vxi11.Config{
		PortName:      name,
		Host:          "203.0.113.1",
		VXIName:       vxiName,
		NoAutoConnect: true,
	}, mgr, mgr, log.L())
	Expect(err).NotTo(HaveOccurred())
	return port
}

var _ = Describe("Manager", func() {
	var mgr *portmgr.Manager

	BeforeEach(func() {
		mgr = portmgr.New(log.L())
	})

	Describe("Register", func() {
		It("rejects a second registration under the same name", func() {
			registerTestPort(mgr, "L0", "inst0")
			_, err := vxi11.Configure(context.Background(), vxi11.Config{
				PortName:      "L0",
				Host:          "203.0.113.1",
				VXIName:       "inst0",
				NoAutoConnect: true,
			}, mgr, mgr, log.L())
			Expect(err).To(HaveOccurred())
		})

		It("makes the port retrievable by name", func() {
			port := registerTestPort(mgr, "L0", "inst0")
			got, err := mgr.Port("L0")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeIdenticalTo(port))
		})

		It("fails to look up an unregistered port", func() {
			_, err := mgr.Port("nope")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Observer callbacks", func() {
		It("tracks connected state through ConnectDevice and Disconnect", func() {
			registerTestPort(mgr, "L0", "gpib0")

			connected, err := mgr.Connected("L0", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(connected).To(BeFalse())

			mgr.ConnectDevice("L0", 3)
			connected, err = mgr.Connected("L0", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(connected).To(BeTrue())

			mgr.Disconnect("L0", 3)
			connected, err = mgr.Connected("L0", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(connected).To(BeFalse())
		})

		It("releases a held lock on ExceptionDisconnect", func() {
			registerTestPort(mgr, "L0", "gpib0")
			user := mgr.CreateAsynUser(0, nil)

			Expect(mgr.LockPort("L0", 3, user)).To(Succeed())
			mgr.ExceptionDisconnect("L0", 3)

			other := mgr.CreateAsynUser(0, nil)
			Expect(mgr.LockPort("L0", 3, other)).To(Succeed())
		})

		It("ignores callbacks for an unregistered port without panicking", func() {
			Expect(func() {
				mgr.ConnectDevice("ghost", 1)
				mgr.Disconnect("ghost", 1)
				mgr.ExceptionDisconnect("ghost", 1)
			}).NotTo(Panic())
		})
	})

	Describe("Locking", func() {
		It("denies a second user until the first unlocks", func() {
			registerTestPort(mgr, "L0", "gpib0")
			alice := mgr.CreateAsynUser(0, nil)
			bob := mgr.CreateAsynUser(0, nil)

			Expect(mgr.LockPort("L0", 5, alice)).To(Succeed())
			Expect(mgr.LockPort("L0", 5, bob)).To(HaveOccurred())

			Expect(mgr.UnlockPort("L0", 5, alice)).To(Succeed())
			Expect(mgr.LockPort("L0", 5, bob)).To(Succeed())
		})

		It("allows the same user to re-lock its own address", func() {
			registerTestPort(mgr, "L0", "gpib0")
			alice := mgr.CreateAsynUser(0, nil)
			Expect(mgr.LockPort("L0", 5, alice)).To(Succeed())
			Expect(mgr.LockPort("L0", 5, alice)).To(Succeed())
		})

		It("releases every lock a user holds via FreeAsynUser", func() {
			registerTestPort(mgr, "L0", "gpib0")
			registerTestPort(mgr, "L1", "gpib0")
			alice := mgr.CreateAsynUser(0, nil)

			Expect(mgr.LockPort("L0", 1, alice)).To(Succeed())
			Expect(mgr.LockPort("L1", 2, alice)).To(Succeed())

			mgr.FreeAsynUser(alice)

			bob := mgr.CreateAsynUser(0, nil)
			Expect(mgr.LockPort("L0", 1, bob)).To(Succeed())
			Expect(mgr.LockPort("L1", 2, bob)).To(Succeed())
		})
	})

	Describe("GetAddr", func() {
		It("delegates to vxi11's address decoding", func() {
			primary, secondary, err := mgr.GetAddr(523)
			Expect(err).NotTo(HaveOccurred())
			Expect(primary).To(Equal(5))
			Expect(secondary).To(Equal(23))
		})

		It("rejects an out-of-range extended address", func() {
			_, _, err := mgr.GetAddr(9999)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("PortNames", func() {
		It("lists every registered port", func() {
			registerTestPort(mgr, "L0", "gpib0")
			registerTestPort(mgr, "L1", "inst0")
			Expect(mgr.PortNames()).To(ConsistOf("L0", "L1"))
		})
	})
})
