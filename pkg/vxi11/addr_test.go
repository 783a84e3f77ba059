/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package vxi11

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAddrRoundTrip(t *testing.T) {
	for a := 0; a <= 3130; a++ {
		inRange := a < 100 || (a/100 < NumGPIBAddresses && a%100 < NumGPIBAddresses)
		primary, secondary, extended, err := decodeAddr(a)
		if !inRange {
			assert.Error(t, err, "address %d", a)
			continue
		}
		require.NoError(t, err, "address %d", a)
		assert.Equal(t, a, encodeAddr(primary, secondary, extended), "address %d", a)
	}
}

func TestDecodeAddrNegative(t *testing.T) {
	_, _, _, err := decodeAddr(-1)
	assert.Error(t, err)
}

func TestDecodeAddrPrimaryOnlyNeverBoundsChecked(t *testing.T) {
	// addr < 100 always decodes, even when the primary alone would not
	// fit in the 31-slot table; linkTable.slot is where that gets
	// caught, not decodeAddr.
	primary, secondary, extended, err := decodeAddr(50)
	require.NoError(t, err)
	assert.Equal(t, 50, primary)
	assert.Equal(t, 0, secondary)
	assert.False(t, extended)
}

func TestDecodeAddrOutOfRangeExtended(t *testing.T) {
	_, _, _, err := decodeAddr(3199) // primary=31, out of range
	assert.Error(t, err)
}

func TestDecodeAddrExtendedMultipleOfHundredStaysExtended(t *testing.T) {
	// addr 100 and addr 1 both decode to primary=1, secondary=0; only the
	// extended flag tells them apart, and only with it does encodeAddr
	// invert decodeAddr for both.
	primary, secondary, extended, err := decodeAddr(100)
	require.NoError(t, err)
	assert.Equal(t, 1, primary)
	assert.Equal(t, 0, secondary)
	assert.True(t, extended)
	assert.Equal(t, 100, encodeAddr(primary, secondary, extended))

	primary, secondary, extended, err = decodeAddr(1)
	require.NoError(t, err)
	assert.Equal(t, 1, primary)
	assert.Equal(t, 0, secondary)
	assert.False(t, extended)
	assert.Equal(t, 1, encodeAddr(primary, secondary, extended))
}
