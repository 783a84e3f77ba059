/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package oncrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXDRRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.Uint32(42)
	e.Int32(-7)
	e.Bool(true)
	e.Bool(false)
	e.Opaque([]byte{1, 2, 3})
	e.String("hello")

	d := NewDecoder(e.Bytes())
	u, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u)

	i, err := d.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)

	b1, err := d.Bool()
	require.NoError(t, err)
	assert.True(t, b1)

	b2, err := d.Bool()
	require.NoError(t, err)
	assert.False(t, b2)

	opaque, err := d.Opaque()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, opaque)

	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	assert.Equal(t, 0, d.Remaining())
}

func TestXDROpaquePadding(t *testing.T) {
	e := NewEncoder()
	e.Opaque([]byte{1, 2, 3}) // 3 bytes -> 1 byte pad
	e.Uint32(99)
	assert.Equal(t, 12, len(e.Bytes())) // 4 (len) + 4 (data+pad) + 4 (next field)

	d := NewDecoder(e.Bytes())
	_, err := d.Opaque()
	require.NoError(t, err)
	v, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(99), v)
}

func TestXDRShortBufferErrors(t *testing.T) {
	d := NewDecoder([]byte{0, 0})
	_, err := d.Uint32()
	assert.Error(t, err)
}
