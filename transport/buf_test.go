/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/xltop/internal/xerr"
)

// Testable Property 1: every byte written to a Buf and not yet consumed
// by GetMsg/Unread is returned unchanged, in order.
func TestBufRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		lines []string
	}{
		{"single", []string{"hello"}},
		{"multi", []string{"one", "two", "three"}},
		{"empty-line", []string{"", "after"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var b Buf
			b.Init(256)
			defer b.Destroy()

			for _, line := range tc.lines {
				_, err := b.Write([]byte(line + "\n"))
				require.NoError(t, err)
			}

			var got []string
			for {
				line, ok := b.GetMsg()
				if !ok {
					break
				}
				got = append(got, string(line))
			}
			assert.Equal(t, tc.lines, got)
		})
	}
}

// Testable Property 2: Pullup is idempotent and never reorders or drops
// unread bytes.
func TestBufPullupIdempotent(t *testing.T) {
	var b Buf
	b.Init(16)
	defer b.Destroy()

	_, err := b.Write([]byte("ab\n"))
	require.NoError(t, err)
	_, ok := b.GetMsg()
	require.True(t, ok)

	_, err = b.Write([]byte("cdef\n"))
	require.NoError(t, err)

	before := append([]byte(nil), b.Unread()...)
	b.Pullup()
	assert.Equal(t, before, b.Unread())
	b.Pullup()
	assert.Equal(t, before, b.Unread())

	line, ok := b.GetMsg()
	require.True(t, ok)
	assert.Equal(t, "cdef", string(line))
}

func TestBufWriteOverflow(t *testing.T) {
	var b Buf
	b.Init(4)
	defer b.Destroy()

	_, err := b.Write([]byte("abcde"))
	assert.ErrorIs(t, err, xerr.ErrNoBufSpace)
}

func TestBufFillEOF(t *testing.T) {
	var b Buf
	b.Init(64)
	defer b.Destroy()

	eof, err := b.Fill(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, eof)
}

func TestBufCopyFrom(t *testing.T) {
	var src, dst Buf
	src.Init(32)
	dst.Init(32)
	defer src.Destroy()
	defer dst.Destroy()

	_, err := src.Write([]byte("pending data"))
	require.NoError(t, err)

	require.NoError(t, dst.CopyFrom(&src))
	assert.True(t, bytes.Equal(dst.Unread(), []byte("pending data")))
}

func TestBufCopyFromOverflow(t *testing.T) {
	var src, dst Buf
	src.Init(32)
	dst.Init(4)
	defer src.Destroy()
	defer dst.Destroy()

	_, err := src.Write([]byte("too much data"))
	require.NoError(t, err)

	assert.ErrorIs(t, dst.CopyFrom(&src), xerr.ErrNoBufSpace)
}
