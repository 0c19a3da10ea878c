// Buf is the Go translation of n_buf (n_buf.h/.c in the original
// source): a bounded byte region with pull-up semantics used for
// framed reads and writes over one connection (spec.md §4.1).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"bytes"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/NVIDIA/xltop/internal/xerr"
)

const lineTerm = '\n'

var bufPool bytebufferpool.Pool

// Buf is a single-producer/single-consumer bounded byte region:
// unread bytes live in buf[start:end], 0 <= start <= end <= cap(buf).
type Buf struct {
	bb    *bytebufferpool.ByteBuffer
	buf   []byte // backs bb.B, fixed capacity for this Buf's lifetime
	start int
	end   int
}

// Init allocates a Buf with the given fixed capacity, drawing its
// backing array from the shared bytebufferpool.
func (b *Buf) Init(capacity int) {
	b.bb = bufPool.Get()
	if cap(b.bb.B) < capacity {
		b.bb.B = make([]byte, capacity)
	} else {
		b.bb.B = b.bb.B[:capacity]
	}
	b.buf = b.bb.B[:capacity]
	b.start, b.end = 0, 0
}

// Destroy returns the backing array to the pool. A destroyed Buf must
// not be used again without a fresh Init.
func (b *Buf) Destroy() {
	if b.bb != nil {
		bufPool.Put(b.bb)
	}
	b.bb, b.buf = nil, nil
	b.start, b.end = 0, 0
}

// IsEmpty reports whether the unread region is empty.
func (b *Buf) IsEmpty() bool { return b.start == b.end }

// Len returns the number of unread bytes.
func (b *Buf) Len() int { return b.end - b.start }

// Pullup compacts the unread region to offset 0. Idempotent: calling
// it twice in a row is equivalent to calling it once, and it never
// changes the bytes or order of [start, end) (spec.md Testable
// Property 2).
func (b *Buf) Pullup() {
	if b.start == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.start:b.end])
	b.start, b.end = 0, n
}

// Fill does a single non-blocking-style read from r into the tail of
// the buffer, never reading more than cap(buf)-end bytes. eof is set
// on orderly shutdown (io.EOF); err is any other read error. Fill does
// not pull up on its own — the caller calls Pullup before retrying
// after a "no room" condition, matching n_buf_fill's contract.
func (b *Buf) Fill(r io.Reader) (eof bool, err error) {
	room := len(b.buf) - b.end
	if room <= 0 {
		return false, nil
	}
	n, rerr := r.Read(b.buf[b.end : b.end+room])
	b.end += n
	if rerr == io.EOF {
		return true, nil
	}
	if rerr != nil {
		return false, rerr
	}
	return false, nil
}

// GetMsg extracts the next newline-terminated frame from the unread
// region, NUL-terminating is unnecessary in Go (the returned slice is
// already length-delimited), but the aliasing contract is the same as
// the original: the returned slice is valid only until the next
// mutating call (Fill, Pullup, or another GetMsg). ok is false when no
// complete frame is buffered yet.
func (b *Buf) GetMsg() (line []byte, ok bool) {
	rest := b.buf[b.start:b.end]
	i := bytes.IndexByte(rest, lineTerm)
	if i < 0 {
		return nil, false
	}
	line = rest[:i]
	b.start += i + 1
	return line, true
}

// Write appends p to the tail of the buffer, pulling up first to
// maximize room. It fails with xerr.ErrNoBufSpace if p does not fit
// even after pulling up; the producer is expected to retry once room
// frees up (spec.md §4.1's "no buffer space" contract).
func (b *Buf) Write(p []byte) (int, error) {
	b.Pullup()
	room := len(b.buf) - b.end
	if len(p) > room {
		return 0, xerr.ErrNoBufSpace
	}
	copy(b.buf[b.end:], p)
	b.end += len(p)
	return len(p), nil
}

// Cap returns the buffer's fixed total capacity.
func (b *Buf) Cap() int { return len(b.buf) }

// Unread returns the current unread region as a slice valid until the
// next mutating call — used by the writer goroutine to drain pending
// output without copying.
func (b *Buf) Unread() []byte { return b.buf[b.start:b.end] }

// Advance drops the first n bytes of the unread region, used after a
// partial or complete write to the underlying socket.
func (b *Buf) Advance(n int) { b.start += n }

// CopyFrom transfers src's unread bytes into dst (which must already
// be Init'd with capacity >= src.Len()), the Go translation of
// n_buf_copy as used by Conn.Move to carry buffered-but-unsent data
// across a connection handover.
func (b *Buf) CopyFrom(src *Buf) error {
	if src.Len() > b.Cap() {
		return xerr.ErrNoBufSpace
	}
	n := copy(b.buf, src.Unread())
	b.start, b.end = 0, n
	return nil
}
