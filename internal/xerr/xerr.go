// Package xerr defines the closed error taxonomy used at the connection
// boundary, translated from xltop's original cl_conn.c error table.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of error kinds exchanged across control frames.
// Values outside this set are system-level and rendered with String().
type Kind int

const (
	OK Kind = iota
	Ended
	Moved
	Internal
	NoAuth
	NoClus
	NoCtl
	NoFS
	NoHost
	NoJob
	NoMem
	NoServ
	NoUser
	NoX
	NrArgs
	Which

	maxKindPlus1
)

var kindStr = [maxKindPlus1]string{
	OK:       "success",
	Ended:    "connection closed",
	Moved:    "connection moved",
	Internal: "internal error",
	NoAuth:   "operation not permitted",
	NoClus:   "unknown cluster",
	NoCtl:    "invalid operation",
	NoFS:     "unknown filesystem",
	NoHost:   "unknown host",
	NoJob:    "unknown job",
	NoMem:    "cannot allocate memory",
	NoServ:   "unknown server",
	NoUser:   "unknown user",
	NoX:      "unknown entity",
	NrArgs:   "incorrect number of arguments",
	Which:    "invalid pair",
}

// IsKind reports whether n falls inside the closed taxonomy.
func IsKind(n int) bool {
	return OK <= Kind(n) && Kind(n) < maxKindPlus1
}

// String renders a Kind (or, for values outside the closed set, a
// generic system-error description) the way the peer-facing reply
// frame wants it: cl_strerror() falls back to strerror(3) for
// non-cl_err codes, we fall back to a plain decimal.
func (k Kind) String() string {
	if IsKind(int(k)) {
		return kindStr[k]
	}
	return fmt.Sprintf("system error %d", int(k))
}

// Error is the Go-side error value carrying a Kind, a message, and —
// for Internal — a wrapped cause recoverable with errors.Cause.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}

// Unwrap lets errors.Is/errors.As (and pkg/errors.Cause) see through
// to the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// New builds a protocol-level Error with the Kind's default message.
func New(k Kind) *Error {
	return &Error{Kind: k, Msg: k.String()}
}

// Newf builds an Error with a custom message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Internal Error wrapping cause with a stack trace via
// pkg/errors, for failures that originate below the protocol boundary
// (allocation failures, OS errors during connection setup).
func Wrap(cause error, msg string) *Error {
	return &Error{Kind: Internal, Msg: msg, cause: errors.Wrap(cause, msg)}
}

// ErrNoBufSpace is the distinguished "no buffer space" condition from
// spec.md §4.1/§4.3: a writef() or Buf write that would exceed
// capacity fails with this sentinel. Writef returns it to its caller
// as is; a read-buffer overflow ends the connection with an Internal
// Error wrapping it.
var ErrNoBufSpace = errors.New("no buffer space")

// AsNoBufSpace reports whether err is (or wraps) ErrNoBufSpace.
func AsNoBufSpace(err error) bool {
	return errors.Is(err, ErrNoBufSpace)
}
