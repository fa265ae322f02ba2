// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package swd

import "fmt"

// ErrorCode tags the family of failure a link/session-layer operation
// surfaced, mirroring gostlink's UsbErrorCode.
type ErrorCode int

const (
	ErrorOK ErrorCode = iota
	ErrorWaitAcknowledge
	ErrorFaultAcknowledge
	ErrorBadAcknowledge
	ErrorReadParityError
	ErrorDebugPortError
	ErrorNotReady
	ErrorOperationFailed
	ErrorUnsupportedOperation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorOK:
		return "ok"
	case ErrorWaitAcknowledge:
		return "wait acknowledge"
	case ErrorFaultAcknowledge:
		return "fault acknowledge"
	case ErrorBadAcknowledge:
		return "bad acknowledge"
	case ErrorReadParityError:
		return "read parity error"
	case ErrorDebugPortError:
		return "debug port error"
	case ErrorNotReady:
		return "not ready"
	case ErrorOperationFailed:
		return "operation failed"
	case ErrorUnsupportedOperation:
		return "unsupported operation"
	default:
		return "unknown swd error"
	}
}

// Error is the tagged error type raised by the link, session and target
// layers, grounded on gostlink's errors.go UsbError/NewUsbError pattern:
// a struct carrying a human message plus a stable numeric code, never a
// bare string.
type Error struct {
	msg  string
	Code ErrorCode
	// Detail carries the raw 3-bit ACK for BadAcknowledge, or the decoded
	// CTRL/STAT sticky-error summary for FaultAcknowledge/DebugPortError.
	Detail uint32
}

func (e *Error) Error() string {
	return e.msg
}

// NewError constructs a tagged Error, mirroring NewUsbError.
func NewError(msg string, code ErrorCode) error {
	return &Error{msg: msg, Code: code}
}

// NewErrorWithDetail attaches structured detail (raw ACK bits, a CTRL/STAT
// image) instead of folding it into the message string, per the
// error-polymorphism design note: detail is data, not prose.
func NewErrorWithDetail(msg string, code ErrorCode, detail uint32) error {
	return &Error{msg: msg, Code: code, Detail: detail}
}

// AsError unwraps err into a *Error, reporting whether it was one.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

func errBadAck(bits uint8) error {
	return NewErrorWithDetail(fmt.Sprintf("bad ack: raw bits 0b%03b", bits), ErrorBadAcknowledge, uint32(bits))
}
