// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package swd

import (
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/xlog"
)

// maximumWaitRetries bounds the number of times a WAIT acknowledge is
// retried before the link layer surfaces WaitAcknowledge. This matches
// gostlink's own maximumWaitRetries constant (constants.go) exactly,
// and spec.md names the same default.
const maximumWaitRetries = 8

// Stat counts transactions and outcomes observed by the link layer,
// including every WAIT retried.
type Stat struct {
	Transactions uint64
	Acks         uint64
	Waits        uint64
	Faults       uint64
	Protocols    uint64
	ParityErrors uint64
}

// Link is the SWD bit-bang link layer (C2): one Transaction executes a
// single DP/AP read or write over a gpio.Driver, handling turnaround,
// ACK decode, WAIT retries and data parity.
type Link struct {
	pins gpio.Driver
	Stat Stat
}

// NewLink constructs a Link driving the given Pin Driver.
func NewLink(pins gpio.Driver) *Link {
	return &Link{pins: pins}
}

// Transaction executes one SWD operation. For a Read, result holds the
// 32-bit value read; for a Write, writeVal is sent and result is 0.
// idleAfter, when true, clocks the §4.2 idle tail (≥8 cycles, SWDIO
// low) after the transaction; callers pipelining several transactions
// should pass false and let the final transaction in the sequence idle.
func (l *Link) Transaction(port Port, dir Direction, regAddr uint8, writeVal uint32, idleAfter bool) (uint32, error) {
	// One initial attempt plus up to maximumWaitRetries retries on WAIT.
	for attempt := 0; attempt <= maximumWaitRetries; attempt++ {
		v, ack, legal, rawAck, err := l.attempt(port, dir, regAddr, writeVal, idleAfter)
		if !legal {
			return 0, errBadAck(rawAck)
		}
		switch ack {
		case AckOK:
			return v, err
		case AckFAULT:
			return 0, NewError("target returned FAULT", ErrorFaultAcknowledge)
		case AckWAIT:
			continue
		}
	}
	xlog.Warnf("swd: WAIT retries exhausted after %d retries", maximumWaitRetries)
	return 0, NewError("WAIT acknowledge retries exhausted", ErrorWaitAcknowledge)
}

// attempt runs a single wire-level try of one operation, without
// retrying on WAIT; Transaction calls this once and then up to
// maximumWaitRetries more times while the target answers WAIT.
func (l *Link) attempt(port Port, dir Direction, regAddr uint8, writeVal uint32, idleAfter bool) (value uint32, ack Ack, legal bool, rawAck uint8, err error) {
	l.Stat.Transactions++

	op := OperationByte(port, dir, regAddr)
	l.pins.SetSWDIOOut(gpio.Low)
	l.pins.ShiftOut(uint64(op), 8)

	gpio.Turnaround(l.pins, true) // release to input for ACK + (read) data

	rawAck = uint8(l.pins.ShiftIn(3))
	ack, legal = DecodeAck(rawAck)

	if !legal {
		l.Stat.Protocols++
		gpio.Turnaround(l.pins, false)
		if idleAfter {
			l.pins.ClockIdle(8, gpio.Low)
		}
		return 0, ack, false, rawAck, nil
	}

	switch ack {
	case AckOK:
		l.Stat.Acks++
		value, err = l.completeOK(dir, writeVal, idleAfter)
		return value, ack, true, rawAck, err

	case AckWAIT:
		l.Stat.Waits++
		l.pins.SetSWDIOIn()
		l.retakeOutput()
		// No idle tail: a WAIT is always immediately followed by a retry
		// of the same transaction.
		return 0, ack, true, rawAck, nil

	case AckFAULT:
		l.Stat.Faults++
		l.retakeOutput()
		if idleAfter {
			l.pins.ClockIdle(8, gpio.Low)
		}
		return 0, ack, true, rawAck, nil

	default:
		return 0, ack, true, rawAck, nil
	}
}

func (l *Link) retakeOutput() {
	gpio.Turnaround(l.pins, false)
}

func (l *Link) completeOK(dir Direction, writeVal uint32, idleAfter bool) (uint32, error) {
	if dir == Read {
		data := l.pins.ShiftIn(32)
		parity := uint8(l.pins.ShiftIn(1))
		if parity != EvenParity32(uint32(data)) {
			l.Stat.ParityErrors++
			gpio.Turnaround(l.pins, false)
			if idleAfter {
				l.pins.ClockIdle(8, gpio.Low)
			}
			return 0, NewError("even parity mismatch on data read", ErrorReadParityError)
		}
		gpio.Turnaround(l.pins, false) // retake SWDIO as output
		if idleAfter {
			l.pins.ClockIdle(8, gpio.Low)
		}
		return uint32(data), nil
	}

	// Write: turnaround back to output, then shift 32 data bits + parity.
	gpio.Turnaround(l.pins, false)
	l.pins.ShiftOut(uint64(writeVal), 32)
	l.pins.ShiftOut(uint64(EvenParity32(writeVal)), 1)
	// STM32F4 erratum: writes need at least 2 trailing idle cycles even
	// when another transaction follows immediately.
	l.pins.ClockIdle(2, gpio.Low)
	if idleAfter {
		l.pins.ClockIdle(6, gpio.Low)
	}
	return 0, nil
}
