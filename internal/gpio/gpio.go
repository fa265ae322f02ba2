// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package gpio is the Pin Driver (C1): the only layer permitted to touch
// SWCLK/SWDIO hardware directly. It is deliberately narrow, in the spirit
// of the pack's bit-banged-bus capability interfaces (a software SPI
// driver is configured with pins and mode, then just transfers bytes;
// here the unit of transfer is a single clocked bit).
package gpio

// Level is a driven or sampled line state.
type Level uint8

const (
	Low Level = iota
	High
	Input
)

// Driver is the hardware capability interface the rest of airfrog is
// built on. Implementations must guarantee that, once Shift* or
// ClockPulse begins, it runs to completion without yielding to anything
// that could perturb clock timing — the bit-bang critical region is
// synchronous by construction.
type Driver interface {
	// SetSWDIOOut drives SWDIO to the given level (Low or High). It does
	// not touch SWCLK.
	SetSWDIOOut(level Level)

	// SetSWDIOIn releases SWDIO to the host's input state (high-Z drive,
	// readable via SampleSWDIO).
	SetSWDIOIn()

	// SampleSWDIO reads the current SWDIO input level. Only meaningful
	// after SetSWDIOIn.
	SampleSWDIO() bool

	// ClockPulse drives one SWCLK low->high->low transition at the
	// configured speed.
	ClockPulse()

	// ShiftOut clocks out the low n bits of bits, LSB first. SWDIO must
	// already be in output mode.
	ShiftOut(bits uint64, n int)

	// ShiftIn clocks in n bits LSB first and returns them right-aligned.
	// SWDIO must already be in input mode.
	ShiftIn(n int) uint64

	// ClockIdle clocks n cycles with SWDIO held at the given level
	// (Low, High, or released as Input).
	ClockIdle(n int, level Level)

	// SetSpeed adjusts the clock half-period. rate is an approximate
	// target toggle rate in Hz; implementations may round to the nearest
	// achievable rate.
	SetSpeed(rateHz uint32)

	// Close releases any underlying hardware resources.
	Close() error
}

// Turnaround releases or retakes SWDIO and issues the single mandatory
// turnaround clock, per §4.1: the number of turnaround cycles is fixed
// at 1 for every direction change. Retaking output (toInput == false)
// must drive SWDIO low before the clock pulse, since ShiftOut requires
// SWDIO already be in output mode.
func Turnaround(d Driver, toInput bool) {
	if toInput {
		d.SetSWDIOIn()
	} else {
		d.SetSWDIOOut(Low)
	}
	d.ClockPulse()
}
