// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package swd

import "github.com/airfrog/airfrog/internal/gpio"

// Line-reset bit sequences, per §4.2.
const (
	jtagToSWDSeq     uint64 = 0xE79E // 16 bits, LSB-first
	swdToDormantSeq  uint64 = 0xE3BC // 16 bits, LSB-first
	jtagToDormantSeq uint64 = 0x33BBBBBA
	swdActivationCode uint64 = 0x1A // 8 bits
)

// Selection alert is a 128-bit sequence, shifted out low-word-first,
// LSB-first within each word, per §4.2.
var selectionAlert = [4]uint32{0x6209F392, 0x86852D95, 0xE3DDAFE9, 0x19BC0EA2}

// ResetV1 runs the SWD V1 line reset: drive SWDIO high ≥50 cycles,
// shift the 16-bit JTAG->SWD sequence, drive high ≥50, drive low ≥2.
// The caller must issue a DP IDCODE read as the very next transaction.
func ResetV1(pins gpio.Driver) {
	pins.SetSWDIOOut(gpio.High)
	pins.ClockIdle(50, gpio.High)
	pins.ShiftOut(jtagToSWDSeq, 16)
	pins.ClockIdle(50, gpio.High)
	pins.ClockIdle(2, gpio.Low)
}

// ResetV2 runs the SWD V2 / dormant-exit sequence: high ≥50, optional
// 31-bit JTAG->dormant, high ≥8, the 128-bit selection alert, low 4,
// the 8-bit SWD activation code, then a V1 reset.
func ResetV2(pins gpio.Driver, throughJTAGDormant bool) {
	pins.SetSWDIOOut(gpio.High)
	pins.ClockIdle(50, gpio.High)
	if throughJTAGDormant {
		pins.ShiftOut(jtagToDormantSeq, 31)
	}
	pins.ClockIdle(8, gpio.High)
	for _, word := range selectionAlert {
		pins.ShiftOut(uint64(word), 32)
	}
	pins.ClockIdle(4, gpio.Low)
	pins.ShiftOut(swdActivationCode, 8)
	ResetV1(pins)
}

// ToDormant drives the SWD into the dormant state: high ≥50, shift the
// 16-bit SWD->dormant sequence.
func ToDormant(pins gpio.Driver) {
	pins.SetSWDIOOut(gpio.High)
	pins.ClockIdle(50, gpio.High)
	pins.ShiftOut(swdToDormantSeq, 16)
}
