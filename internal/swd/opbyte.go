// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package swd implements the SWD bit-bang link layer (C2): operation-byte
// assembly, ACK decode, parity, WAIT retries and the V1/V2/dormant reset
// sequences, driven over a gpio.Driver (C1).
package swd

// Port selects whether a Transaction targets the Debug Port or an
// Access Port.
type Port uint8

const (
	DP Port = iota
	AP
)

// Direction selects read or write.
type Direction uint8

const (
	Read Direction = iota
	Write
)

// Ack is the three-valued SWD acknowledge outcome, plus the fourth
// Protocol outcome for a raw ACK that matched none of the legal codes.
type Ack uint8

const (
	AckOK    Ack = 0b001
	AckWAIT  Ack = 0b010
	AckFAULT Ack = 0b100
)

// IsProtocolAck reports whether raw does not match any legal 3-bit ACK code.
func IsProtocolAck(raw uint8) bool {
	switch Ack(raw & 0x7) {
	case AckOK, AckWAIT, AckFAULT:
		return false
	default:
		return true
	}
}

// OperationByte assembles the 8-bit SWD operation byte per §4.2: bit
// 0=1 (start), bit1=APnDP, bit2=RnW, bits3-4=register address bits
// [2:3], bit5=even parity over bits 1-4, bit6=0 (stop), bit7=1 (park).
// All bits are LSB-first on the wire; the returned byte's bit 0 is the
// first bit shifted out.
func OperationByte(port Port, dir Direction, regAddr uint8) uint8 {
	apndp := uint8(0)
	if port == AP {
		apndp = 1
	}
	rnw := uint8(0)
	if dir == Read {
		rnw = 1
	}
	a2 := (regAddr >> 2) & 1
	a3 := (regAddr >> 3) & 1

	parity := EvenParity4(apndp, rnw, a2, a3)

	var b uint8
	b |= 1 << 0
	b |= apndp << 1
	b |= rnw << 2
	b |= a2 << 3
	b |= a3 << 4
	b |= parity << 5
	b |= 0 << 6
	b |= 1 << 7
	return b
}

// EvenParity4 computes the even-parity bit over four single bits: the
// result makes the 1-count of (b0,b1,b2,b3) even.
func EvenParity4(b0, b1, b2, b3 uint8) uint8 {
	return (b0 ^ b1 ^ b2 ^ b3) & 1
}

// EvenParity32 computes the even-parity bit over a 32-bit data word, as
// used for the trailing parity bit of a read/write data phase.
func EvenParity32(v uint32) uint8 {
	p := uint8(0)
	for i := 0; i < 32; i++ {
		p ^= uint8(v>>uint(i)) & 1
	}
	return p & 1
}

// DecodeAck maps a raw 3-bit ACK (bit0 = first bit shifted in) to an Ack
// value, reporting ok=false if it is a Protocol-invalid code.
func DecodeAck(raw uint8) (Ack, bool) {
	switch Ack(raw & 0x7) {
	case AckOK:
		return AckOK, true
	case AckWAIT:
		return AckWAIT, true
	case AckFAULT:
		return AckFAULT, true
	default:
		return Ack(raw & 0x7), false
	}
}
