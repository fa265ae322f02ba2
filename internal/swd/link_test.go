// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package swd

import "testing"

func TestOperationByteFields(t *testing.T) {
	cases := []struct {
		port Port
		dir  Direction
		reg  uint8
	}{
		{DP, Read, 0x00},
		{DP, Write, 0x04},
		{AP, Read, 0x0C},
		{AP, Write, 0xFC},
	}
	for _, c := range cases {
		b := OperationByte(c.port, c.dir, c.reg)
		if b&1 == 0 {
			t.Fatalf("start bit must always be set, got 0b%08b", b)
		}
		if b&(1<<6) != 0 {
			t.Fatalf("stop bit must always be clear, got 0b%08b", b)
		}
		if b&(1<<7) == 0 {
			t.Fatalf("park bit must always be set, got 0b%08b", b)
		}
		wantAPnDP := uint8(0)
		if c.port == AP {
			wantAPnDP = 1
		}
		if (b>>1)&1 != wantAPnDP {
			t.Errorf("APnDP bit wrong for %+v: got 0b%08b", c, b)
		}
		wantRnW := uint8(0)
		if c.dir == Read {
			wantRnW = 1
		}
		if (b>>2)&1 != wantRnW {
			t.Errorf("RnW bit wrong for %+v: got 0b%08b", c, b)
		}
	}
}

func TestOperationByteParity(t *testing.T) {
	for reg := 0; reg < 0xFF; reg += 4 {
		for _, port := range []Port{DP, AP} {
			for _, dir := range []Direction{Read, Write} {
				b := OperationByte(port, dir, uint8(reg))
				bits := []uint8{(b >> 1) & 1, (b >> 2) & 1, (b >> 3) & 1, (b >> 4) & 1}
				ones := 0
				for _, bit := range bits {
					ones += int(bit)
				}
				parityBit := (b >> 5) & 1
				if ones%2 == 0 && parityBit != 0 {
					t.Errorf("even bit-count should give parity 0, got 1 for reg=0x%02x", reg)
				}
				if ones%2 == 1 && parityBit != 1 {
					t.Errorf("odd bit-count should give parity 1, got 0 for reg=0x%02x", reg)
				}
			}
		}
	}
}

func TestEvenParity32(t *testing.T) {
	if EvenParity32(0) != 0 {
		t.Errorf("parity of 0 should be 0")
	}
	if EvenParity32(1) != 1 {
		t.Errorf("parity of 1 should be 1")
	}
	if EvenParity32(0xFFFFFFFF) != 0 {
		t.Errorf("parity of all-ones (32 bits set) should be 0")
	}
	if EvenParity32(0x80000000) != 1 {
		t.Errorf("parity of a single high bit should be 1")
	}
}

func TestDecodeAck(t *testing.T) {
	cases := []struct {
		raw    uint8
		want   Ack
		legal  bool
	}{
		{0b001, AckOK, true},
		{0b010, AckWAIT, true},
		{0b100, AckFAULT, true},
		{0b000, 0, false},
		{0b011, 0, false},
		{0b111, 0, false},
	}
	for _, c := range cases {
		got, ok := DecodeAck(c.raw)
		if ok != c.legal {
			t.Errorf("DecodeAck(0b%03b) legal = %v, want %v", c.raw, ok, c.legal)
		}
		if ok && got != c.want {
			t.Errorf("DecodeAck(0b%03b) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestSpeedHzFor(t *testing.T) {
	if SpeedSlow.HzFor() >= SpeedMedium.HzFor() {
		t.Errorf("slow should be slower than medium")
	}
	if SpeedMedium.HzFor() >= SpeedFast.HzFor() {
		t.Errorf("medium should be slower than fast")
	}
	if SpeedFast.HzFor() >= SpeedTurbo.HzFor() {
		t.Errorf("fast should be slower than turbo")
	}
}
