// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package swd

// Speed selects an approximate SWCLK toggle rate, per §3 Runtime Config.
type Speed uint8

const (
	SpeedSlow Speed = iota
	SpeedMedium
	SpeedFast
	SpeedTurbo
)

// HzFor returns the target GPIO toggle rate for a Speed, per §3.
func (s Speed) HzFor() uint32 {
	switch s {
	case SpeedSlow:
		return 500_000
	case SpeedMedium:
		return 1_000_000
	case SpeedFast:
		return 2_000_000
	case SpeedTurbo:
		return 4_000_000
	default:
		return 500_000
	}
}

func (s Speed) String() string {
	switch s {
	case SpeedSlow:
		return "slow"
	case SpeedMedium:
		return "medium"
	case SpeedFast:
		return "fast"
	case SpeedTurbo:
		return "turbo"
	default:
		return "unknown"
	}
}

// SetSpeed applies a Speed to the Link's Pin Driver.
func (l *Link) SetSpeed(s Speed) {
	l.pins.SetSpeed(s.HzFor())
}
