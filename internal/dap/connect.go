// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dap

import (
	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/swd"
	"github.com/airfrog/airfrog/internal/xlog"
)

// ResetKind selects which line-reset sequence Connect should run.
type ResetKind uint8

const (
	ResetV1 ResetKind = iota
	ResetV2
)

// powerUpPollLimit bounds how many CTRL/STAT polls Connect makes while
// waiting for CSYSPWRUPACK/CDBGPWRUPACK, mirroring the WAIT-retry bound
// used elsewhere in the link layer.
const powerUpPollLimit = 8

// Connect runs the chosen reset, reads DP IDCODE, powers up the debug
// and system domains, reads the MEM-AP IDR, and marks the session
// connected, per §4.3.
func (s *Session) Connect(pins gpio.Driver, kind ResetKind) error {
	s.invalidate()
	s.Connected = false

	switch kind {
	case ResetV1:
		swd.ResetV1(pins)
	case ResetV2:
		swd.ResetV2(pins, false)
	}

	idcode, err := s.link.Transaction(swd.DP, swd.Read, arm.AddrIdCode, 0, true)
	if err != nil {
		return err
	}

	want := arm.CtrlStat(0).WithPowerUpRequest()
	if err := s.WriteDP(arm.AddrCtrlStat, want.Value()); err != nil {
		return err
	}
	for i := 0; i < powerUpPollLimit; i++ {
		v, err := s.ReadDP(arm.AddrCtrlStat)
		if err != nil {
			return err
		}
		cs := arm.CtrlStat(v)
		if cs.SysPwrUpAck() && cs.DbgPwrUpAck() {
			break
		}
		if i == powerUpPollLimit-1 {
			return swd.NewError("target did not acknowledge power-up request", swd.ErrorNotReady)
		}
	}

	idr, err := s.ReadAP(memAPIndex, arm.AddrIDR)
	if err != nil {
		return err
	}

	s.IDCode = idcode
	s.MemAPIDR = idr
	s.Connected = true
	xlog.Infof("dap: connected, idcode=0x%08x ap_idr=0x%08x", idcode, idr)
	return nil
}
