// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package sim

import "github.com/airfrog/airfrog/internal/arm"

const (
	ackOK    = 0b001
	ackWAIT  = 0b010
	ackFAULT = 0b100
)

// resolveAck decides the ACK for the transaction decoded by
// decodeOpByte, applying (in priority order) the reset->IDCODE
// invariant, injected WAITs, and injected FAULTs, before falling
// through to a normal OK and arming the data phase.
func (d *Driver) resolveAck() uint8 {
	t := d.target

	if d.afterReset && !d.sawFirstAfter {
		d.sawFirstAfter = true
		d.afterReset = false
		if d.apndp || d.dir != dirRead || d.addr != arm.AddrIdCode {
			d.phase = phaseIdle
			return ackFAULT
		}
		d.phase = phaseReadData
		return ackOK
	}

	if t.WaitCountdown > 0 {
		t.WaitCountdown--
		d.phase = phaseIdle
		return ackWAIT
	}

	if d.apndp && d.addr == arm.AddrDRW && t.FaultAddresses[t.TAR] {
		d.phase = phaseIdle
		return ackFAULT
	}

	if d.dir == dirRead {
		d.phase = phaseReadData
	} else {
		d.phase = phaseWriteData
	}
	return ackOK
}

// readValue produces the 32-bit value for a read-OK data phase,
// modeling DP/AP register semantics including the RDBUFF/stale-AP-read
// pipeline.
func (d *Driver) readValue() uint32 {
	t := d.target
	d.phase = phaseIdle

	if !d.apndp {
		switch d.addr {
		case arm.AddrIdCode:
			return t.IDCode
		case arm.AddrCtrlStat:
			return t.CtrlStat
		case arm.AddrSelect:
			return t.Select
		case arm.AddrRdBuff:
			return t.rdbuffValue
		}
		return 0
	}

	// AP read: returns the *previous* AP read result (pipeline stale
	// data); the true value becomes available via the following RDBUFF
	// read, which the session layer always issues.
	prev := t.rdbuffValue
	reg := uint8(t.Select&0xF0) | d.addr // SELECT.APBANKSEL plus A[3:2]
	switch reg {
	case arm.AddrIDR:
		t.rdbuffValue = t.APIdr
	case arm.AddrCSW:
		t.rdbuffValue = t.CSW
	case arm.AddrTAR:
		t.rdbuffValue = t.TAR
	case arm.AddrDRW:
		v := t.Memory[t.TAR]
		t.rdbuffValue = v
		if t.CSW&(0b11<<4) != 0 { // CSW.ADDRINC != off
			t.TAR += 4
		}
	}
	return prev
}

// applyWrite commits the 32-bit value for a write-OK data phase.
func (d *Driver) applyWrite(v uint32) {
	t := d.target
	d.phase = phaseIdle

	if !d.apndp {
		switch d.addr {
		case arm.AddrAbort:
			t.AbortSeen = v
			if uint32(v)&uint32(arm.ClearErrors) != 0 {
				t.CtrlStat = 0
			}
		case arm.AddrCtrlStat:
			// Acknowledge power-up requests at once: CSYSPWRUPREQ (bit 30)
			// sets CSYSPWRUPACK (bit 31), CDBGPWRUPREQ (bit 28) sets
			// CDBGPWRUPACK (bit 29).
			t.CtrlStat = v | (v&(1<<30|1<<28))<<1
		case arm.AddrSelect:
			t.Select = v
			t.SelectWrites++
		}
		return
	}

	switch d.addr {
	case arm.AddrCSW:
		t.CSW = v
	case arm.AddrTAR:
		t.TAR = v
		t.TARWrites++
	case arm.AddrDRW:
		t.Memory[t.TAR] = v
		if t.CSW&(0b11<<4) != 0 {
			t.TAR += 4
		}
	}
}
