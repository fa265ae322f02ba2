// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package arm models the ARM Debug Port and Access Port register layouts
// used by the SWD session layer, ported from the project's original Rust
// arm/dp.rs, arm/ap.rs and arm/map.rs bit layouts.
package arm

// DP register addresses (4-byte aligned, 0x00-0x0C).
const (
	AddrIdCode   uint8 = 0x00 // read
	AddrAbort    uint8 = 0x00 // write
	AddrCtrlStat uint8 = 0x04 // read/write
	AddrSelect   uint8 = 0x08 // read/write
	AddrRdBuff   uint8 = 0x0C // read
	AddrTargetSel uint8 = 0x0C // write
)

// IdCode is the DP IDCODE register value (DP 0x00, read).
type IdCode uint32

func (c IdCode) Value() uint32 { return uint32(c) }

// Abort is the DP ABORT register value (DP 0x00, write-only).
type Abort uint32

const (
	AbortDAPAbort    Abort = 1 << 0
	AbortStkCmpClr   Abort = 1 << 1
	AbortStkErrClr   Abort = 1 << 2
	AbortWDErrClr    Abort = 1 << 3
	AbortOrunErrClr  Abort = 1 << 4
)

// ClearErrors is the ABORT value written to clear all sticky DP errors:
// STKERRCLR, WDERRCLR, ORUNERRCLR, STKCMPCLR = 0x1E.
const ClearErrors Abort = AbortStkCmpClr | AbortStkErrClr | AbortWDErrClr | AbortOrunErrClr

func (a Abort) Value() uint32 { return uint32(a) }

// CtrlStat is the DP CTRL/STAT register value (DP 0x04, read/write).
type CtrlStat uint32

const (
	ctrlStatOrunErr       = 1 << 1
	ctrlStatStickyErr     = 1 << 5
	ctrlStatStickyCmp     = 1 << 4
	ctrlStatWDataErr      = 1 << 7
	ctrlStatReadOK        = 1 << 6
	ctrlStatCDbgRstAck    = 1 << 27
	ctrlStatCDbgPwrUpAck  = 1 << 29
	ctrlStatCDbgPwrUpReq  = 1 << 28
	ctrlStatCSysPwrUpAck  = 1 << 31
	ctrlStatCSysPwrUpReq  = 1 << 30
)

func (c CtrlStat) Value() uint32 { return uint32(c) }

// StickyErr reports DP CTRL/STAT.STICKYERR.
func (c CtrlStat) StickyErr() bool { return uint32(c)&ctrlStatStickyErr != 0 }

// StickyCmp reports DP CTRL/STAT.STICKYCMP.
func (c CtrlStat) StickyCmp() bool { return uint32(c)&ctrlStatStickyCmp != 0 }

// WDataErr reports DP CTRL/STAT.WDATAERR.
func (c CtrlStat) WDataErr() bool { return uint32(c)&ctrlStatWDataErr != 0 }

// OrunErr reports DP CTRL/STAT.STICKYORUN.
func (c CtrlStat) OrunErr() bool { return uint32(c)&ctrlStatOrunErr != 0 }

// ReadOK reports DP CTRL/STAT.READOK.
func (c CtrlStat) ReadOK() bool { return uint32(c)&ctrlStatReadOK != 0 }

// HasStickyError reports whether any of the four sticky-error bits that
// §4.3 ReadErrors decodes (STKERR, STKCMP, WDERR, ORUNERR) are set.
func (c CtrlStat) HasStickyError() bool {
	return c.StickyErr() || c.StickyCmp() || c.WDataErr() || c.OrunErr()
}

// WithPowerUpRequest sets the CSYSPWRUPREQ / CDBGPWRUPREQ request bits for
// Connect's power-up handshake (§4.3, supplemented per SPEC_FULL.md §11).
func (c CtrlStat) WithPowerUpRequest() CtrlStat {
	return c | CtrlStat(ctrlStatCSysPwrUpReq|ctrlStatCDbgPwrUpReq)
}

// SysPwrUpAck / DbgPwrUpAck report whether the target acknowledged the
// power-up request.
func (c CtrlStat) SysPwrUpAck() bool { return uint32(c)&ctrlStatCSysPwrUpAck != 0 }
func (c CtrlStat) DbgPwrUpAck() bool { return uint32(c)&ctrlStatCDbgPwrUpAck != 0 }

// Select is the DP SELECT register value (DP 0x08, read/write). Layout
// per SPEC_FULL.md §4.3: bits [31:24]=AP index, bits [7:4]=AP bank
// (register address high nibble), bits [3:0]=DP bank.
type Select uint32

const (
	selectAPSelMask      = 0xFF
	selectAPSelShift     = 24
	selectDPBankSelMask  = 0xF
	selectDPBankSelShift = 0
	selectAPBankSelMask  = 0xF
	selectAPBankSelShift = 4
)

func (s Select) Value() uint32 { return uint32(s) }

func (s Select) APSel() uint32     { return (uint32(s) >> selectAPSelShift) & selectAPSelMask }
func (s Select) DPBankSel() uint32 { return (uint32(s) >> selectDPBankSelShift) & selectDPBankSelMask }
func (s Select) APBankSel() uint32 { return (uint32(s) >> selectAPBankSelShift) & selectAPBankSelMask }

func (s Select) WithAPSel(apsel uint32) Select {
	return Select((uint32(s) &^ (selectAPSelMask << selectAPSelShift)) | ((apsel & selectAPSelMask) << selectAPSelShift))
}

func (s Select) WithDPBankSel(bank uint8) Select {
	v := uint32(bank)
	return Select((uint32(s) &^ (selectDPBankSelMask << selectDPBankSelShift)) | ((v & selectDPBankSelMask) << selectDPBankSelShift))
}

func (s Select) WithAPBankSel(bank uint8) Select {
	v := uint32(bank)
	return Select((uint32(s) &^ (selectAPBankSelMask << selectAPBankSelShift)) | ((v & selectAPBankSelMask) << selectAPBankSelShift))
}

// WithAPBankSelFromAddr derives the AP bank select from a register
// address's high nibble, mirroring set_apbanksel_from_addr.
func (s Select) WithAPBankSelFromAddr(addr uint8) Select {
	return s.WithAPBankSel((addr >> 4) & 0xF)
}

// WithDPBankSelFromAddr mirrors set_dpbanksel_from_addr.
func (s Select) WithDPBankSelFromAddr(addr uint8) Select {
	return s.WithDPBankSel((addr >> 4) & 0xF)
}

// RdBuff is the DP RDBUFF register value (DP 0x0C, read-only): the
// result of the previous AP read.
type RdBuff uint32

func (r RdBuff) Value() uint32 { return uint32(r) }

// TargetSel is the DP TARGETSEL register value (DP 0x0C, write-only,
// SWD v2 multi-drop). Not driven by the automatic reset command per the
// Non-goal in SPEC_FULL.md §1; exposed only so raw primitives can drive
// multi-drop buses manually.
type TargetSel uint32

func (t TargetSel) Value() uint32 { return uint32(t) }

// RP2040 multi-drop TARGETSEL values, ported from the original Rust
// TARGET_SEL_RP2040_* constants (SPEC_FULL.md §11).
const (
	TargetSelRP2040Core0   TargetSel = 0x01002927
	TargetSelRP2040Core1   TargetSel = 0x11002927
	TargetSelRP2040RescueDP TargetSel = 0xf1002927
)

// TargetSelRP2040All enumerates every RP2040 multi-drop target.
var TargetSelRP2040All = [3]TargetSel{TargetSelRP2040Core0, TargetSelRP2040Core1, TargetSelRP2040RescueDP}
