// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package arm

// MEM-AP register addresses (4-byte aligned, within the bank selected by
// DP SELECT.APBANKSEL).
const (
	AddrCSW uint8 = 0x00
	AddrTAR uint8 = 0x04
	AddrDRW uint8 = 0x0C
	AddrIDR uint8 = 0xFC
)

// Idr is the Access Port Identification Register value (bank 0xF, 0xFC).
type Idr uint32

const (
	idrRevisionMask  = 0xF
	idrRevisionShift = 28
	idrContMask      = 0xF
	idrContShift     = 24
	idrIdentMask     = 0x7F
	idrIdentShift    = 17
	idrClassMask     = 0xF
	idrClassShift    = 13
	idrTypeMask      = 0xF
	idrTypeShift     = 0
	idrVariantMask   = 0xF
	idrVariantShift  = 4
)

// AP IDR class values.
const (
	IdrClassNone  = 0x0
	IdrClassMemAP = 0x8
)

func (i Idr) Value() uint32      { return uint32(i) }
func (i Idr) Revision() uint32   { return (uint32(i) >> idrRevisionShift) & idrRevisionMask }
func (i Idr) Continuation() uint32 { return (uint32(i) >> idrContShift) & idrContMask }
func (i Idr) Identification() uint32 { return (uint32(i) >> idrIdentShift) & idrIdentMask }
func (i Idr) Class() uint32      { return (uint32(i) >> idrClassShift) & idrClassMask }
func (i Idr) Variant() uint32    { return (uint32(i) >> idrVariantShift) & idrVariantMask }
func (i Idr) APType() uint32     { return (uint32(i) >> idrTypeShift) & idrTypeMask }

// Known AHB-AP IDR values, ported from arm/ap.rs, used to enrich the
// Target Descriptor's MCU identification (SPEC_FULL.md §11).
const (
	IdrAHBAPCortexM0  Idr = 0x04770031
	IdrAHBAPCortexM3  Idr = 0x24770011
	IdrAHBAPCortexM4  Idr = 0x24770011
	IdrAHBAPCortexM33 Idr = 0x24770011
)

// Csw is the MEM-AP Control/Status Word register value (AP bank 0, 0x00).
type Csw uint32

const (
	cswSizeMask     = 0b111
	cswSizeShift    = 0
	cswAddrIncMask  = 0b11
	cswAddrIncShift = 4
	cswDeviceEn     = 1 << 6
	cswTrInProg     = 1 << 7
	cswModeMask     = 0b1111
	cswModeShift    = 8
	cswTypeMask     = 0b111
	cswTypeShift    = 12
	cswMTE          = 1 << 15
	cswSPIDEN       = 1 << 23
	cswProtMask     = 0b1111111
	cswProtShift    = 24
	cswDbgSWEnable  = 1 << 31
	cswReservedHigh = 1 << 24
)

// Transfer sizes for CSW.SIZE.
const (
	CswSize8Bit   = 0b000
	CswSize16Bit  = 0b001
	CswSize32Bit  = 0b010
	CswSize64Bit  = 0b011
	CswSize128Bit = 0b100
	CswSize256Bit = 0b101
)

// Address-increment modes for CSW.ADDRINC.
const (
	CswAddrIncOff    = 0b00
	CswAddrIncSingle = 0b01
	CswAddrIncPacked = 0b10
)

// PROT field values.
const (
	CswProtMasterDebug = 1 << 5
	CswProtBit1        = 1 << 1
)

func (c Csw) Value() uint32 { return uint32(c) }
func (c Csw) Size() uint32  { return (uint32(c) >> cswSizeShift) & cswSizeMask }
func (c Csw) AddrInc() uint32 { return (uint32(c) >> cswAddrIncShift) & cswAddrIncMask }
func (c Csw) DeviceEn() bool { return uint32(c)&cswDeviceEn != 0 }
func (c Csw) TrInProg() bool { return uint32(c)&cswTrInProg != 0 }

func (c Csw) WithSize(size uint32) Csw {
	return Csw((uint32(c) &^ (cswSizeMask << cswSizeShift)) | ((size & cswSizeMask) << cswSizeShift))
}

func (c Csw) WithAddrInc(inc uint32) Csw {
	return Csw((uint32(c) &^ (cswAddrIncMask << cswAddrIncShift)) | ((inc & cswAddrIncMask) << cswAddrIncShift))
}

func (c Csw) WithDeviceEn(enable bool) Csw {
	if enable {
		return c | cswDeviceEn
	}
	return c &^ cswDeviceEn
}

func (c Csw) WithProt(prot uint32) Csw {
	return Csw((uint32(c) &^ (cswProtMask << cswProtShift)) | ((prot & cswProtMask) << cswProtShift))
}

func (c Csw) withReservedHigh() Csw { return c | cswReservedHigh }

// DefaultCsw mirrors the Rust Default impl for Csw: reserved-high bit
// set, PROT=MASTER_DEBUG|BIT_1, 32-bit transfers, no auto-increment,
// device enabled.
func DefaultCsw() Csw {
	c := Csw(0).withReservedHigh()
	c = c.WithProt(CswProtMasterDebug | CswProtBit1)
	c = c.WithSize(CswSize32Bit)
	c = c.WithAddrInc(CswAddrIncOff)
	c = c.WithDeviceEn(true)
	return c
}

// Tar is the MEM-AP Transfer Address Register value (AP bank 0, 0x04).
type Tar uint32

func (t Tar) Value() uint32 { return uint32(t) }

// Drw is the MEM-AP Data Read/Write Register value (AP bank 0, 0x0C).
type Drw uint32

func (d Drw) Value() uint32 { return uint32(d) }
