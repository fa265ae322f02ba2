// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package mcu

import (
	"fmt"

	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/dap"
)

// dbgmcuIDCode is the STM32 family device-identification register,
// mapped into the Cortex-M debug peripheral address space. Ported from
// the original Rust stm.rs (see SPEC_FULL.md §11).
const dbgmcuIDCode = 0xE004_2000

// flashSizeAddr holds the flash size in its upper 16 bits, for the F4
// family; uniqueIDAddr holds the 96-bit factory-programmed unique ID as
// three consecutive 32-bit words, LSB word first. Both are ported from
// the original Rust stm.rs.
const (
	flashSizeAddr = 0x1FFF_7A20
	uniqueIDAddr  = 0x1FFF_7A10
)

// Family is the identified MCU product family.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilySTM32F4
)

func (f Family) String() string {
	switch f {
	case FamilySTM32F4:
		return "stm32f4"
	default:
		return "unknown"
	}
}

// Descriptor is the read-only Target Descriptor assembled at connect
// time, per §3.
type Descriptor struct {
	IDCode      uint32
	MCUFamily   Family
	MCULine     string
	DeviceID    uint16
	Revision    uint16
	MemAPIDR    uint32

	// FlashSizeKB and UniqueID are only populated for a recognized
	// STM32F4 line; zero/empty otherwise.
	FlashSizeKB uint32
	UniqueID    string
}

// deviceIDToLine maps a subset of well-known STM32F4 DBGMCU_IDCODE
// device-ID fields to a human line name. Not exhaustive: unrecognized
// IDs surface as a formatted hex string by the caller.
var deviceIDToLine = map[uint16]string{
	0x419: "STM32F42x/43x",
	0x431: "STM32F411",
	0x441: "STM32F412",
	0x463: "STM32F413/423",
}

// Identify reads DBGMCU_IDCODE and classifies the MCU family/line,
// populating a Descriptor. memAPIDR is the already-read MEM-AP IDR
// value from Session.Connect.
func Identify(s *dap.Session, idcode uint32, memAPIDR uint32) (Descriptor, error) {
	d := Descriptor{IDCode: idcode, MemAPIDR: memAPIDR}

	class := arm.Idr(memAPIDR).Class()
	if class != arm.IdrClassMemAP {
		d.MCUFamily = FamilyUnknown
		d.MCULine = "unknown (no MEM-AP)"
		return d, nil
	}

	v, err := s.ReadMemoryWord(dbgmcuIDCode)
	if err != nil {
		// DBGMCU not reachable (debug domain not powered, or a family
		// that doesn't implement it at this address): identification
		// degrades to "unknown" rather than failing Connect.
		d.MCUFamily = FamilyUnknown
		d.MCULine = "unknown"
		return d, nil
	}

	d.DeviceID = uint16(v & 0xFFF)
	d.Revision = uint16(v >> 16)

	if line, ok := deviceIDToLine[d.DeviceID]; ok {
		d.MCUFamily = FamilySTM32F4
		d.MCULine = line
		readFlashSize(s, &d)
		readUniqueID(s, &d)
	} else {
		d.MCUFamily = FamilyUnknown
		d.MCULine = "unknown"
	}
	return d, nil
}

// readFlashSize populates d.FlashSizeKB from the factory flash-size
// word; failures are non-fatal, mirroring Identify's own degrade-to-
// unknown behavior for DBGMCU.
func readFlashSize(s *dap.Session, d *Descriptor) {
	v, err := s.ReadMemoryWord(flashSizeAddr)
	if err != nil {
		return
	}
	d.FlashSizeKB = v >> 16
}

// readUniqueID populates d.UniqueID from the 96-bit factory unique ID,
// formatted as three concatenated 8-digit hex words (LSB word first),
// matching the original Rust implementation's display format.
func readUniqueID(s *dap.Session, d *Descriptor) {
	words, err := s.ReadMemoryBulk(uniqueIDAddr, 3)
	if err != nil {
		return
	}
	d.UniqueID = fmt.Sprintf("0x%08X%08X%08X", words[0], words[1], words[2])
}
