// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package mcu implements MCU identification and STM32F4 flash
// programming (§4.3, §4.4), the only supported flash family per the
// distilled spec's Non-goals. Register addresses and bit layouts are
// ported from the project's original Rust stm.rs constants.
package mcu

import (
	"time"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/dap"
	"github.com/airfrog/airfrog/internal/swd"
)

// STM32F4 FLASH peripheral register addresses.
const (
	flashRegBase = 0x4002_3C00
	flashKeyr    = flashRegBase + 0x04
	flashSr      = flashRegBase + 0x0C
	flashCr      = flashRegBase + 0x10
)

// FLASH_KEYR unlock keys.
const (
	flashKey1 uint32 = 0x45670123
	flashKey2 uint32 = 0xCDEF89AB
)

// FLASH_CR bit positions and fields.
const (
	crPGBit   = 1 << 0
	crSERBit  = 1 << 1
	crMERBit  = 1 << 2
	crStrtBit = 1 << 16
	crLockBit = 1 << 31

	crSNBShift  = 3
	crSNBMask   = 0b1111
	crPSizeShift = 8
	crPSizeMask  = 0b11
	crPSizeX32   = 0b10
)

// FLASH_SR bit positions.
const (
	srEOPBit    = 1 << 0
	srOperrBit  = 1 << 1
	srWrperrBit = 1 << 4
	srPgaerrBit = 1 << 5
	srPgperrBit = 1 << 6
	srPgserrBit = 1 << 7
	srRderrBit  = 1 << 8
	srBsyBit    = 1 << 16

	srErrorMask = srOperrBit | srWrperrBit | srPgaerrBit | srPgperrBit | srPgserrBit | srRderrBit
)

// FlashBase is the STM32F4 flash memory base address, used by callers
// to validate program/erase addresses fall within flash.
const FlashBase = 0x0800_0000

// EraseSectorTimeout / EraseAllTimeout bound flash busy-polling, per §5.
const (
	EraseSectorTimeout = 1 * time.Second
	EraseAllTimeout    = 30 * time.Second
)

// FlashUnlock runs the documented FLASH_KEYR unlock sequence.
func FlashUnlock(s *dap.Session) error {
	if err := s.WriteMemoryWord(flashKeyr, flashKey1); err != nil {
		return err
	}
	return s.WriteMemoryWord(flashKeyr, flashKey2)
}

// FlashLock sets FLASH_CR.LOCK, re-arming the unlock sequence
// requirement for any further flash operation.
func FlashLock(s *dap.Session) error {
	cr, err := s.ReadMemoryWord(flashCr)
	if err != nil {
		return err
	}
	return s.WriteMemoryWord(flashCr, cr|crLockBit)
}

func pollNotBusy(s *dap.Session, timeout time.Duration) (uint32, error) {
	deadline := time.Now().Add(timeout)
	for {
		sr, err := s.ReadMemoryWord(flashSr)
		if err != nil {
			return 0, err
		}
		if sr&srBsyBit == 0 {
			return sr, nil
		}
		if time.Now().After(deadline) {
			return sr, apierr.New("flash operation timed out waiting for BSY to clear", apierr.Timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func checkFlashResult(sr uint32) error {
	if sr&srErrorMask != 0 {
		return swd.NewErrorWithDetail("flash operation completed with error bits set", swd.ErrorOperationFailed, sr)
	}
	if sr&srEOPBit == 0 {
		return swd.NewError("flash operation did not report EOP", swd.ErrorOperationFailed)
	}
	return nil
}

// FlashEraseSector erases the given sector number (FLASH_CR.SNB),
// polling BSY with EraseSectorTimeout.
func FlashEraseSector(s *dap.Session, sector uint8) error {
	cr := uint32(crSERBit) | (uint32(sector)&crSNBMask)<<crSNBShift | crStrtBit
	if err := s.WriteMemoryWord(flashCr, cr); err != nil {
		return err
	}
	sr, err := pollNotBusy(s, EraseSectorTimeout)
	if err != nil {
		return err
	}
	if err := checkFlashResult(sr); err != nil {
		return err
	}
	return s.WriteMemoryWord(flashCr, 0)
}

// FlashEraseAll performs a mass erase, polling BSY with EraseAllTimeout.
func FlashEraseAll(s *dap.Session) error {
	if err := s.WriteMemoryWord(flashCr, crMERBit|crStrtBit); err != nil {
		return err
	}
	sr, err := pollNotBusy(s, EraseAllTimeout)
	if err != nil {
		return err
	}
	if err := checkFlashResult(sr); err != nil {
		return err
	}
	return s.WriteMemoryWord(flashCr, 0)
}

// FlashProgramWord programs one 32-bit word at addr. The destination
// must already read 0xFFFFFFFF (the caller is responsible for erasing,
// per §4.3).
func FlashProgramWord(s *dap.Session, addr uint32, v uint32) error {
	cr := uint32(crPGBit) | (uint32(crPSizeX32)&crPSizeMask)<<crPSizeShift
	if err := s.WriteMemoryWord(flashCr, cr); err != nil {
		return err
	}
	if err := s.WriteMemoryWord(addr, v); err != nil {
		return err
	}
	sr, err := pollNotBusy(s, EraseSectorTimeout)
	if err != nil {
		return err
	}
	if err := checkFlashResult(sr); err != nil {
		return err
	}
	return s.WriteMemoryWord(flashCr, 0)
}

// FlashProgramBulk programs consecutive words starting at addr, one
// FLASH_CR/FLASH_SR cycle per word, matching the documented per-word
// program sequence.
func FlashProgramBulk(s *dap.Session, addr uint32, words []uint32) error {
	for i, w := range words {
		if err := FlashProgramWord(s, addr+uint32(i*4), w); err != nil {
			return err
		}
	}
	return nil
}
