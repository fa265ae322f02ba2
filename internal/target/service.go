// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package target implements the Target Service (C4): the façade
// consumed by the network servers, owning one dap.Session and
// serializing access to it so concurrent clients never interleave
// transactions on the wire.
package target

import (
	"sync"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/dap"
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/mcu"
	"github.com/airfrog/airfrog/internal/swd"
)

// MaxBulkWords is the Target Service's own ceiling on bulk transfer
// length (§4.4's ApiError::TooLarge guard); protocol front-ends apply
// their own tighter limits (256 for binary, 4096 for REST) before
// reaching this layer.
const MaxBulkWords = 4096

// Service is the Target Service façade.
type Service struct {
	mu      sync.Mutex
	pins    gpio.Driver
	session *dap.Session
	details mcu.Descriptor
}

// NewService constructs a Service driving the given Pin Driver.
func NewService(pins gpio.Driver) *Service {
	return &Service{
		pins:    pins,
		session: dap.NewSession(swd.NewLink(pins)),
	}
}

// Status is the connection summary returned by Status().
type Status struct {
	Connected bool
	IDCode    uint32
	MCULine   string
}

func (t *Service) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Connected: t.session.Connected,
		IDCode:    t.session.IDCode,
		MCULine:   t.details.MCULine,
	}
}

// ResetTarget reconnects, trying V1 then V2 on failure, per §4.4.
func (t *Service) ResetTarget() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectLocked()
}

func (t *Service) connectLocked() error {
	if err := t.session.Connect(t.pins, dap.ResetV1); err != nil {
		if err2 := t.session.Connect(t.pins, dap.ResetV2); err2 != nil {
			return err2
		}
	}
	d, err := mcu.Identify(t.session, t.session.IDCode, t.session.MemAPIDR)
	if err == nil {
		t.details = d
	}
	return nil
}

// RawReset disconnects without attempting to reconnect, leaving the
// session available for a caller to drive raw primitives directly, per
// §4.4. It does not change the auto-connect or keepalive settings, so
// the runtime's auto-connect task may connect again.
func (t *Service) RawReset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.Connected = false
	return nil
}

// Details returns the full Target Descriptor.
func (t *Service) Details() (mcu.Descriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected(); err != nil {
		return mcu.Descriptor{}, err
	}
	return t.details, nil
}

func checkAligned(addr uint32) error {
	if addr%4 != 0 {
		return apierr.New("address must be 4-byte aligned", apierr.BadRequest)
	}
	return nil
}

func checkBulkCount(n int) error {
	if n <= 0 || n > MaxBulkWords {
		return apierr.New("bulk count out of range", apierr.TooLarge)
	}
	return nil
}

func (t *Service) requireConnected() error {
	if !t.session.Connected {
		return apierr.New("target not connected", apierr.Timeout)
	}
	return nil
}

// MemoryRead reads one 32-bit word.
func (t *Service) MemoryRead(addr uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkAligned(addr); err != nil {
		return 0, err
	}
	if err := t.requireConnected(); err != nil {
		return 0, err
	}
	return t.session.ReadMemoryWord(addr)
}

// MemoryWrite writes one 32-bit word.
func (t *Service) MemoryWrite(addr uint32, v uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkAligned(addr); err != nil {
		return err
	}
	if err := t.requireConnected(); err != nil {
		return err
	}
	return t.session.WriteMemoryWord(addr, v)
}

// MemoryReadBulk reads n consecutive 32-bit words.
func (t *Service) MemoryReadBulk(addr uint32, n int) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkAligned(addr); err != nil {
		return nil, err
	}
	if err := checkBulkCount(n); err != nil {
		return nil, err
	}
	if err := t.requireConnected(); err != nil {
		return nil, err
	}
	return t.session.ReadMemoryBulk(addr, n)
}

// MemoryWriteBulk writes consecutive 32-bit words.
func (t *Service) MemoryWriteBulk(addr uint32, words []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkAligned(addr); err != nil {
		return err
	}
	if err := checkBulkCount(len(words)); err != nil {
		return err
	}
	if err := t.requireConnected(); err != nil {
		return err
	}
	return t.session.WriteMemoryBulk(addr, words)
}

// ReadErrors reads and decodes DP CTRL/STAT.
func (t *Service) ReadErrors() (arm.CtrlStat, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.ReadErrors()
}

// ClearErrors writes DP ABORT's sticky-clear bits.
func (t *Service) ClearErrors() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.ClearErrors()
}

// SetSpeed adjusts the Pin Driver's clock rate.
func (t *Service) SetSpeed(s swd.Speed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pins.SetSpeed(s.HzFor())
}

// IdleProbe issues a lightweight DP IDCODE read, for the runtime's
// keepalive task (§4.4): on error it marks the session Disconnected so
// auto-connect can take over, rather than leaving a dead session looking
// healthy.
func (t *Service) IdleProbe() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.session.Connected {
		return apierr.New("target not connected", apierr.Timeout)
	}
	if _, err := t.session.ReadDP(arm.AddrIdCode); err != nil {
		t.session.Connected = false
		return err
	}
	return nil
}

// RawDPRead/RawDPWrite/RawAPRead/RawAPWrite expose the session layer's
// direct register access, for clients driving raw sequences (e.g.
// manual multi-drop TARGETSEL selection, per the Non-goal on automatic
// multi-drop reset).
func (t *Service) RawDPRead(reg uint8) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.ReadDP(reg)
}

func (t *Service) RawDPWrite(reg uint8, v uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.WriteDP(reg, v)
}

func (t *Service) RawAPRead(apIndex, reg uint8) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.ReadAP(apIndex, reg)
}

func (t *Service) RawAPWrite(apIndex, reg uint8, v uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.WriteAP(apIndex, reg, v)
}

// RawAPBulkRead/RawAPBulkWrite drive the same posted-read pipeline as
// the memory auto-increment path (used by the binary protocol's AP Bulk
// Read/Write commands, which address AP index 0 implicitly per §6.1):
// the first DRW read is discarded and the final word is retired via
// RDBUFF, rather than looping independent ReadAP/WriteAP calls that
// would just sample the same stale pipeline slot repeatedly.
func (t *Service) RawAPBulkRead(apIndex, reg uint8, n int) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkBulkCount(n); err != nil {
		return nil, err
	}
	return t.session.ReadAPRegisterBulk(apIndex, reg, n)
}

func (t *Service) RawAPBulkWrite(apIndex, reg uint8, words []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkBulkCount(len(words)); err != nil {
		return err
	}
	return t.session.WriteAPRegisterBulk(apIndex, reg, words)
}

// RawMultiWrite pipelines several DP/AP writes per §4.3's MultiWrite.
func (t *Service) RawMultiWrite(ops []dap.WriteOp) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.MultiWrite(ops)
}

// RawClock clocks n idle cycles at the given level, for clients driving
// raw bit sequences (e.g. manual multi-drop selection), per §6.1's
// Clock command.
func (t *Service) RawClock(level gpio.Level, cycles int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pins.ClockIdle(cycles, level)
}

// FlashUnlock/FlashLock/FlashEraseSector/FlashEraseAll/
// FlashProgramWord/FlashProgramBulk mirror §4.3's STM32F4 flash
// operations.
func (t *Service) FlashUnlock() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected(); err != nil {
		return err
	}
	return mcu.FlashUnlock(t.session)
}

func (t *Service) FlashLock() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return mcu.FlashLock(t.session)
}

func (t *Service) FlashEraseSector(sector uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected(); err != nil {
		return err
	}
	return mcu.FlashEraseSector(t.session, sector)
}

func (t *Service) FlashEraseAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnected(); err != nil {
		return err
	}
	return mcu.FlashEraseAll(t.session)
}

func (t *Service) FlashProgramWord(addr uint32, v uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkAligned(addr); err != nil {
		return err
	}
	if err := t.requireConnected(); err != nil {
		return err
	}
	return mcu.FlashProgramWord(t.session, addr, v)
}

func (t *Service) FlashProgramBulk(addr uint32, words []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkAligned(addr); err != nil {
		return err
	}
	if err := checkBulkCount(len(words)); err != nil {
		return err
	}
	if err := t.requireConnected(); err != nil {
		return err
	}
	return mcu.FlashProgramBulk(t.session, addr, words)
}
