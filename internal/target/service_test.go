// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package target

import (
	"testing"

	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/dap"
	"github.com/airfrog/airfrog/internal/gpio/sim"
	"github.com/airfrog/airfrog/internal/swd"
)

func newConnectedService(t *testing.T) (*Service, *sim.Driver, *sim.Target) {
	t.Helper()
	tgt := sim.NewTarget()
	drv := sim.NewDriver(tgt)
	svc := NewService(drv)
	drv.NoteReset()
	if err := svc.ResetTarget(); err != nil {
		t.Fatalf("ResetTarget: %v", err)
	}
	return svc, drv, tgt
}

func TestStatusAfterReset(t *testing.T) {
	svc, _, _ := newConnectedService(t)
	st := svc.Status()
	if !st.Connected {
		t.Fatalf("expected Connected after ResetTarget")
	}
	if st.IDCode != 0x2BA01477 {
		t.Errorf("IDCode = 0x%08x, want 0x2BA01477", st.IDCode)
	}
}

func TestMemoryReadRejectsMisalignedAddress(t *testing.T) {
	svc, _, _ := newConnectedService(t)
	if _, err := svc.MemoryRead(0x20000001); err == nil {
		t.Fatalf("expected an alignment error")
	}
}

func TestMemoryBulkRejectsOversizedCount(t *testing.T) {
	svc, _, _ := newConnectedService(t)
	if _, err := svc.MemoryReadBulk(0x20000000, MaxBulkWords+1); err == nil {
		t.Fatalf("expected a too-large error")
	}
}

func TestMemoryOperationsRequireConnection(t *testing.T) {
	tgt := sim.NewTarget()
	drv := sim.NewDriver(tgt)
	svc := NewService(drv)
	if _, err := svc.MemoryRead(0x20000000); err == nil {
		t.Fatalf("expected a not-connected error before any reset")
	}
}

// flashSRAddr is the STM32F4 FLASH_SR register address. The simulator
// has no flash-peripheral side effects, so tests pre-seed it with EOP
// set, modeling the real peripheral's post-completion state.
const flashSRAddr = 0x4002_3C0C

func TestFlashProgramWordSequence(t *testing.T) {
	svc, _, tgt := newConnectedService(t)
	const addr = 0x08000000
	tgt.Memory[flashSRAddr] = 1 // EOP
	tgt.Memory[addr] = 0xFFFFFFFF
	if err := svc.FlashUnlock(); err != nil {
		t.Fatalf("FlashUnlock: %v", err)
	}
	if err := svc.FlashProgramWord(addr, 0xDEADBEEF); err != nil {
		t.Fatalf("FlashProgramWord: %v", err)
	}
	if tgt.Memory[addr] != 0xDEADBEEF {
		t.Errorf("flash word = 0x%08x, want 0xDEADBEEF", tgt.Memory[addr])
	}
}

func TestFlashProgramBulk(t *testing.T) {
	svc, _, tgt := newConnectedService(t)
	const addr = 0x08000000
	tgt.Memory[flashSRAddr] = 1
	words := []uint32{0x11111111, 0x22222222, 0x33333333}
	if err := svc.FlashUnlock(); err != nil {
		t.Fatalf("FlashUnlock: %v", err)
	}
	if err := svc.FlashProgramBulk(addr, words); err != nil {
		t.Fatalf("FlashProgramBulk: %v", err)
	}
	for i, w := range words {
		got := tgt.Memory[addr+uint32(i*4)]
		if got != w {
			t.Errorf("word %d = 0x%08x, want 0x%08x", i, got, w)
		}
	}
}

func TestRawMultiWrite(t *testing.T) {
	svc, _, target := newConnectedService(t)
	ops := []dap.WriteOp{
		{Port: swd.DP, Reg: 0x00, Data: 0x1E}, // ABORT clear-errors
	}
	if err := svc.RawMultiWrite(ops); err != nil {
		t.Fatalf("RawMultiWrite: %v", err)
	}
	if target.AbortSeen != 0x1E {
		t.Errorf("AbortSeen = 0x%x, want 0x1e", target.AbortSeen)
	}
}

// TestRawAPBulkReadWalksMemory reproduces the binary protocol's AP Bulk
// Read over DRW: CSW/TAR are set with plain raw AP writes (as a client
// would), then RawAPBulkRead must walk consecutive target words rather
// than sampling the same stale pipeline slot n times.
func TestRawAPBulkReadWalksMemory(t *testing.T) {
	svc, _, tgt := newConnectedService(t)
	const addr = 0x20000000
	words := []uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}
	for i, w := range words {
		tgt.Memory[addr+uint32(i*4)] = w
	}

	csw := arm.DefaultCsw().WithAddrInc(arm.CswAddrIncSingle)
	if err := svc.RawAPWrite(0, arm.AddrCSW, csw.Value()); err != nil {
		t.Fatalf("RawAPWrite CSW: %v", err)
	}
	if err := svc.RawAPWrite(0, arm.AddrTAR, addr); err != nil {
		t.Fatalf("RawAPWrite TAR: %v", err)
	}

	got, err := svc.RawAPBulkRead(0, arm.AddrDRW, len(words))
	if err != nil {
		t.Fatalf("RawAPBulkRead: %v", err)
	}
	for i, w := range words {
		if got[i] != w {
			t.Errorf("word %d = 0x%08x, want 0x%08x", i, got[i], w)
		}
	}
}

func TestRawResetLeavesDisconnected(t *testing.T) {
	svc, _, _ := newConnectedService(t)
	if err := svc.RawReset(); err != nil {
		t.Fatalf("RawReset: %v", err)
	}
	if svc.Status().Connected {
		t.Errorf("expected Connected=false after RawReset")
	}
}
