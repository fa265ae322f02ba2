// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package dap

import (
	"testing"

	"github.com/airfrog/airfrog/internal/gpio/sim"
	"github.com/airfrog/airfrog/internal/swd"
)

func newConnectedSession(t *testing.T) (*Session, *sim.Driver, *sim.Target) {
	t.Helper()
	target := sim.NewTarget()
	drv := sim.NewDriver(target)
	link := swd.NewLink(drv)
	s := NewSession(link)
	drv.NoteReset()
	if err := s.Connect(drv, ResetV1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return s, drv, target
}

func TestConnectIDCode(t *testing.T) {
	s, _, _ := newConnectedSession(t)
	if s.IDCode != 0x2BA01477 {
		t.Errorf("IDCode = 0x%08x, want 0x2BA01477", s.IDCode)
	}
	if !s.Connected {
		t.Errorf("session should be Connected after Connect")
	}
}

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	s, _, _ := newConnectedSession(t)
	if err := s.WriteMemoryWord(0x20000000, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteMemoryWord: %v", err)
	}
	v, err := s.ReadMemoryWord(0x20000000)
	if err != nil {
		t.Fatalf("ReadMemoryWord: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Errorf("read back 0x%08x, want 0xDEADBEEF", v)
	}
}

func TestMemoryBulkRoundTrip(t *testing.T) {
	s, _, _ := newConnectedSession(t)
	words := []uint32{1, 2, 3, 4, 5}
	if err := s.WriteMemoryBulk(0x20000000, words); err != nil {
		t.Fatalf("WriteMemoryBulk: %v", err)
	}
	got, err := s.ReadMemoryBulk(0x20000000, len(words))
	if err != nil {
		t.Fatalf("ReadMemoryBulk: %v", err)
	}
	for i, w := range words {
		if got[i] != w {
			t.Errorf("word %d = %d, want %d", i, got[i], w)
		}
	}
}

// TestMemoryBulkCrossesPage starts two words before a 1 KiB page boundary
// so the transfer forces ensureTARForce mid-transfer, per the
// auto-increment page-boundary rule.
func TestMemoryBulkCrossesPage(t *testing.T) {
	s, _, _ := newConnectedSession(t)
	addr := uint32(0x20000000 + 1024 - 2*4)
	words := []uint32{0xAAAA0000, 0xAAAA0001, 0xAAAA0002, 0xAAAA0003}
	if err := s.WriteMemoryBulk(addr, words); err != nil {
		t.Fatalf("WriteMemoryBulk across page: %v", err)
	}
	got, err := s.ReadMemoryBulk(addr, len(words))
	if err != nil {
		t.Fatalf("ReadMemoryBulk across page: %v", err)
	}
	for i, w := range words {
		if got[i] != w {
			t.Errorf("word %d = 0x%08x, want 0x%08x", i, got[i], w)
		}
	}
}

func TestSelectElision(t *testing.T) {
	s, _, target := newConnectedSession(t)
	if err := s.WriteMemoryWord(0x20000000, 1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	before := target.SelectWrites
	if err := s.WriteMemoryWord(0x20000004, 2); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if target.SelectWrites != before {
		t.Errorf("SELECT was re-written for the same AP/bank: before=%d after=%d", before, target.SelectWrites)
	}
}

func TestClearErrorsIdempotent(t *testing.T) {
	s, _, target := newConnectedSession(t)
	target.CtrlStat = 1 << 5 // STICKYERR
	if err := s.ClearErrors(); err != nil {
		t.Fatalf("first ClearErrors: %v", err)
	}
	if target.CtrlStat != 0 {
		t.Errorf("CTRL/STAT sticky bits not cleared: 0x%x", target.CtrlStat)
	}
	if err := s.ClearErrors(); err != nil {
		t.Fatalf("second ClearErrors: %v", err)
	}
	if target.CtrlStat != 0 {
		t.Errorf("CTRL/STAT sticky bits not clear after idempotent ClearErrors: 0x%x", target.CtrlStat)
	}
}

func TestWaitRetryExhaustion(t *testing.T) {
	s, _, target := newConnectedSession(t)
	target.WaitCountdown = 100 // far beyond maximumWaitRetries
	_, err := s.ReadMemoryWord(0x20000000)
	if err == nil {
		t.Fatalf("expected WAIT-retry exhaustion error, got nil")
	}
	e, ok := swd.AsError(err)
	if !ok || e.Code != swd.ErrorWaitAcknowledge {
		t.Errorf("expected swd.ErrorWaitAcknowledge, got %v", err)
	}
}
