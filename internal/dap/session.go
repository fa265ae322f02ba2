// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package dap implements the SWD session layer (C3): DP/AP register
// semantics, SELECT bank caching, RDBUFF discipline, auto-increment
// bulk memory transfers and error recovery, above a swd.Link.
package dap

import (
	"github.com/boljen/go-bitmap"

	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/swd"
	"github.com/airfrog/airfrog/internal/xlog"
)

// pageSize is the MEM-AP auto-increment page boundary: TAR must be
// re-written whenever a bulk transfer crosses a 1 KiB page, per §4.3.
const pageSize = 1024

// Session holds the per-target cached state the session layer uses to
// elide redundant SELECT/TAR writes, per the Session State data model.
type Session struct {
	link *swd.Link

	selectValid bool
	selectVal   arm.Select

	tarValid bool
	tarVal   uint32

	cswCache map[uint8]arm.Csw

	Connected bool
	IDCode    uint32

	// MemAPIDR is the MEM-AP IDR value read during Connect, used by
	// mcu.Identify to classify the attached target.
	MemAPIDR uint32
}

// NewSession constructs a Session driving the given Link.
func NewSession(link *swd.Link) *Session {
	return &Session{link: link, cswCache: make(map[uint8]arm.Csw)}
}

// invalidate drops the SELECT/TAR/CSW caches, per "After any FAULT ...
// tar_cache and ap_csw_cache are invalidated."
func (s *Session) invalidate() {
	s.selectValid = false
	s.tarValid = false
	s.cswCache = make(map[uint8]arm.Csw)
}

// ReadDP issues a direct DP read.
func (s *Session) ReadDP(reg uint8) (uint32, error) {
	v, err := s.link.Transaction(swd.DP, swd.Read, reg, 0, true)
	return v, s.maybeRecover(err)
}

// WriteDP issues a direct DP write.
func (s *Session) WriteDP(reg uint8, v uint32) error {
	_, err := s.link.Transaction(swd.DP, swd.Write, reg, v, true)
	return s.maybeRecover(err)
}

// ensureSelect writes DP SELECT only when the requested AP index or
// bank differs from the cached value, per the SELECT management rule.
func (s *Session) ensureSelect(apIndex uint8, regAddr uint8) error {
	want := arm.Select(0).WithAPSel(uint32(apIndex)).WithAPBankSelFromAddr(regAddr)
	if s.selectValid && s.selectVal.APSel() == want.APSel() && s.selectVal.APBankSel() == want.APBankSel() {
		return nil
	}
	if _, err := s.link.Transaction(swd.DP, swd.Write, arm.AddrSelect, want.Value(), false); err != nil {
		return s.maybeRecover(err)
	}
	s.selectVal = want
	s.selectValid = true
	return nil
}

// ReadAP reads an AP register: ensures SELECT, issues the (stale) AP
// read, then reads DP RDBUFF for the true value, per the RDBUFF
// discipline.
func (s *Session) ReadAP(apIndex uint8, reg uint8) (uint32, error) {
	if err := s.ensureSelect(apIndex, reg); err != nil {
		return 0, err
	}
	if _, err := s.link.Transaction(swd.AP, swd.Read, reg, 0, false); err != nil {
		return 0, s.maybeRecover(err)
	}
	v, err := s.link.Transaction(swd.DP, swd.Read, arm.AddrRdBuff, 0, true)
	if err != nil {
		return 0, s.maybeRecover(err)
	}
	return v, nil
}

// WriteAP writes an AP register: ensures SELECT, then issues the write.
func (s *Session) WriteAP(apIndex uint8, reg uint8, v uint32) error {
	if err := s.ensureSelect(apIndex, reg); err != nil {
		return err
	}
	_, err := s.link.Transaction(swd.AP, swd.Write, reg, v, true)
	return s.maybeRecover(err)
}

// ensureCSW writes MEM-AP CSW only when the cached value for apIndex
// differs from want.
func (s *Session) ensureCSW(apIndex uint8, want arm.Csw) error {
	if cached, ok := s.cswCache[apIndex]; ok && cached == want {
		return nil
	}
	if err := s.WriteAP(apIndex, arm.AddrCSW, want.Value()); err != nil {
		return err
	}
	s.cswCache[apIndex] = want
	return nil
}

// ensureTAR writes MEM-AP TAR only when the cached value doesn't match,
// per the TAR management rule; any page-boundary crossing during a bulk
// transfer must call this again to force the re-write.
func (s *Session) ensureTAR(apIndex uint8, addr uint32) error {
	if s.tarValid && s.tarVal == addr {
		return nil
	}
	if err := s.WriteAP(apIndex, arm.AddrTAR, addr); err != nil {
		return err
	}
	s.tarVal = addr
	s.tarValid = true
	return nil
}

const memAPIndex = 0

// ReadMemoryWord reads one 32-bit word from target memory via MEM-AP 0.
func (s *Session) ReadMemoryWord(addr uint32) (uint32, error) {
	if err := s.ensureCSW(memAPIndex, arm.DefaultCsw().WithAddrInc(arm.CswAddrIncOff)); err != nil {
		return 0, err
	}
	if err := s.ensureTAR(memAPIndex, addr); err != nil {
		return 0, err
	}
	v, err := s.ReadAP(memAPIndex, arm.AddrDRW)
	if err != nil {
		s.tarValid = false
		return 0, err
	}
	return v, nil
}

// WriteMemoryWord writes one 32-bit word to target memory via MEM-AP 0.
func (s *Session) WriteMemoryWord(addr uint32, v uint32) error {
	if err := s.ensureCSW(memAPIndex, arm.DefaultCsw().WithAddrInc(arm.CswAddrIncOff)); err != nil {
		return err
	}
	if err := s.ensureTAR(memAPIndex, addr); err != nil {
		return err
	}
	if err := s.WriteAP(memAPIndex, arm.AddrDRW, v); err != nil {
		s.tarValid = false
		return err
	}
	return nil
}

// ReadMemoryBulk reads n consecutive 32-bit words starting at addr,
// auto-incrementing TAR and re-writing it at each 1 KiB page boundary,
// per §4.3's auto-increment rule. The pipelined AP-read/RDBUFF-tail
// discipline is hidden from the caller: the returned slice's i-th
// element is the true value at addr+4*i.
func (s *Session) ReadMemoryBulk(addr uint32, n int) ([]uint32, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.ensureCSW(memAPIndex, arm.DefaultCsw().WithAddrInc(arm.CswAddrIncSingle)); err != nil {
		return nil, err
	}
	if err := s.ensureTAR(memAPIndex, addr); err != nil {
		return nil, err
	}

	// pagesTouched tracks which 1 KiB pages within this transfer have
	// required a forced TAR re-write, repurposing the teacher's
	// opened_ap bitmap idiom (accessport.go) from "which AP index" to
	// "which page offset within this bulk transfer".
	pageCount := int((addr+uint32(n)*4-1)/pageSize - addr/pageSize + 1)
	pagesTouched := bitmap.New(pageCount)
	pagesTouched.Set(0, true)

	out := make([]uint32, n)
	cur := addr
	for i := 0; i < n; i++ {
		if i > 0 && cur%pageSize == 0 {
			if err := s.ensureTARForce(cur); err != nil {
				return nil, err
			}
			pagesTouched.Set(int(cur/pageSize-addr/pageSize), true)
		}
		if err := s.ensureSelect(memAPIndex, arm.AddrDRW); err != nil {
			return nil, err
		}
		// Each DRW AP read returns the *previous* read's value (the
		// pipeline holds it until the following read retires it), so
		// the i-th transaction's return value is the (i-1)-th word;
		// the first is stale and discarded, and the final RDBUFF read
		// below retires the last word.
		v, err := s.link.Transaction(swd.AP, swd.Read, arm.AddrDRW, 0, false)
		if err != nil {
			s.tarValid = false
			return nil, s.maybeRecover(err)
		}
		if i > 0 {
			out[i-1] = v
		}
		cur += 4
	}
	tail, err := s.link.Transaction(swd.DP, swd.Read, arm.AddrRdBuff, 0, true)
	if err != nil {
		s.tarValid = false
		return nil, s.maybeRecover(err)
	}
	out[n-1] = tail
	s.tarVal = cur
	touched := 0
	for i := 0; i < pageCount; i++ {
		if pagesTouched.Get(i) {
			touched++
		}
	}
	xlog.Debugf("dap: bulk read touched %d/%d page(s) starting at 0x%08x", touched, pageCount, addr)
	return out, nil
}

// ensureTARForce always re-writes TAR (used at page boundaries, where
// the cache would otherwise believe auto-increment already moved it
// there and elide the write).
func (s *Session) ensureTARForce(addr uint32) error {
	s.tarValid = false
	return s.ensureTAR(memAPIndex, addr)
}

// WriteMemoryBulk writes consecutive 32-bit words starting at addr,
// mirroring ReadMemoryBulk's auto-increment/page-boundary handling.
func (s *Session) WriteMemoryBulk(addr uint32, words []uint32) error {
	if len(words) == 0 {
		return nil
	}
	if err := s.ensureCSW(memAPIndex, arm.DefaultCsw().WithAddrInc(arm.CswAddrIncSingle)); err != nil {
		return err
	}
	if err := s.ensureTAR(memAPIndex, addr); err != nil {
		return err
	}
	cur := addr
	for i, w := range words {
		if i > 0 && cur%pageSize == 0 {
			if err := s.ensureTARForce(cur); err != nil {
				return err
			}
		}
		if err := s.WriteAP(memAPIndex, arm.AddrDRW, w); err != nil {
			s.tarValid = false
			return err
		}
		cur += 4
	}
	s.tarVal = cur
	return nil
}

// ReadAPRegisterBulk reads n consecutive values from the same AP
// register via the posted-read pipeline (ensureSelect once, n DRW-style
// reads discarding the first, final RDBUFF tail), without touching
// CSW/TAR itself. Used for the binary protocol's AP Bulk Read command,
// which addresses a register rather than a memory address: for reg ==
// arm.AddrDRW this walks memory exactly like ReadMemoryBulk over
// whatever TAR/CSW the caller has already established with prior raw
// AP writes.
func (s *Session) ReadAPRegisterBulk(apIndex uint8, reg uint8, n int) ([]uint32, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.ensureSelect(apIndex, reg); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := s.link.Transaction(swd.AP, swd.Read, reg, 0, false)
		if err != nil {
			s.tarValid = false
			return nil, s.maybeRecover(err)
		}
		if i > 0 {
			out[i-1] = v
		}
	}
	tail, err := s.link.Transaction(swd.DP, swd.Read, arm.AddrRdBuff, 0, true)
	if err != nil {
		s.tarValid = false
		return nil, s.maybeRecover(err)
	}
	out[n-1] = tail
	if reg == arm.AddrDRW {
		s.tarValid = false
	}
	return out, nil
}

// WriteAPRegisterBulk writes words to the same AP register n times,
// mirroring ReadAPRegisterBulk. For reg == arm.AddrDRW with
// auto-increment enabled in CSW, each write advances TAR on the target
// exactly as WriteMemoryBulk does.
func (s *Session) WriteAPRegisterBulk(apIndex uint8, reg uint8, words []uint32) error {
	if len(words) == 0 {
		return nil
	}
	if err := s.ensureSelect(apIndex, reg); err != nil {
		return err
	}
	idle := false
	for i, w := range words {
		if i == len(words)-1 {
			idle = true
		}
		if _, err := s.link.Transaction(swd.AP, swd.Write, reg, w, idle); err != nil {
			s.tarValid = false
			return s.maybeRecover(err)
		}
	}
	if reg == arm.AddrDRW {
		s.tarValid = false
	}
	return nil
}

// WriteOp is one element of a MultiWrite pipeline.
type WriteOp struct {
	Port swd.Port
	Reg  uint8
	Data uint32
	// APIndex is only consulted when Port == swd.AP.
	APIndex uint8
}

// MultiWrite pipelines several writes, eliding redundant SELECT writes
// by tracking dp_select across the sequence, per §4.3.
func (s *Session) MultiWrite(ops []WriteOp) error {
	for i, op := range ops {
		idle := i == len(ops)-1
		if op.Port == swd.AP {
			if err := s.ensureSelect(op.APIndex, op.Reg); err != nil {
				return err
			}
		}
		if _, err := s.link.Transaction(op.Port, swd.Write, op.Reg, op.Data, idle); err != nil {
			return s.maybeRecover(err)
		}
	}
	return nil
}

// ReadErrors reads DP CTRL/STAT and returns its decoded sticky-error
// bits.
func (s *Session) ReadErrors() (arm.CtrlStat, error) {
	v, err := s.ReadDP(arm.AddrCtrlStat)
	return arm.CtrlStat(v), err
}

// ClearErrors writes DP ABORT with the four sticky-clear bits set, per
// §4.3. Calling it twice in a row is idempotent: the second write still
// succeeds and CTRL/STAT's sticky bits remain clear.
func (s *Session) ClearErrors() error {
	if err := s.WriteDP(arm.AddrAbort, uint32(arm.ClearErrors)); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// maybeRecover implements the "at most one automatic recovery on FAULT"
// rule: on FaultAcknowledge, invalidate caches, write ABORT, and
// annotate the returned error with the post-recovery CTRL/STAT image,
// without retrying the original operation.
func (s *Session) maybeRecover(err error) error {
	if err == nil {
		return nil
	}
	e, ok := swd.AsError(err)
	if !ok || e.Code != swd.ErrorFaultAcknowledge {
		return err
	}
	s.invalidate()
	xlog.Debugf("dap: recovering from FAULT via ABORT+CTRL/STAT")
	if _, werr := s.link.Transaction(swd.DP, swd.Write, arm.AddrAbort, uint32(arm.ClearErrors), true); werr != nil {
		return err
	}
	if cs, rerr := s.link.Transaction(swd.DP, swd.Read, arm.AddrCtrlStat, 0, true); rerr == nil {
		return swd.NewErrorWithDetail(e.Error(), e.Code, cs)
	}
	return err
}
