// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package runtime implements the cooperative scheduler (C5): a single
// link goroutine owning the Target Service, fed by a bounded request
// channel with one-shot reply channels, plus the keepalive and
// auto-connect background tasks, mirroring the teacher's
// single-goroutine-owns-the-handle discipline in StLinkHandle,
// generalized from "one handle, one owner" to "one session, one owner".
package runtime

import (
	"context"
	"time"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/config"
	"github.com/airfrog/airfrog/internal/dap"
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/mcu"
	"github.com/airfrog/airfrog/internal/swd"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/airfrog/airfrog/internal/xlog"
)

// requestQueueCapacity bounds the link task's inbound request channel,
// per §5's "small bounded capacity" backpressure rule.
const requestQueueCapacity = 32

type call struct {
	fn    func() (interface{}, error)
	reply chan result
}

type result struct {
	val interface{}
	err error
}

// Scheduler serializes every Target Service operation through a single
// link goroutine, and runs the keepalive and auto-connect background
// tasks per §4.5.
type Scheduler struct {
	svc *target.Service
	cfg *Settings

	reqCh chan call

	ctx    context.Context
	cancel context.CancelFunc
}

// Settings is the runtime's view of config.SWD, guarded by a
// sync.RWMutex per §5 ("The runtime and persisted configs are each
// guarded by a sync.RWMutex").
type Settings struct {
	get func() config.SWD
	set func(config.SWD)
}

// NewScheduler constructs a Scheduler driving svc, with settings backed
// by getSWD/setSWD (typically a config.Config held under a
// sync.RWMutex by the caller).
func NewScheduler(ctx context.Context, svc *target.Service, getSWD func() config.SWD, setSWD func(config.SWD)) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		svc:    svc,
		cfg:    &Settings{get: getSWD, set: setSWD},
		reqCh:  make(chan call, requestQueueCapacity),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.runLinkTask()
	go s.runKeepalive()
	go s.runAutoConnect()
	return s
}

// Stop cancels the scheduler's background tasks. The link task drains
// any already-enqueued calls before exiting.
func (s *Scheduler) Stop() { s.cancel() }

func (s *Scheduler) runLinkTask() {
	for {
		select {
		case c := <-s.reqCh:
			v, err := c.fn()
			c.reply <- result{val: v, err: err}
		case <-s.ctx.Done():
			for {
				select {
				case c := <-s.reqCh:
					v, err := c.fn()
					c.reply <- result{val: v, err: err}
				default:
					return
				}
			}
		}
	}
}

// do enqueues fn on the link task and blocks for its reply, respecting
// cancellation on both ends per §5's cancellation rule.
func (s *Scheduler) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	reply := make(chan result, 1)
	select {
	case s.reqCh <- call{fn: fn, reply: reply}:
	case <-ctx.Done():
		return nil, apierr.New("request canceled before dispatch", apierr.Timeout)
	case <-s.ctx.Done():
		return nil, apierr.New("scheduler stopped", apierr.Timeout)
	}

	select {
	case r := <-reply:
		return r.val, r.err
	case <-ctx.Done():
		// The wire transaction the link task is running cannot be
		// partially canceled without leaving the target out-of-sync, so
		// it still completes; this caller simply stops waiting for it.
		return nil, apierr.New("request canceled while in flight", apierr.Timeout)
	}
}

func (s *Scheduler) runKeepalive() {
	interval := time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !s.svc.Status().Connected {
				continue
			}
			if _, err := s.do(s.ctx, func() (interface{}, error) { return nil, s.svc.IdleProbe() }); err != nil {
				xlog.Debugf("runtime: keepalive probe failed, demoting to disconnected: %v", err)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runAutoConnect() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.svc.Status().Connected {
				continue
			}
			if !s.cfg.get().AutoConnect {
				continue
			}
			if _, err := s.do(s.ctx, func() (interface{}, error) { return nil, s.svc.ResetTarget() }); err != nil {
				xlog.Debugf("runtime: auto-connect attempt failed: %v", err)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// The methods below implement wire.TargetService and rest.TargetService,
// dispatching each operation through the link task instead of calling
// svc directly, so the two protocol front-ends are guaranteed never to
// interleave SWD transactions even though each runs its own goroutine.

func (s *Scheduler) Status() target.Status { return s.svc.Status() }

func (s *Scheduler) Details() (mcu.Descriptor, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.Details() })
	if v == nil {
		return mcu.Descriptor{}, err
	}
	return v.(mcu.Descriptor), err
}

func (s *Scheduler) ResetTarget() error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.ResetTarget() })
	return err
}

func (s *Scheduler) MemoryRead(addr uint32) (uint32, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.MemoryRead(addr) })
	if v == nil {
		return 0, err
	}
	return v.(uint32), err
}

func (s *Scheduler) MemoryWrite(addr uint32, val uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.MemoryWrite(addr, val) })
	return err
}

func (s *Scheduler) MemoryReadBulk(addr uint32, n int) ([]uint32, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.MemoryReadBulk(addr, n) })
	if v == nil {
		return nil, err
	}
	return v.([]uint32), err
}

func (s *Scheduler) MemoryWriteBulk(addr uint32, words []uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.MemoryWriteBulk(addr, words) })
	return err
}

func (s *Scheduler) ReadErrors() (arm.CtrlStat, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.ReadErrors() })
	if v == nil {
		return arm.CtrlStat(0), err
	}
	return v.(arm.CtrlStat), err
}

func (s *Scheduler) ClearErrors() error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.ClearErrors() })
	return err
}

func (s *Scheduler) SetSpeed(speed swd.Speed) {
	sw := s.cfg.get()
	sw.Speed = speed
	s.cfg.set(sw)
	_, _ = s.do(context.Background(), func() (interface{}, error) { s.svc.SetSpeed(speed); return nil, nil })
}

func (s *Scheduler) FlashUnlock() error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.FlashUnlock() })
	return err
}

func (s *Scheduler) FlashLock() error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.FlashLock() })
	return err
}

func (s *Scheduler) FlashEraseSector(sector uint8) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.FlashEraseSector(sector) })
	return err
}

func (s *Scheduler) FlashEraseAll() error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.FlashEraseAll() })
	return err
}

func (s *Scheduler) FlashProgramWord(addr uint32, v uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.FlashProgramWord(addr, v) })
	return err
}

func (s *Scheduler) FlashProgramBulk(addr uint32, words []uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.FlashProgramBulk(addr, words) })
	return err
}

func (s *Scheduler) RawDPRead(reg uint8) (uint32, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.RawDPRead(reg) })
	if v == nil {
		return 0, err
	}
	return v.(uint32), err
}

func (s *Scheduler) RawDPWrite(reg uint8, v uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.RawDPWrite(reg, v) })
	return err
}

func (s *Scheduler) RawAPRead(apIndex, reg uint8) (uint32, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.RawAPRead(apIndex, reg) })
	if v == nil {
		return 0, err
	}
	return v.(uint32), err
}

func (s *Scheduler) RawAPWrite(apIndex, reg uint8, v uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.RawAPWrite(apIndex, reg, v) })
	return err
}

func (s *Scheduler) RawAPBulkRead(apIndex, reg uint8, n int) ([]uint32, error) {
	v, err := s.do(context.Background(), func() (interface{}, error) { return s.svc.RawAPBulkRead(apIndex, reg, n) })
	if v == nil {
		return nil, err
	}
	return v.([]uint32), err
}

func (s *Scheduler) RawAPBulkWrite(apIndex, reg uint8, words []uint32) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.RawAPBulkWrite(apIndex, reg, words) })
	return err
}

func (s *Scheduler) RawMultiWrite(ops []dap.WriteOp) error {
	_, err := s.do(context.Background(), func() (interface{}, error) { return nil, s.svc.RawMultiWrite(ops) })
	return err
}

func (s *Scheduler) RawClock(level gpio.Level, cycles int) {
	_, _ = s.do(context.Background(), func() (interface{}, error) { s.svc.RawClock(level, cycles); return nil, nil })
}
