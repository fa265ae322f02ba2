// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"

	"github.com/airfrog/airfrog/internal/dap"
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/swd"
)

type fakeService struct {
	apValues map[uint8]uint32
	dpValues map[uint8]uint32
	resetErr error
	speed    swd.Speed
}

func newFakeService() *fakeService {
	return &fakeService{apValues: make(map[uint8]uint32), dpValues: make(map[uint8]uint32)}
}

func (f *fakeService) RawDPRead(reg uint8) (uint32, error)  { return f.dpValues[reg], nil }
func (f *fakeService) RawDPWrite(reg uint8, v uint32) error { f.dpValues[reg] = v; return nil }
func (f *fakeService) RawAPRead(apIndex, reg uint8) (uint32, error) {
	return f.apValues[reg], nil
}
func (f *fakeService) RawAPWrite(apIndex, reg uint8, v uint32) error {
	f.apValues[reg] = v
	return nil
}
func (f *fakeService) RawAPBulkRead(apIndex, reg uint8, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		out[i] = f.apValues[reg] + uint32(i)
	}
	return out, nil
}
func (f *fakeService) RawAPBulkWrite(apIndex, reg uint8, words []uint32) error { return nil }
func (f *fakeService) RawMultiWrite(ops []dap.WriteOp) error                   { return nil }
func (f *fakeService) RawClock(level gpio.Level, cycles int)                  {}
func (f *fakeService) SetSpeed(s swd.Speed)                                   { f.speed = s }
func (f *fakeService) ResetTarget() error                                     { return f.resetErr }

// TestHandleFrameAPRead exercises the literal byte sequence from the
// spec's AP-read framing walkthrough: request 0x02 0x0C, response
// 0x00 0x78 0x56 0x34 0x12.
func TestHandleFrameAPRead(t *testing.T) {
	svc := newFakeService()
	svc.apValues[0x0C] = 0x12345678
	req := bytes.NewReader([]byte{CmdAPRead, 0x0C})
	var resp bytes.Buffer
	disconnect, err := HandleFrame(req, &resp, svc, nil)
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if disconnect {
		t.Fatalf("AP read should not disconnect")
	}
	want := []byte{StatusOK, 0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(resp.Bytes(), want) {
		t.Errorf("response = % x, want % x", resp.Bytes(), want)
	}
}

// TestHandleFrameAPBulkRead exercises the bulk-read framing walkthrough:
// request 0x12 0x0C 0x04 0x00 (4 words).
func TestHandleFrameAPBulkRead(t *testing.T) {
	svc := newFakeService()
	svc.apValues[0x0C] = 0
	req := bytes.NewReader([]byte{CmdAPBulkRead, 0x0C, 0x04, 0x00})
	var resp bytes.Buffer
	_, err := HandleFrame(req, &resp, svc, nil)
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	out := resp.Bytes()
	if out[0] != StatusOK {
		t.Fatalf("status = 0x%02x, want StatusOK", out[0])
	}
	count := uint16(out[1]) | uint16(out[2])<<8
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
	if len(out) != 1+2+4*4 {
		t.Errorf("response length = %d, want %d", len(out), 1+2+4*4)
	}
}

func TestHandleFrameDisconnect(t *testing.T) {
	svc := newFakeService()
	req := bytes.NewReader([]byte{CmdDisconnect})
	var resp bytes.Buffer
	disconnect, err := HandleFrame(req, &resp, svc, nil)
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if !disconnect {
		t.Errorf("Disconnect command should signal disconnect=true")
	}
	if resp.Bytes()[0] != StatusOK {
		t.Errorf("disconnect should still reply with StatusOK")
	}
}

func TestHandleFrameBulkTooLarge(t *testing.T) {
	svc := newFakeService()
	count := uint16(MaxBulkWords + 1)
	req := bytes.NewReader([]byte{CmdAPBulkRead, 0x0C, byte(count), byte(count >> 8)})
	var resp bytes.Buffer
	_, err := HandleFrame(req, &resp, svc, nil)
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if resp.Bytes()[0] != errInvalidParam {
		t.Errorf("status = 0x%02x, want errInvalidParam (0x%02x)", resp.Bytes()[0], errInvalidParam)
	}
}

func TestHandleFrameOnCmdCallback(t *testing.T) {
	svc := newFakeService()
	req := bytes.NewReader([]byte{CmdPing})
	var resp bytes.Buffer
	var seen byte
	_, err := HandleFrame(req, &resp, svc, func(cmd byte) { seen = cmd })
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if seen != CmdPing {
		t.Errorf("onCmd saw 0x%02x, want CmdPing (0x%02x)", seen, CmdPing)
	}
}

func TestHandleFrameResetTargetError(t *testing.T) {
	svc := newFakeService()
	svc.resetErr = swd.NewError("simulated failure", swd.ErrorNotReady)
	req := bytes.NewReader([]byte{CmdResetTarget})
	var resp bytes.Buffer
	_, err := HandleFrame(req, &resp, svc, nil)
	if err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if resp.Bytes()[0] != errConnectionError {
		t.Errorf("status = 0x%02x, want errConnectionError (0x%02x)", resp.Bytes()[0], errConnectionError)
	}
}
