// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package usbprobe implements gpio.Driver atop a generic CMSIS-DAP-style
// USB bulk debug adapter, using google/gousb the way the teacher's
// usb.go drives an ST-Link: a *gousb.Context owned by each Driver, the
// adapter opened by vendor/product ID via OpenDeviceWithVIDPID, and plain
// bulk Read/Write calls on the claimed interface's endpoints.
package usbprobe

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gousb"

	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/xlog"
)

// Command bytes for the bit-bang SWD sub-protocol this package speaks to
// the adapter firmware: a single bulk-OUT packet describes a batch of
// pin operations, and a single bulk-IN packet returns sampled bits.
const (
	opSetOut    = 0x01 // level:1
	opSetIn     = 0x02
	opSample    = 0x03
	opClock     = 0x04
	opShiftOut  = 0x05 // n:1, bits:8 (LSB-first, right-aligned)
	opShiftIn   = 0x06 // n:1
	opClockIdle = 0x07 // n:2, level:1
	opSetSpeed  = 0x08 // rateHz:4
	opFlush     = 0xFF
)

const maxPacket = 64

// Driver drives a physically attached adapter over USB bulk transfers.
type Driver struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint
	outBuf []byte
}

// Open scans for a device matching vid/pid, claims configuration 1 and
// its default interface (0, 0) — exactly the "no request required
// configuration and matching usb interface" sequence the teacher's
// stlink.go runs against an ST-Link — and returns a Driver ready to
// drive SWD over it.
func Open(vid, pid gousb.ID) (*Driver, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usbprobe: open device %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usbprobe: no device matching %04x:%04x", vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		xlog.Warnf("usbprobe: SetAutoDetach failed (continuing): %v", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbprobe: claim config: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbprobe: claim interface: %w", err)
	}

	out, err := intf.OutEndpoint(1)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbprobe: out endpoint: %w", err)
	}
	in, err := intf.InEndpoint(1)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbprobe: in endpoint: %w", err)
	}

	xlog.Infof("usbprobe: opened adapter %04x:%04x", vid, pid)
	return &Driver{ctx: ctx, dev: dev, cfg: cfg, intf: intf, out: out, in: in}, nil
}

func (d *Driver) queue(b ...byte) {
	d.outBuf = append(d.outBuf, b...)
	if len(d.outBuf) >= maxPacket-8 {
		d.flush()
	}
}

func (d *Driver) flush() {
	if len(d.outBuf) == 0 {
		return
	}
	if _, err := d.out.Write(d.outBuf); err != nil {
		xlog.Errorf("usbprobe: bulk write failed: %v", err)
	}
	d.outBuf = d.outBuf[:0]
}

func (d *Driver) roundTrip(resp []byte) {
	d.queue(opFlush)
	d.flush()
	if _, err := d.in.Read(resp); err != nil {
		xlog.Errorf("usbprobe: bulk read failed: %v", err)
	}
}

func (d *Driver) SetSWDIOOut(level gpio.Level) {
	d.queue(opSetOut, byte(level))
}

func (d *Driver) SetSWDIOIn() {
	d.queue(opSetIn)
}

func (d *Driver) SampleSWDIO() bool {
	d.queue(opSample)
	var resp [1]byte
	d.roundTrip(resp[:])
	return resp[0] != 0
}

func (d *Driver) ClockPulse() {
	d.queue(opClock)
}

func (d *Driver) ShiftOut(bits uint64, n int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], bits)
	d.queue(opShiftOut, byte(n))
	d.queue(b[:]...)
}

func (d *Driver) ShiftIn(n int) uint64 {
	d.queue(opShiftIn, byte(n))
	var resp [8]byte
	d.roundTrip(resp[:])
	return binary.LittleEndian.Uint64(resp[:])
}

func (d *Driver) ClockIdle(n int, level gpio.Level) {
	var nb [2]byte
	binary.LittleEndian.PutUint16(nb[:], uint16(n))
	d.queue(opClockIdle)
	d.queue(nb[:]...)
	d.queue(byte(level))
}

func (d *Driver) SetSpeed(rateHz uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], rateHz)
	d.queue(opSetSpeed)
	d.queue(b[:]...)
	d.flush()
}

func (d *Driver) Close() error {
	d.flush()
	d.intf.Close()
	d.cfg.Close()
	if err := d.dev.Close(); err != nil {
		d.ctx.Close()
		return err
	}
	d.ctx.Close()
	return nil
}
