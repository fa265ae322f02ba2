// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package wire implements the binary wire protocol (§6.1): a fixed-frame,
// little-endian TCP protocol with no length prefix, exposing the Target
// Service to connected clients one frame at a time.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/dap"
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/swd"
)

// ProtocolVersion is the single byte exchanged during the connection
// handshake before any command is read.
const ProtocolVersion byte = 0x01

// Command codes, per §6.1's request table.
const (
	CmdDPRead       byte = 0x00
	CmdDPWrite      byte = 0x01
	CmdAPRead       byte = 0x02
	CmdAPWrite      byte = 0x03
	CmdAPBulkRead   byte = 0x12
	CmdAPBulkWrite  byte = 0x13
	CmdMultiWrite   byte = 0x14
	CmdPing         byte = 0xF0
	CmdResetTarget  byte = 0xF1
	CmdClock        byte = 0xF2
	CmdSetSpeed     byte = 0xF3
	CmdDisconnect   byte = 0xFF
)

// Response status bytes, per §6.1.
const (
	StatusOK byte = 0x00

	errInvalidCommand  byte = 0x81
	errRegisterOrSWD   byte = 0x82
	errTimeout         byte = 0x83
	errConnectionError byte = 0x84
	errInvalidParam    byte = 0x85
)

// MaxBulkWords is the binary protocol's own bulk bound, per §6.1: stricter
// than the Target Service's generic ceiling.
const MaxBulkWords = 256

// apIndex0 is the implicit AP index every binary-protocol AP operation
// targets, per §6.1.
const apIndex0 = 0

// statusFor maps an error returned by the target service into the
// binary protocol's error status byte.
func statusFor(err error) byte {
	if err == nil {
		return StatusOK
	}
	if ae, ok := apierr.As(err); ok {
		switch ae.Code {
		case apierr.TooLarge:
			return errInvalidParam
		case apierr.Timeout:
			return errTimeout
		case apierr.InvalidPath, apierr.InvalidMethod:
			return errInvalidCommand
		case apierr.BadRequest, apierr.InvalidBody:
			return errInvalidParam
		default:
			return errConnectionError
		}
	}
	if e, ok := swd.AsError(err); ok {
		if e.Code == swd.ErrorNotReady {
			return errConnectionError
		}
		return errRegisterOrSWD
	}
	return errConnectionError
}

// readByte/readU16/readU32 read little-endian request payload fields. All
// frames are fixed-length per the command table, so a short read is
// always a connection error.
func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// TargetService is the subset of target.Service the wire handler needs.
// Declared narrowly so this package doesn't import target directly,
// matching the pack's narrow-capability-interface idiom.
type TargetService interface {
	RawDPRead(reg uint8) (uint32, error)
	RawDPWrite(reg uint8, v uint32) error
	RawAPRead(apIndex, reg uint8) (uint32, error)
	RawAPWrite(apIndex, reg uint8, v uint32) error
	RawAPBulkRead(apIndex, reg uint8, n int) ([]uint32, error)
	RawAPBulkWrite(apIndex, reg uint8, words []uint32) error
	RawMultiWrite(ops []dap.WriteOp) error
	RawClock(level gpio.Level, cycles int)
	SetSpeed(s swd.Speed)
	ResetTarget() error
}

// binarySpeedOrder maps the binary protocol's speed byte (0=Turbo..3=Slow)
// to swd.Speed, per §6.1 — the inverse ordering from swd.Speed's own
// iota (which runs Slow..Turbo).
var binarySpeedOrder = [4]swd.Speed{swd.SpeedTurbo, swd.SpeedFast, swd.SpeedMedium, swd.SpeedSlow}

func gpioLevelFromNibble(n byte) gpio.Level {
	switch n {
	case 0:
		return gpio.Low
	case 1:
		return gpio.High
	default:
		return gpio.Input
	}
}

// HandleFrame reads one command frame from r and writes its response to
// w. It returns (true, nil) when the command was Disconnect and the
// caller should close the connection after the reply is flushed. onCmd,
// if non-nil, is invoked with the command byte once it has been read,
// before the frame's payload — callers use this to track which opcodes a
// connection has exercised.
func HandleFrame(r io.Reader, w io.Writer, svc TargetService, onCmd func(byte)) (disconnect bool, err error) {
	cmd, err := readByte(r)
	if err != nil {
		return false, err
	}
	if onCmd != nil {
		onCmd(cmd)
	}

	switch cmd {
	case CmdDPRead:
		reg, err := readByte(r)
		if err != nil {
			return false, err
		}
		v, svcErr := svc.RawDPRead(reg)
		return false, writeWordResponse(w, v, svcErr)

	case CmdDPWrite:
		reg, err := readByte(r)
		if err != nil {
			return false, err
		}
		data, err := readU32(r)
		if err != nil {
			return false, err
		}
		return false, writeStatus(w, svc.RawDPWrite(reg, data))

	case CmdAPRead:
		reg, err := readByte(r)
		if err != nil {
			return false, err
		}
		v, svcErr := svc.RawAPRead(apIndex0, reg)
		return false, writeWordResponse(w, v, svcErr)

	case CmdAPWrite:
		reg, err := readByte(r)
		if err != nil {
			return false, err
		}
		data, err := readU32(r)
		if err != nil {
			return false, err
		}
		return false, writeStatus(w, svc.RawAPWrite(apIndex0, reg, data))

	case CmdAPBulkRead:
		reg, err := readByte(r)
		if err != nil {
			return false, err
		}
		count, err := readU16(r)
		if err != nil {
			return false, err
		}
		return false, handleAPBulkRead(w, svc, reg, count)

	case CmdAPBulkWrite:
		reg, err := readByte(r)
		if err != nil {
			return false, err
		}
		count, err := readU16(r)
		if err != nil {
			return false, err
		}
		return false, handleAPBulkWrite(r, w, svc, reg, count)

	case CmdMultiWrite:
		return false, handleMultiWrite(r, w, svc)

	case CmdPing:
		return false, writeStatus(w, nil)

	case CmdResetTarget:
		return false, writeStatus(w, svc.ResetTarget())

	case CmdClock:
		packed, err := readByte(r)
		if err != nil {
			return false, err
		}
		cycles, err := readU16(r)
		if err != nil {
			return false, err
		}
		svc.RawClock(gpioLevelFromNibble(packed&0x0F), int(cycles))
		return false, writeStatus(w, nil)

	case CmdSetSpeed:
		speedByte, err := readByte(r)
		if err != nil {
			return false, err
		}
		if int(speedByte) >= len(binarySpeedOrder) {
			return false, writeStatus(w, apierr.New("invalid speed code", apierr.BadRequest))
		}
		svc.SetSpeed(binarySpeedOrder[speedByte])
		return false, writeStatus(w, nil)

	case CmdDisconnect:
		if err := writeStatus(w, nil); err != nil {
			return true, err
		}
		return true, nil

	default:
		return false, writeStatus(w, apierr.New("unknown command", apierr.InvalidPath))
	}
}

func writeStatus(w io.Writer, err error) error {
	_, werr := w.Write([]byte{statusFor(err)})
	if werr != nil {
		return werr
	}
	return nil
}

func writeWordResponse(w io.Writer, v uint32, svcErr error) error {
	if err := writeStatus(w, svcErr); err != nil {
		return err
	}
	if svcErr != nil {
		return nil
	}
	return writeU32(w, v)
}

func handleAPBulkRead(w io.Writer, svc TargetService, reg byte, count uint16) error {
	if int(count) > MaxBulkWords {
		return writeStatus(w, apierr.New("bulk count exceeds binary protocol limit", apierr.TooLarge))
	}
	words, err := svc.RawAPBulkRead(apIndex0, reg, int(count))
	if err != nil {
		if werr := writeStatus(w, err); werr != nil {
			return werr
		}
		return writeU16(w, 0)
	}
	if err := writeStatus(w, nil); err != nil {
		return err
	}
	if err := writeU16(w, count); err != nil {
		return err
	}
	for _, word := range words {
		if err := writeU32(w, word); err != nil {
			return err
		}
	}
	return nil
}

func handleAPBulkWrite(r io.Reader, w io.Writer, svc TargetService, reg byte, count uint16) error {
	if int(count) > MaxBulkWords {
		// Still drain the fixed-length payload the client is about to
		// send, so the connection stays framed for the next command.
		for i := uint16(0); i < count; i++ {
			if _, err := readU32(r); err != nil {
				return err
			}
		}
		return writeStatus(w, apierr.New("bulk count exceeds binary protocol limit", apierr.TooLarge))
	}
	words := make([]uint32, count)
	for i := range words {
		v, err := readU32(r)
		if err != nil {
			return err
		}
		words[i] = v
	}
	return writeStatus(w, svc.RawAPBulkWrite(apIndex0, reg, words))
}

func handleMultiWrite(r io.Reader, w io.Writer, svc TargetService) error {
	count, err := readU16(r)
	if err != nil {
		return err
	}
	ops := make([]dap.WriteOp, count)
	for i := range ops {
		apDP, err := readByte(r)
		if err != nil {
			return err
		}
		reg, err := readByte(r)
		if err != nil {
			return err
		}
		data, err := readU32(r)
		if err != nil {
			return err
		}
		port := swd.DP
		if apDP != 0 {
			port = swd.AP
		}
		ops[i] = dap.WriteOp{Port: port, Reg: reg, Data: data, APIndex: apIndex0}
	}
	return writeStatus(w, svc.RawMultiWrite(ops))
}
