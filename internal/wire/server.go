// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package wire

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/boljen/go-bitmap"

	"github.com/airfrog/airfrog/internal/xlog"
)

// DefaultPort is the binary protocol's default TCP port, per §6.1.
const DefaultPort = 4146

// ErrVersionMismatch is returned by the handshake when the client echoes
// back a version byte other than ProtocolVersion.
var ErrVersionMismatch = errors.New("wire: protocol version mismatch")

// Serve accepts connections on ln until ctx is canceled, handling each on
// its own goroutine. It blocks until ln.Accept fails (typically because
// ctx cancellation closed ln).
func Serve(ctx context.Context, ln net.Listener, svc TargetService) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			if err := handleConn(ctx, conn, svc); err != nil && ctx.Err() == nil {
				xlog.Debugf("wire: connection %s closed: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, svc TargetService) error {
	defer conn.Close()

	if err := handshake(conn); err != nil {
		return err
	}

	r := bufio.NewReader(conn)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// seenOpcodes repurposes the teacher's opened_ap bitmap idiom
	// (accessport.go) from "which AP index has been opened" to "which of
	// the 256 possible command bytes has this connection issued", purely
	// for the request-ordering diagnostics logged on disconnect.
	seenOpcodes := bitmap.New(256)
	onCmd := func(cmd byte) { seenOpcodes.Set(int(cmd), true) }

	for {
		disconnect, err := HandleFrame(r, conn, svc, onCmd)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if disconnect {
			count := 0
			for i := 0; i < 256; i++ {
				if seenOpcodes.Get(i) {
					count++
				}
			}
			xlog.Debugf("wire: connection %s issued %d distinct opcode(s)", conn.RemoteAddr(), count)
			return nil
		}
	}
}

// handshake sends ProtocolVersion and expects it echoed back, per §6.1.
func handshake(conn net.Conn) error {
	if _, err := conn.Write([]byte{ProtocolVersion}); err != nil {
		return err
	}
	var echoed [1]byte
	if _, err := io.ReadFull(conn, echoed[:]); err != nil {
		return err
	}
	if echoed[0] != ProtocolVersion {
		return ErrVersionMismatch
	}
	return nil
}
