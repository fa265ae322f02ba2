// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/gousb"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	log "github.com/sirupsen/logrus"

	"github.com/airfrog/airfrog/internal/config"
	"github.com/airfrog/airfrog/internal/gpio"
	"github.com/airfrog/airfrog/internal/gpio/sim"
	"github.com/airfrog/airfrog/internal/gpio/usbprobe"
	"github.com/airfrog/airfrog/internal/rest"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/airfrog/airfrog/internal/wire"
	"github.com/airfrog/airfrog/internal/xlog"
)

func main() {
	flagConfigFile := flag.String("config", "airfrog.json", "Path to the persisted configuration document")
	flagWirePort := flag.Int("wire-port", wire.DefaultPort, "TCP port for the binary wire protocol")
	flagHTTPAddr := flag.String("http-addr", ":8080", "Listen address for the REST/HTTP mirror")
	flagUSBVID := flag.Uint("usb-vid", 0, "USB vendor ID of a CMSIS-DAP-style adapter (0 = use the built-in simulator)")
	flagUSBPID := flag.Uint("usb-pid", 0, "USB product ID of a CMSIS-DAP-style adapter")
	flagVerbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	logger := log.New()
	logger.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp: true,
	})
	if *flagVerbose {
		logger.SetLevel(log.DebugLevel)
	}
	xlog.SetLogger(logger)

	xlog.Infof("airfrogd: starting up")

	cfg := config.Load(*flagConfigFile)
	var cfgMu sync.RWMutex

	getSWD := func() config.SWD {
		cfgMu.RLock()
		defer cfgMu.RUnlock()
		return cfg.SWD
	}
	setSWD := func(s config.SWD) {
		cfgMu.Lock()
		cfg.SWD = s
		snapshot := cfg
		cfgMu.Unlock()
		if err := config.Save(*flagConfigFile, snapshot); err != nil {
			xlog.Warnf("airfrogd: failed to persist config: %v", err)
		}
	}

	pins, err := openPinDriver(*flagUSBVID, *flagUSBPID)
	if err != nil {
		xlog.Errorf("airfrogd: failed to open pin driver: %v", err)
		os.Exit(1)
	}
	defer pins.Close()
	pins.SetSpeed(getSWD().Speed.HzFor())

	svc := target.NewService(pins)

	ctx, cancel := context.WithCancel(context.Background())
	sched := runtime.NewScheduler(ctx, svc, getSWD, setSWD)
	defer sched.Stop()

	wireLn, err := net.Listen("tcp", fmt.Sprintf(":%d", *flagWirePort))
	if err != nil {
		xlog.Errorf("airfrogd: failed to listen on wire port %d: %v", *flagWirePort, err)
		os.Exit(1)
	}
	go func() {
		if err := wire.Serve(ctx, wireLn, sched); err != nil {
			xlog.Errorf("airfrogd: wire server stopped: %v", err)
		}
	}()
	xlog.Infof("airfrogd: binary wire protocol listening on :%d", *flagWirePort)

	mux := rest.NewMux(sched)
	httpServer := &http.Server{Addr: *flagHTTPAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.Errorf("airfrogd: REST server stopped: %v", err)
		}
	}()
	xlog.Infof("airfrogd: REST mirror listening on %s", *flagHTTPAddr)

	waitForShutdownSignal()

	xlog.Infof("airfrogd: shutting down")
	cancel()
	_ = httpServer.Close()
	_ = wireLn.Close()
}

// openPinDriver opens a real USB adapter when vid/pid are given, and
// otherwise falls back to the in-process simulator, which is useful for
// development against this repo without attached hardware.
func openPinDriver(vid, pid uint) (gpio.Driver, error) {
	if vid == 0 && pid == 0 {
		xlog.Infof("airfrogd: no USB vid/pid given, using the built-in target simulator")
		return sim.NewDriver(sim.NewTarget()), nil
	}
	return usbprobe.Open(gousb.ID(vid), gousb.ID(pid))
}

func waitForShutdownSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}
