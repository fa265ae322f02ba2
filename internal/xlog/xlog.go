// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package xlog is the shared logging sink for every airfrog package. It
// mirrors gostlink's logger.go: a package-level *logrus.Logger defaulted
// in init(), overridable at process startup by the binary wiring a
// formatter of its choice.
package xlog

import (
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
}

// SetLogger replaces the shared logger instance. Call once at process
// startup, before any other package logs.
func SetLogger(l *logrus.Logger) {
	log = l
}

// Log returns the shared logger for packages that need a *logrus.Logger
// directly (e.g. to build an Entry with fields).
func Log() *logrus.Logger {
	return log
}

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
