// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package config holds Airfrog's persisted and runtime configuration: a
// flat, versioned, checksummed JSON document with compiled-in defaults,
// per §6.3 and §9. There is no reflection-based dynamic config — every
// field is a plain named struct field, bound by `encoding/json`.
package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/swd"
	"github.com/airfrog/airfrog/internal/xlog"
)

// schemaVersion is bumped whenever the persisted document's field set
// changes in an incompatible way.
const schemaVersion = 1

// SWD holds the runtime SWD settings persisted across restarts.
type SWD struct {
	Speed          swd.Speed `json:"speed"`
	AutoConnect    bool      `json:"auto_connect"`
	KeepaliveHz    float64   `json:"keepalive_hz"`
	RefreshSeconds int       `json:"refresh_seconds"`
}

// Network holds the persisted network settings (AP and STA credentials,
// static IPv4 or DHCP, gateway/DNS/NTP), per §11.
type Network struct {
	APSSID      string `json:"ap_ssid"`
	APPassword  string `json:"ap_password"`
	STASSID     string `json:"sta_ssid,omitempty"`
	STAPassword string `json:"sta_password,omitempty"`
	UseDHCP     bool   `json:"use_dhcp"`
	StaticIPv4  string `json:"static_ipv4,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
	DNS         string `json:"dns,omitempty"`
	NTPServer   string `json:"ntp_server,omitempty"`
}

// Config is the full persisted document.
type Config struct {
	Version int     `json:"version"`
	SWD     SWD     `json:"swd"`
	Network Network `json:"network"`
}

// Default returns the compiled-in default configuration.
func Default() Config {
	return Config{
		Version: schemaVersion,
		SWD: SWD{
			Speed:          swd.SpeedMedium,
			AutoConnect:    true,
			KeepaliveHz:    1.0,
			RefreshSeconds: 5,
		},
		Network: Network{
			APSSID:     "airfrog",
			APPassword: "airfrogdebug",
			UseDHCP:    true,
		},
	}
}

// document is the on-disk envelope: the config payload plus a checksum
// over its canonical JSON encoding, so a truncated or corrupted write is
// detected rather than silently partially applied.
type document struct {
	Config   Config `json:"config"`
	Checksum string `json:"checksum"`
}

func checksum(c Config) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}

// Load reads the persisted document at path. A missing file, a
// malformed document, or a checksum mismatch all fall back to Default(),
// per §6.3 — corruption is logged, never fatal.
func Load(path string) Config {
	b, err := os.ReadFile(path)
	if err != nil {
		xlog.Infof("config: %s not found, using defaults", path)
		return Default()
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		xlog.Warnf("config: %s is malformed, using defaults: %v", path, err)
		return Default()
	}

	want, err := checksum(doc.Config)
	if err != nil || want != doc.Checksum {
		xlog.Warnf("config: %s failed checksum verification, using defaults", path)
		return Default()
	}

	if doc.Config.Version != schemaVersion {
		xlog.Warnf("config: %s has schema version %d, want %d, using defaults", path, doc.Config.Version, schemaVersion)
		return Default()
	}

	return doc.Config
}

// Save writes c to path as a checksummed document.
func Save(path string, c Config) error {
	sum, err := checksum(c)
	if err != nil {
		return apierr.New("failed to compute config checksum", apierr.InternalServerError)
	}
	doc := document{Config: c, Checksum: sum}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apierr.New("failed to encode config", apierr.InternalServerError)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return apierr.New("failed to write config file", apierr.InternalServerError)
	}
	return nil
}
