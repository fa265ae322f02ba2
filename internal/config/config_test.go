// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/airfrog/airfrog/internal/swd"
)

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	got := Load(path)
	if got != Default() {
		t.Errorf("Load(missing) = %+v, want Default()", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airfrog.json")
	c := Default()
	c.SWD.Speed = swd.SpeedTurbo
	c.SWD.AutoConnect = false
	c.Network.APSSID = "custom-ssid"

	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := Load(path)
	if got != c {
		t.Errorf("Load after Save = %+v, want %+v", got, c)
	}
}

func TestLoadMalformedJSONFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airfrog.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got := Load(path)
	if got != Default() {
		t.Errorf("Load(malformed) = %+v, want Default()", got)
	}
}

func TestLoadChecksumMismatchFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airfrog.json")
	c := Default()
	c.SWD.Speed = swd.SpeedFast
	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte of the config payload (the first 'f', which falls in the
	// "config" key, since the speed is stored as a number) without touching
	// the checksum field, so Load must detect the mismatch rather than
	// trust the file.
	corrupted := []byte(string(b))
	for i, ch := range corrupted {
		if ch == 'f' { // first occurrence, inside "config"
			corrupted[i] = 'x'
			break
		}
	}
	if err := os.WriteFile(path, corrupted, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := Load(path)
	if got != Default() {
		t.Errorf("Load(corrupted) = %+v, want Default()", got)
	}
}

func TestLoadVersionMismatchFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airfrog.json")
	c := Default()
	c.Version = schemaVersion + 1
	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := Load(path)
	if got != Default() {
		t.Errorf("Load(future version) = %+v, want Default()", got)
	}
}
