// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package rest implements the REST/HTTP JSON mirror (§6.2) of the Target
// Service, routed with goji.io the way mongoose-os-mos routes its
// fwbuild manager API.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	goji "goji.io"
	"goji.io/pat"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/arm"
	"github.com/airfrog/airfrog/internal/mcu"
	"github.com/airfrog/airfrog/internal/swd"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/airfrog/airfrog/internal/xlog"
)

// MaxBulkWords is the REST mirror's own bulk bound, per §6.2.
const MaxBulkWords = 4096

// TargetService is the subset of target.Service the REST handlers need.
type TargetService interface {
	Status() target.Status
	Details() (mcu.Descriptor, error)
	ResetTarget() error
	MemoryRead(addr uint32) (uint32, error)
	MemoryWrite(addr uint32, v uint32) error
	MemoryReadBulk(addr uint32, n int) ([]uint32, error)
	MemoryWriteBulk(addr uint32, words []uint32) error
	ReadErrors() (arm.CtrlStat, error)
	ClearErrors() error
	SetSpeed(s swd.Speed)
	FlashUnlock() error
	FlashLock() error
	FlashEraseSector(sector uint8) error
	FlashEraseAll() error
	FlashProgramWord(addr uint32, v uint32) error
	FlashProgramBulk(addr uint32, words []uint32) error
}

// NewMux builds the goji.io router mounting every route in §6.2's table.
func NewMux(svc TargetService) *goji.Mux {
	mux := goji.NewMux()
	mux.Use(loggingMiddleware)

	mux.HandleFunc(pat.Get("/api/v1/status"), handleStatus(svc))
	mux.HandleFunc(pat.Get("/api/v1/details"), handleDetails(svc))
	mux.HandleFunc(pat.Post("/api/v1/reset"), handleReset(svc))
	mux.HandleFunc(pat.Get("/api/v1/mem/:addr"), handleMemRead(svc))
	mux.HandleFunc(pat.Put("/api/v1/mem/:addr"), handleMemWrite(svc))
	mux.HandleFunc(pat.Get("/api/v1/mem/:addr/bulk/:count"), handleMemReadBulk(svc))
	mux.HandleFunc(pat.Put("/api/v1/mem/:addr/bulk"), handleMemWriteBulk(svc))
	mux.HandleFunc(pat.Get("/api/v1/errors"), handleErrorsRead(svc))
	mux.HandleFunc(pat.Post("/api/v1/errors/clear"), handleErrorsClear(svc))
	mux.HandleFunc(pat.Post("/api/v1/speed/:speed"), handleSetSpeed(svc))
	mux.HandleFunc(pat.Post("/api/v1/flash/unlock"), handleFlashUnlock(svc))
	mux.HandleFunc(pat.Post("/api/v1/flash/lock"), handleFlashLock(svc))
	mux.HandleFunc(pat.Post("/api/v1/flash/erase/:sector"), handleFlashEraseSector(svc))
	mux.HandleFunc(pat.Post("/api/v1/flash/erase-all"), handleFlashEraseAll(svc))
	mux.HandleFunc(pat.Put("/api/v1/flash/:addr"), handleFlashProgramWord(svc))
	mux.HandleFunc(pat.Put("/api/v1/flash/:addr/bulk"), handleFlashProgramBulk(svc))

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xlog.Debugf("rest: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	if ae, ok := apierr.As(err); ok {
		status = ae.Code.HTTPStatus()
	} else if _, ok := swd.AsError(err); ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseHexWord parses a "0x..." hex string into a uint32, per §6.2's
// "addresses and words are hex strings" rule.
func parseHexWord(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, apierr.New("malformed hex value: "+s, apierr.BadRequest)
	}
	return uint32(v), nil
}

func hexWord(v uint32) string {
	return "0x" + strconv.FormatUint(uint64(v), 16)
}

// decodeJSONBody decodes a JSON request body strictly: unknown fields are
// rejected as InvalidBody, per §9's "unknown REST fields rejected" rule.
func decodeJSONBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierr.New("malformed request body", apierr.InvalidBody)
	}
	return nil
}

type bulkWordsBody struct {
	Words []string `json:"words"`
}

func decodeBulkWords(r *http.Request) ([]uint32, error) {
	var body bulkWordsBody
	if err := decodeJSONBody(r, &body); err != nil {
		return nil, err
	}
	if len(body.Words) > MaxBulkWords {
		return nil, apierr.New("too many words in bulk body", apierr.TooLarge)
	}
	out := make([]uint32, len(body.Words))
	for i, s := range body.Words {
		v, err := parseHexWord(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func encodeBulkWords(words []uint32) bulkWordsBody {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = hexWord(w)
	}
	return bulkWordsBody{Words: out}
}
