// Copyright 2026 The Airfrog Authors. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package rest

import (
	"net/http"
	"strconv"

	"goji.io/pat"

	"github.com/airfrog/airfrog/internal/apierr"
	"github.com/airfrog/airfrog/internal/swd"
)

type statusResponse struct {
	Connected bool   `json:"connected"`
	IDCode    string `json:"idcode"`
	MCULine   string `json:"mcu_line"`
}

func handleStatus(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := svc.Status()
		writeJSON(w, http.StatusOK, statusResponse{
			Connected: st.Connected,
			IDCode:    hexWord(st.IDCode),
			MCULine:   st.MCULine,
		})
	}
}

func handleDetails(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Details()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"idcode":        hexWord(d.IDCode),
			"mcu_family":    d.MCUFamily.String(),
			"mcu_line":      d.MCULine,
			"device_id":     strconv.FormatUint(uint64(d.DeviceID), 16),
			"revision":      strconv.FormatUint(uint64(d.Revision), 16),
			"mem_ap_idr":    hexWord(d.MemAPIDR),
			"flash_size_kb": d.FlashSizeKB,
			"unique_id":     d.UniqueID,
		})
	}
}

func handleReset(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ResetTarget(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func pathAddr(r *http.Request) (uint32, error) {
	return parseHexWord(pat.Param(r, "addr"))
}

func handleMemRead(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := pathAddr(r)
		if err != nil {
			writeError(w, err)
			return
		}
		v, err := svc.MemoryRead(addr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"value": hexWord(v)})
	}
}

type wordBody struct {
	Value string `json:"value"`
}

func handleMemWrite(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := pathAddr(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body wordBody
		if err := decodeJSONBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		v, err := parseHexWord(body.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.MemoryWrite(addr, v); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleMemReadBulk(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := pathAddr(r)
		if err != nil {
			writeError(w, err)
			return
		}
		count, err := strconv.Atoi(pat.Param(r, "count"))
		if err != nil {
			writeError(w, apierr.New("malformed count", apierr.BadRequest))
			return
		}
		words, err := svc.MemoryReadBulk(addr, count)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, encodeBulkWords(words))
	}
}

func handleMemWriteBulk(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := pathAddr(r)
		if err != nil {
			writeError(w, err)
			return
		}
		words, err := decodeBulkWords(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.MemoryWriteBulk(addr, words); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleErrorsRead(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := svc.ReadErrors()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sticky_err":  cs.StickyErr(),
			"sticky_cmp":  cs.StickyCmp(),
			"wdata_err":   cs.WDataErr(),
			"orun_err":    cs.OrunErr(),
			"ctrl_stat":   hexWord(uint32(cs)),
		})
	}
}

func handleErrorsClear(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearErrors(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

var speedByName = map[string]swd.Speed{
	"slow":   swd.SpeedSlow,
	"medium": swd.SpeedMedium,
	"fast":   swd.SpeedFast,
	"turbo":  swd.SpeedTurbo,
}

func handleSetSpeed(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pat.Param(r, "speed")
		s, ok := speedByName[name]
		if !ok {
			writeError(w, apierr.New("unknown speed: "+name, apierr.BadRequest))
			return
		}
		svc.SetSpeed(s)
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleFlashUnlock(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.FlashUnlock(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleFlashLock(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.FlashLock(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleFlashEraseSector(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sector, err := strconv.Atoi(pat.Param(r, "sector"))
		if err != nil || sector < 0 || sector > 255 {
			writeError(w, apierr.New("malformed sector", apierr.BadRequest))
			return
		}
		if err := svc.FlashEraseSector(uint8(sector)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleFlashEraseAll(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.FlashEraseAll(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleFlashProgramWord(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := pathAddr(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body wordBody
		if err := decodeJSONBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
		v, err := parseHexWord(body.Value)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.FlashProgramWord(addr, v); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}

func handleFlashProgramBulk(svc TargetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := pathAddr(r)
		if err != nil {
			writeError(w, err)
			return
		}
		words, err := decodeBulkWords(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := svc.FlashProgramBulk(addr, words); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nil)
	}
}
