// FILE: crashwatch/src/internal/device/stats.go
package device

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"crashwatch/src/internal/core"
)

// MaxStatsBody caps how much of a response body is inspected for device figures
const MaxStatsBody = 64 * 1024

var (
	freeHeapKeys = []string{"free_heap", "freeHeap", "heap_free"}
	uptimeKeys   = []string{"uptime_seconds", "uptime", "uptime_s"}
)

// ParseStats extracts optional figures from a JSON body. Absent, malformed or
// oversized bodies yield nil; absence is not an error.
func ParseStats(body []byte) *core.DeviceStats {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || len(body) > MaxStatsBody || body[0] != '{' {
		return nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil
	}

	stats := &core.DeviceStats{
		FreeHeap:      findInt(top, freeHeapKeys),
		UptimeSeconds: findInt(top, uptimeKeys),
	}

	// Some firmwares group figures one level down, e.g. {"memory": {"free_heap": ...}}
	if stats.FreeHeap == nil || stats.UptimeSeconds == nil {
		for _, raw := range top {
			var nested map[string]json.RawMessage
			if json.Unmarshal(raw, &nested) != nil {
				continue
			}
			if stats.FreeHeap == nil {
				stats.FreeHeap = findInt(nested, freeHeapKeys)
			}
			if stats.UptimeSeconds == nil {
				stats.UptimeSeconds = findInt(nested, uptimeKeys)
			}
		}
	}

	if stats.Empty() {
		return nil
	}
	return stats
}

func findInt(fields map[string]json.RawMessage, keys []string) *int64 {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		if v, ok := toInt(raw); ok {
			return &v
		}
	}
	return nil
}

func toInt(raw json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		n = json.Number(s)
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
