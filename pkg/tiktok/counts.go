package tiktok

import (
	"encoding/json"
	"strconv"
	"strings"
)

// parseCount normalizes a count value from the rehydration JSON. Counts
// usually arrive as numbers but sometimes as strings, occasionally in
// abbreviated form ("1.2M").
func parseCount(v any) int64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0
		}
		return i
	case string:
		return parseAbbreviated(n)
	default:
		return 0
	}
}

// parseAbbreviated parses "1234", "1,234", "1.2K", "3.4M", "1.1B".
func parseAbbreviated(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		multiplier = 1e3
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		multiplier = 1e6
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "B"), strings.HasSuffix(s, "b"):
		multiplier = 1e9
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f * multiplier)
}
