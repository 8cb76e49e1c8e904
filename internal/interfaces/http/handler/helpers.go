package handler

import (
	"strconv"
	"time"
)

// timeFormat is the wire format for timestamps in API responses
const timeFormat = time.RFC3339

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

// parseLimit parses a limit query value, falling back to def for missing or
// non-positive values.
func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
