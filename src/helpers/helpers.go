package helpers

import (
	"strconv"
	"strings"
)

// ParseCSVList splits a comma separated flag value, dropping blanks.
func ParseCSVList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// JoinNames renders names for log lines and prompts; "<none>" when empty.
func JoinNames(names []string) string {
	if len(names) == 0 {
		return "<none>"
	}
	return strings.Join(names, ", ")
}

// ParsePositiveInt parses raw as a positive integer, falling back to def.
func ParsePositiveInt(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
