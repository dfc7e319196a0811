package repository

import "strings"

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func toLowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
