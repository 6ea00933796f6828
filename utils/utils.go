// Package utils provides utility functions for the application.
package utils

import (
	"strings"
	"unicode/utf8"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// NormalizeAddress lowercases and trims an email address for comparisons
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Truncate cuts s to at most n bytes without splitting a multi-byte rune
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
