package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Run("ShortStringUnchanged", func(t *testing.T) {
		assert.Equal(t, "hello", Truncate("hello", 10))
	})

	t.Run("CutsASCII", func(t *testing.T) {
		assert.Equal(t, "hel", Truncate("hello", 3))
	})

	t.Run("NonPositiveLimit", func(t *testing.T) {
		assert.Equal(t, "", Truncate("hello", 0))
		assert.Equal(t, "", Truncate("hello", -1))
	})

	t.Run("BacksOffToRuneBoundary", func(t *testing.T) {
		// "é" is two bytes and straddles the limit
		s := strings.Repeat("a", 999) + "é" + "tail"
		out := Truncate(s, 1000)
		assert.True(t, utf8.ValidString(out))
		assert.Equal(t, strings.Repeat("a", 999), out)
	})

	t.Run("FourByteRunes", func(t *testing.T) {
		s := strings.Repeat("😀", 10)
		for n := 1; n < len(s); n++ {
			out := Truncate(s, n)
			assert.True(t, utf8.ValidString(out), "limit %d", n)
			assert.LessOrEqual(t, len(out), n)
			assert.Equal(t, n/4*4, len(out))
		}
	})
}
