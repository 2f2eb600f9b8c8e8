package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tp := NewTextProcessor(nil)

	got := tp.Normalize("Invoice #4411 DUE", "Billing <billing42@shop.example>", "Pay  by\n\tFriday 2026")
	assert.Equal(t, "invoice # due billing <billing@shop.example> pay by friday", got)
}

func TestNormalizeSkipsEmptyFields(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "hello world", tp.Normalize("", "  ", "Hello World"))
	assert.Equal(t, "", tp.Normalize("", "", ""))
}

func TestNormalizeIsStable(t *testing.T) {
	tp := NewTextProcessor(nil)

	a := tp.Normalize("Meeting at 10", "boss@work.example", "Agenda")
	b := tp.Normalize("Meeting at 10", "boss@work.example", "Agenda")
	assert.Equal(t, a, b)
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a \n\n b\t\tc  "))
}

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "abc", tp.TruncateText("abcdef", 3))

	// "é" is two bytes; cutting through it must not leave invalid UTF-8
	got := tp.TruncateText("aé", 2)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "a", got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", TruncateRunes("héllo", 4))
	assert.Equal(t, "héllo", TruncateRunes("héllo", 0))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "ok", tp.SanitizeUTF8("ok"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}
