package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"jane@example.com", true},
		{" jane.doe+shop@mail.example.co.in ", true},
		{"jane@example", false},
		{"jane example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidEmail(tt.email), tt.email)
	}
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Great lamp\nwould buy again", SanitizeText("  Great\x00 lamp\nwould buy\x07 again\r "))
	assert.Equal(t, "ok", SanitizeText("\x1bok"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "éé...", TruncateString("éééééééé", 5))
	assert.Equal(t, 3, RuneLen("héé"))
}
