package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		name     string
		ms       int64
		expected string
	}{
		{name: "zero", ms: 0, expected: "00:00"},
		{name: "just under a minute", ms: 59999, expected: "00:59"},
		{name: "one minute", ms: 60000, expected: "01:00"},
		{name: "over an hour", ms: 3661000, expected: "61:01"},
		{name: "sub second", ms: 999, expected: "00:00"},
		{name: "negative", ms: -5000, expected: "00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatMillis(tt.ms))
		})
	}
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "00:30 / 02:00", FormatProgress(30000, 120000))
}
