package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"", 0, true},
		{"0", 0, true},
		{"1", 1_000_000, true},
		{"1.5", 1_500_000, true},
		{"1.50", 1_500_000, true},
		{"0.000001", 1, true},
		{"250000", 250_000_000_000, true},
		{"1.1234567", 1_123_456, true}, // extra precision truncated
		{"-1", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
		{".5", 500_000, true},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.in)
		assert.Equal(t, tt.ok, ok, "Parse(%q) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "Parse(%q)", tt.in)
		}
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.000000", Format(0))
	assert.Equal(t, "1.000000", Format(1_000_000))
	assert.Equal(t, "1.500000", Format(1_500_000))
	assert.Equal(t, "0.000001", Format(1))
	assert.Equal(t, "250000.000000", Format(250_000_000_000))
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []uint64{0, 1, 999_999, 1_000_000, 123_456_789} {
		got, ok := Parse(Format(amount))
		assert.True(t, ok)
		assert.Equal(t, amount, got)
	}
}
