package phone

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"domestic ten digits", "5551234567", "+15551234567"},
		{"formatted domestic", "(555) 123-4567", "+15551234567"},
		{"with country code", "15551234567", "+15551234567"},
		{"e164", "+15551234567", "+15551234567"},
		{"stray characters", " +1 (555) 123.4567 ", "+15551234567"},
		{"international", "+44 20 7946 0958", "+442079460958"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "12345", "555123456", "25551234567", "+0123456789", "+1234567890123456", "abc"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidNumber, "input %q", in)
	}
}

func TestSet_OrderIndependent(t *testing.T) {
	a, err := Set("+15551234567", "+15559876543")
	require.NoError(t, err)
	b, err := Set("+15559876543", "555-123-4567", "+15559876543")
	require.NoError(t, err)

	assert.Equal(t, []string{"+15551234567", "+15559876543"}, a)
	assert.Equal(t, a, b)
}

func TestSet_InvalidMemberFails(t *testing.T) {
	_, err := Set("+15551234567", "911")
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("(555) 123-4567", "+15551234567"))
	assert.False(t, Equal("5551234567", "5559876543"))
	assert.False(t, Equal("bogus", "bogus"))
}
