package vr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDS(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{-1024, "-1024"},
		{0.7, "0.7"},
		{75.3, "75.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDS(tt.in))
	}
	assert.LessOrEqual(t, len(FormatDS(1.0/3.0)), 16)
	assert.LessOrEqual(t, len(FormatDS(-123456.789012345678)), 16)
	assert.Equal(t, "0.5\\1\\-2", FormatDSList([]float64{0.5, 1, -2}))
}

func TestPadByte(t *testing.T) {
	assert.Equal(t, byte(0), UI.PadByte())
	assert.Equal(t, byte(' '), CS.PadByte())
	assert.Equal(t, byte(0), OB.PadByte())
	assert.True(t, SQ.HasLongLength())
	assert.False(t, US.HasLongLength())
}
