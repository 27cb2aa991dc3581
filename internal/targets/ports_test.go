package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portsweep/internal/errors"
)

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []uint16
	}{
		{"list and range", "80,443,8000-8002", []uint16{80, 443, 8000, 8001, 8002}},
		{"out of bounds dropped", "0,22,65536", []uint16{22}},
		{"range clamped", "65530-70000", []uint16{65530, 65531, 65532, 65533, 65534, 65535}},
		{"range clamped at low end", "0-2", []uint16{1, 2}},
		{"sorted and deduplicated", "443,80,80,79-81", []uint16{79, 80, 81, 443}},
		{"reversed range skipped", "100-90,7", []uint16{7}},
		{"malformed tokens skipped", "abc,22,1-x,,x-5", []uint16{22}},
		{"open start reads as zero", "-5", []uint16{1, 2, 3, 4, 5}},
		{"open end is empty", "5-", nil},
		{"extra bounds ignored", "80-90-100", []uint16{80, 81, 82, 83, 84, 85, 86, 87, 88, 89, 90}},
		{"whitespace tolerated", " 22 , 25 - 26 ", []uint16{22, 25, 26}},
		{"nothing valid", "http,0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePorts(tt.spec)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePorts_FullRange(t *testing.T) {
	got := ParsePorts("1-65535")
	require.Len(t, got, 65535)
	assert.Equal(t, uint16(1), got[0])
	assert.Equal(t, uint16(65535), got[len(got)-1])
}

func TestValidatePorts(t *testing.T) {
	err := ValidatePorts("0", ParsePorts("0"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPortSpec))
	assert.Equal(t, errors.CodeInvalidPortSpec, errors.GetCode(err))

	assert.NoError(t, ValidatePorts("22", []uint16{22}))
}
