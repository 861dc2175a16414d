package dope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat16ToFloat32(t *testing.T) {

	// 1, -2, 0.5, 0 and 65504 (largest half)
	bits := []uint16{0x3c00, 0xc000, 0x3800, 0x0000, 0x7bff}

	assert.Equal(t, []float32{1, -2, 0.5, 0, 65504}, Float16ToFloat32(bits))
	assert.Empty(t, Float16ToFloat32(nil))
}
