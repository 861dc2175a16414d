package dope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformCoreMask(t *testing.T) {

	tests := []struct {
		platform string
		ct       CoreType
		want     uintptr
	}{
		{"rk3588", FastCores, CPUCoreMask([]int{4, 5, 6, 7})},
		{"RK3588", SlowCores, CPUCoreMask([]int{0, 1, 2, 3})},
		{"rk3582", FastCores, CPUCoreMask([]int{4, 5})},
		{" rk3568 ", FastCores, CPUCoreMask([]int{0, 1, 2, 3})},
		{"rk3576", AllCores, CPUCoreMask([]int{0, 1, 2, 3, 4, 5, 6, 7})},
	}

	for _, tc := range tests {
		mask, err := PlatformCoreMask(tc.platform, tc.ct)
		require.NoError(t, err, tc.platform)
		assert.Equal(t, tc.want, mask, tc.platform)
	}

	_, err := PlatformCoreMask("rk3399", FastCores)
	assert.Error(t, err)

	_, err = PlatformCoreMask("rk3588", CoreType(7))
	assert.Error(t, err)
}

func TestParseMasks(t *testing.T) {

	ct, err := ParseCoreType("slow")
	require.NoError(t, err)
	assert.Equal(t, SlowCores, ct)

	ct, err = ParseCoreType("")
	require.NoError(t, err)
	assert.Equal(t, FastCores, ct)

	_, err = ParseCoreType("medium")
	assert.Error(t, err)

	core, err := ParseCoreMask("012")
	require.NoError(t, err)
	assert.Equal(t, NPUCore012, core)

	_, err = ParseCoreMask("3")
	assert.Error(t, err)
}
