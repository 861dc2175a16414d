package dope

import (
	"fmt"
	"strings"
	"syscall"
	"unsafe"
)

// CoreType selects a cluster of CPU cores on big.LITTLE platforms
type CoreType int

const (
	FastCores CoreType = 0
	SlowCores CoreType = 1
	AllCores  CoreType = 2
)

// ParseCoreType converts "fast", "slow" or "all" into a CoreType
func ParseCoreType(val string) (CoreType, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "", "fast":
		return FastCores, nil
	case "slow":
		return SlowCores, nil
	case "all":
		return AllCores, nil
	}

	return FastCores, fmt.Errorf("unknown CPU core type %q", val)
}

// platformCores are the fast, slow and all core masks of each platform.
// Platforms without big cores use the same mask for every type.
var platformCores = map[string][3]uintptr{
	// cortex A76 cores 4-7, A55 cores 0-3
	"rk3588": {0b11110000, 0b00001111, 0b11111111},
	// cortex A76 cores 4-5, A55 cores 0-3
	"rk3582": {0b00110000, 0b00001111, 0b00111111},
	// cortex A72 cores 4-7, A53 cores 0-3
	"rk3576": {0b11110000, 0b00001111, 0b11111111},
	"rk3568": {0b00001111, 0b00001111, 0b00001111},
	"rk3566": {0b00001111, 0b00001111, 0b00001111},
	"rk3562": {0b00001111, 0b00001111, 0b00001111},
}

// PlatformCoreMask returns the CPU mask of the core type on a platform such
// as rk3588
func PlatformCoreMask(platform string, ct CoreType) (uintptr, error) {

	masks, ok := platformCores[strings.ToLower(strings.TrimSpace(platform))]

	if !ok {
		return 0, fmt.Errorf("unknown platform: %s", platform)
	}

	if ct < FastCores || ct > AllCores {
		return 0, fmt.Errorf("unknown CPU core type %d", ct)
	}

	return masks[ct], nil
}

// CPUCoreMask calculates the mask of the given CPU core numbers, eg:
// []int{4, 5, 6, 7}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}

// SetCPUAffinity pins the process to the cores of mask so image decoding
// and belief map decoding do not compete with other work on slow cores
func SetCPUAffinity(mask uintptr) error {

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// SetCPUAffinityByPlatform pins the process to the core type of platform
func SetCPUAffinityByPlatform(platform string, ct CoreType) error {

	mask, err := PlatformCoreMask(platform, ct)

	if err != nil {
		return err
	}

	return SetCPUAffinity(mask)
}
