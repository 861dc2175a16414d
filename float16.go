package dope

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16LookupTable[i] = float16.Frombits(uint16(i)).Float32()
	}
}

// Float16ToFloat32 converts raw float16 bits, as produced by the NPU or read
// from the tensor cache, into a new float32 slice
func Float16ToFloat32(in []uint16) []float32 {

	out := make([]float32, len(in))

	for i, v := range in {
		out[i] = f16LookupTable[v]
	}

	return out
}
