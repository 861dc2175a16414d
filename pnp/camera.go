package pnp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultIntrinsics is the camera matrix of the 640x480 test set camera in
// row major order
var DefaultIntrinsics = [9]float64{
	641.5, 0, 320,
	0, 641.5, 240,
	0, 0, 1,
}

// DefaultDistortion has no lens distortion
var DefaultDistortion = []float64{0, 0, 0, 0, 0}

// Camera holds the pinhole intrinsics and the lens distortion coefficients
// (k1, k2, p1, p2[, k3]) of the camera that took the images
type Camera struct {
	Intrinsics *mat.Dense
	Distortion []float64
}

// NewCamera builds a Camera from a row major 3x3 intrinsic matrix.  The
// distortion vector must have 4 or 5 coefficients.
func NewCamera(intrinsics [9]float64, distortion []float64) (Camera, error) {

	if len(distortion) != 4 && len(distortion) != 5 {
		return Camera{}, fmt.Errorf("distortion must have 4 or 5 coefficients, got %d",
			len(distortion))
	}

	k := make([]float64, 9)
	copy(k, intrinsics[:])

	dist := make([]float64, len(distortion))
	copy(dist, distortion)

	return Camera{
		Intrinsics: mat.NewDense(3, 3, k),
		Distortion: dist,
	}, nil
}

// distortion returns k1, k2, p1, p2, k3 with k3 zero for a 4 element vector
func (c Camera) distortion() (k1, k2, p1, p2, k3 float64) {

	d := c.Distortion

	if len(d) >= 4 {
		k1, k2, p1, p2 = d[0], d[1], d[2], d[3]
	}

	if len(d) >= 5 {
		k3 = d[4]
	}

	return
}
