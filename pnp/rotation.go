package pnp

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// QuatFromAxisAngle returns the unit quaternion rotating theta radians
// around axis
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {

	axis = axis.Normalize()
	s := math.Sin(theta / 2)

	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// QuatFromRotationVector converts a Rodrigues rotation vector, whose norm is
// the angle, to a quaternion
func QuatFromRotationVector(rvec r3.Vector) quat.Number {

	theta := rvec.Norm()

	if theta == 0 {
		return quat.Number{Real: 1}
	}

	return QuatFromAxisAngle(rvec, theta)
}

// RotationMatrix returns the 3x3 rotation matrix of unit quaternion q
func RotationMatrix(q quat.Number) *mat.Dense {

	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// Rotate applies rotation matrix r to v
func Rotate(r mat.Matrix, v r3.Vector) r3.Vector {

	var out mat.VecDense
	out.MulVec(r, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))

	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// FlipBehindCamera moves a pose solved behind the camera (negative z) in
// front of it.  The location is negated and the orientation is pre rotated
// by 180 degrees around the new location axis.  Poses in front of the camera
// are returned unchanged.
func FlipBehindCamera(location r3.Vector, q quat.Number) (r3.Vector, quat.Number) {

	if location.Z >= 0 {
		return location, q
	}

	location = location.Mul(-1)
	flip := QuatFromAxisAngle(location, math.Pi)

	return location, quat.Mul(flip, q)
}
