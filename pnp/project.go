package pnp

import (
	"github.com/golang/geo/r3"
	"github.com/swdee/go-dope/postprocess/result"
	"gonum.org/v1/gonum/mat"
)

// Project maps object points into the image of cam for the pose given by
// rotation r and translation t, applying the radial (k1, k2, k3) and
// tangential (p1, p2) lens distortion
func Project(cam Camera, r mat.Matrix, t r3.Vector, points []r3.Vector) []result.Point2D {

	fx := cam.Intrinsics.At(0, 0)
	fy := cam.Intrinsics.At(1, 1)
	cx := cam.Intrinsics.At(0, 2)
	cy := cam.Intrinsics.At(1, 2)

	k1, k2, p1, p2, k3 := cam.distortion()

	out := make([]result.Point2D, len(points))

	for i, p := range points {
		pc := Rotate(r, p).Add(t)

		x, y := pc.X, pc.Y

		if pc.Z != 0 {
			x /= pc.Z
			y /= pc.Z
		}

		r2 := x*x + y*y
		radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2

		xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
		yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y

		out[i] = result.Point2D{
			X: fx*xd + cx,
			Y: fy*yd + cy,
		}
	}

	return out
}
