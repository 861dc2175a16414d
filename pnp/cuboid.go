package pnp

import (
	"github.com/golang/geo/r3"
	"github.com/swdee/go-dope/postprocess/result"
)

// Cuboid3D is the axis aligned model of an object's bounding cuboid centered
// on the origin.  Points holds the eight vertices in DOPE order followed by
// the centroid.
type Cuboid3D struct {
	Size   r3.Vector
	Points [result.CuboidPoints]r3.Vector
}

// NewCuboid3D builds the cuboid of an object with the given width (x),
// height (y) and depth (z).  The vertex order is front-top-right,
// front-top-left, front-bottom-left, front-bottom-right, then the same four
// on the rear face.
func NewCuboid3D(width, height, depth float64) Cuboid3D {

	right, left := width/2, -width/2
	top, bottom := height/2, -height/2
	front, rear := depth/2, -depth/2

	return Cuboid3D{
		Size: r3.Vector{X: width, Y: height, Z: depth},
		Points: [result.CuboidPoints]r3.Vector{
			{X: right, Y: top, Z: front},
			{X: left, Y: top, Z: front},
			{X: left, Y: bottom, Z: front},
			{X: right, Y: bottom, Z: front},
			{X: right, Y: top, Z: rear},
			{X: left, Y: top, Z: rear},
			{X: left, Y: bottom, Z: rear},
			{X: right, Y: bottom, Z: rear},
			{},
		},
	}
}
