package result

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// CuboidPoints is the number of 2D points describing a cuboid, its eight
// vertices followed by the centroid
const CuboidPoints = 9

// CentroidIndex is the index of the centroid within a cuboid's points
const CentroidIndex = 8

// Point2D is a point in image pixel coordinates
type Point2D struct {
	X float64
	Y float64
}

// Object2D is an object found in the belief maps.  Points holds the eight
// vertices in DOPE order followed by the centroid, a vertex that could not be
// matched to the centroid is nil.
type Object2D struct {
	Points [CuboidPoints]*Point2D
	// Score is the belief map value at the centroid
	Score float64
}

// ValidPoints returns the number of non nil points
func (o Object2D) ValidPoints() int {
	return countPoints(o.Points)
}

// Detection is the outcome of detecting one object instance in an image
type Detection struct {
	// Name of the object the network was trained on
	Name string
	// Cuboid2D are the raw 2D points as decoded from the network
	Cuboid2D [CuboidPoints]*Point2D
	// Projected are the 2D points of the model cuboid projected with the
	// solved pose, or the raw points when the object was not localized
	Projected [CuboidPoints]*Point2D
	// Location is the translation of the object in camera coordinates, nil
	// when PnP failed
	Location *r3.Vector
	// Quaternion is the orientation of the object, nil when PnP failed
	Quaternion *quat.Number
	Score      float64
}

// Localized reports if PnP produced a pose for the detection
func (d Detection) Localized() bool {
	return d.Location != nil && d.Quaternion != nil
}

// ValidPoints returns the number of raw 2D points found
func (d Detection) ValidPoints() int {
	return countPoints(d.Cuboid2D)
}

func countPoints(pts [CuboidPoints]*Point2D) int {
	n := 0

	for _, p := range pts {
		if p != nil {
			n++
		}
	}

	return n
}
