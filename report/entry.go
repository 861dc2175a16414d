package report

// Report is the ordered list of per image entries of a run, in sorted file
// name order
type Report []Entry

// Entry is the record of one image.  Exactly one of DetectedPoses and
// Detections is set for a processed image, Error is set for a skipped one.
type Entry struct {
	ImagePath string `json:"imagePath"`
	// DetectedPoses is the payload of schemas A and B
	DetectedPoses *DetectedPoses `json:"detectedPoses,omitempty"`
	// Detections is the payload of schema C
	Detections *[]RawDetection `json:"detections,omitempty"`
	// Error is why the image was skipped
	Error string `json:"error,omitempty"`
}

// Skipped reports if the image could not be processed
func (e Entry) Skipped() bool {
	return e.Error != ""
}

// Point2 is a 2D image point
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point3 is a 3D position in camera coordinates
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DetectedPoses holds the objects and their poses, index aligned
type DetectedPoses struct {
	Objects2D []Object2D `json:"objects2d"`
	Poses     []Pose     `json:"poses"`
}

// Object2D is the projected cuboid of an object.  Schema A fills Center and
// Vertices, schema B fills Points.  Missing points are null.
type Object2D struct {
	Center   *Point2   `json:"center,omitempty"`
	Vertices []*Point2 `json:"vertices,omitempty"`
	Points   []*Point2 `json:"points,omitempty"`
}

// Pose is the 3D pose of an object.  Position is null when the object was
// not localized.
type Pose struct {
	Position    *Point3      `json:"position"`
	Orientation *Orientation `json:"orientation,omitempty"`
}

// Orientation holds a quaternion as [x, y, z, w]
type Orientation struct {
	Values []float64 `json:"values"`
}

// RawDetection is the schema C record of one detection.  Points are
// [x, y] pairs, missing raw points are null.
type RawDetection struct {
	Name            string      `json:"name,omitempty"`
	Location        []float64   `json:"location"`
	Quaternion      []float64   `json:"quaternion"`
	Cuboid2D        [][]float64 `json:"cuboid2d"`
	ProjectedCuboid [][]float64 `json:"projectedCuboid"`
	Silhouette      [][]float64 `json:"silhouette"`
	Score           float64     `json:"score"`
}

// Positions returns the position of every pose in the entry regardless of
// schema, nil for objects that were not localized
func (e Entry) Positions() []*Point3 {

	var out []*Point3

	if e.DetectedPoses != nil {
		for _, p := range e.DetectedPoses.Poses {
			out = append(out, p.Position)
		}
	}

	if e.Detections != nil {
		for _, d := range *e.Detections {
			if len(d.Location) != 3 {
				out = append(out, nil)
				continue
			}
			out = append(out, &Point3{X: d.Location[0], Y: d.Location[1], Z: d.Location[2]})
		}
	}

	return out
}
