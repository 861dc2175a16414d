package report

import (
	"github.com/swdee/go-dope/postprocess/result"
)

// Projector converts detections into report entries
type Projector struct {
	Schema   Schema
	Rounding Rounding
	// SilhouetteMargin grows the schema C silhouette outward in pixels
	SilhouetteMargin float64
}

// NewProjector returns a Projector using the schema's default rounding
func NewProjector(schema Schema) Projector {
	return Projector{
		Schema:   schema,
		Rounding: schema.DefaultRounding(),
	}
}

// Project builds the entry of an image from its detections.  No detections
// give empty lists, never null ones.
func (p Projector) Project(imagePath string, dets []result.Detection) Entry {

	entry := Entry{ImagePath: imagePath}

	switch p.Schema {
	case SchemaC:
		raw := make([]RawDetection, 0, len(dets))

		for _, d := range dets {
			raw = append(raw, p.raw(d))
		}

		entry.Detections = &raw

	default:
		poses := &DetectedPoses{
			Objects2D: make([]Object2D, 0, len(dets)),
			Poses:     make([]Pose, 0, len(dets)),
		}

		for _, d := range dets {
			poses.Objects2D = append(poses.Objects2D, p.object2D(d))
			poses.Poses = append(poses.Poses, p.pose(d))
		}

		entry.DetectedPoses = poses
	}

	return entry
}

// Skipped builds the entry of an image that failed to process
func (p Projector) Skipped(imagePath string, err error) Entry {
	return Entry{
		ImagePath: imagePath,
		Error:     err.Error(),
	}
}

func (p Projector) point2(pt *result.Point2D) *Point2 {
	if pt == nil {
		return nil
	}

	return &Point2{X: p.Rounding.Apply(pt.X), Y: p.Rounding.Apply(pt.Y)}
}

func (p Projector) pair(pt *result.Point2D) []float64 {
	if pt == nil {
		return nil
	}

	return []float64{p.Rounding.Apply(pt.X), p.Rounding.Apply(pt.Y)}
}

func (p Projector) object2D(d result.Detection) Object2D {

	vertices := make([]*Point2, 0, result.CentroidIndex)

	for _, pt := range d.Projected[:result.CentroidIndex] {
		vertices = append(vertices, p.point2(pt))
	}

	if p.Schema == SchemaB {
		return Object2D{Points: vertices}
	}

	return Object2D{
		Center:   p.point2(d.Projected[result.CentroidIndex]),
		Vertices: vertices,
	}
}

func (p Projector) pose(d result.Detection) Pose {

	var pose Pose

	if d.Location != nil {
		pose.Position = &Point3{
			X: p.Rounding.Apply(d.Location.X),
			Y: p.Rounding.Apply(d.Location.Y),
			Z: p.Rounding.Apply(d.Location.Z),
		}
	}

	if p.Schema == SchemaB && d.Quaternion != nil {
		pose.Orientation = &Orientation{Values: p.quaternion(d)}
	}

	return pose
}

// quaternion returns the orientation as [x, y, z, w]
func (p Projector) quaternion(d result.Detection) []float64 {
	q := d.Quaternion
	return []float64{
		p.Rounding.Apply(q.Imag),
		p.Rounding.Apply(q.Jmag),
		p.Rounding.Apply(q.Kmag),
		p.Rounding.Apply(q.Real),
	}
}

func (p Projector) raw(d result.Detection) RawDetection {

	raw := RawDetection{
		Name:            d.Name,
		Cuboid2D:        make([][]float64, 0, result.CuboidPoints),
		ProjectedCuboid: make([][]float64, 0, result.CuboidPoints),
		Score:           p.Rounding.Apply(d.Score),
	}

	if d.Location != nil {
		raw.Location = []float64{
			p.Rounding.Apply(d.Location.X),
			p.Rounding.Apply(d.Location.Y),
			p.Rounding.Apply(d.Location.Z),
		}
	}

	if d.Quaternion != nil {
		raw.Quaternion = p.quaternion(d)
	}

	for _, pt := range d.Cuboid2D {
		raw.Cuboid2D = append(raw.Cuboid2D, p.pair(pt))
	}

	for _, pt := range d.Projected {
		raw.ProjectedCuboid = append(raw.ProjectedCuboid, p.pair(pt))
	}

	outline := result.Silhouette(d.Projected[:], p.SilhouetteMargin)
	raw.Silhouette = make([][]float64, 0, len(outline))

	for i := range outline {
		raw.Silhouette = append(raw.Silhouette, p.pair(&outline[i]))
	}

	return raw
}
