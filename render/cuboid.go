package render

import (
	"image"
	"image/color"

	"github.com/swdee/go-dope/postprocess/result"
	"gocv.io/x/gocv"
)

/* cuboid vertices
0: front top right
1: front top left
2: front bottom left
3: front bottom right
4: rear top right
5: rear top left
6: rear bottom left
7: rear bottom right
8: centroid
*/

var (
	// cuboidEdges defines the vertex pairs to draw lines between, grouped as
	// front face, rear face and the edges joining the two faces
	cuboidEdges = [3][4][2]int{
		{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		{{4, 5}, {5, 6}, {6, 7}, {7, 4}},
		{{0, 4}, {1, 5}, {2, 6}, {3, 7}},
	}
)

// Cuboid renders the edges of a cuboid and its centroid.  Edges touching a
// missing vertex are skipped.
func Cuboid(img *gocv.Mat, points [result.CuboidPoints]*result.Point2D, lineThickness int) {

	for face, edges := range cuboidEdges {
		for _, e := range edges {
			p1, p2 := points[e[0]], points[e[1]]

			if p1 == nil || p2 == nil {
				continue
			}

			gocv.Line(img, pt(p1), pt(p2), faceColors[face], lineThickness)
		}
	}

	if c := points[result.CentroidIndex]; c != nil {
		gocv.Circle(img, pt(c), lineThickness+2, White, -1)
	}
}

// Vertices renders a filled circle at every point, colored by vertex index
func Vertices(img *gocv.Mat, points [result.CuboidPoints]*result.Point2D, radius int) {

	for i, p := range points {
		if p == nil {
			continue
		}

		gocv.Circle(img, pt(p), radius, vertexColors[i], -1)
	}
}

// Detections renders the raw vertices and the projected cuboid of every
// detection, localized cuboids in their face colors and the rest in clr
func Detections(img *gocv.Mat, dets []result.Detection, clr color.RGBA, lineThickness int) {

	for _, d := range dets {
		if d.Localized() {
			Cuboid(img, d.Projected, lineThickness)
		} else {
			for _, edges := range cuboidEdges {
				for _, e := range edges {
					p1, p2 := d.Cuboid2D[e[0]], d.Cuboid2D[e[1]]

					if p1 == nil || p2 == nil {
						continue
					}

					gocv.Line(img, pt(p1), pt(p2), clr, lineThickness)
				}
			}
		}

		Vertices(img, d.Cuboid2D, lineThickness+1)
	}
}

func pt(p *result.Point2D) image.Point {
	return image.Pt(int(p.X+0.5), int(p.Y+0.5))
}
