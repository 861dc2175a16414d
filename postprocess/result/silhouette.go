package result

import (
	"math"
	"sort"

	clipper "github.com/ctessum/go.clipper"
)

// silhouetteScale converts pixel coordinates to the integer grid clipper
// works on, keeping three decimals
const silhouetteScale = 1000

// Silhouette returns the outline of the given points, their convex hull
// grown outward by margin pixels.  Nil points are ignored and fewer than
// three points have no outline.
func Silhouette(points []*Point2D, margin float64) []Point2D {

	hull := convexHull(points)

	if len(hull) < 3 {
		return []Point2D{}
	}

	var path clipper.Path

	for _, pt := range hull {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(pt.X * silhouetteScale)),
			Y: clipper.CInt(math.Round(pt.Y * silhouetteScale)),
		})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	solution := co.Execute(margin * silhouetteScale)

	outline := make([]Point2D, 0, len(hull))

	for _, sol := range solution {
		for _, pt := range sol {
			outline = append(outline, Point2D{
				X: float64(pt.X) / silhouetteScale,
				Y: float64(pt.Y) / silhouetteScale,
			})
		}
	}

	return outline
}

// convexHull computes the hull with Andrew's monotone chain, returned
// counter clockwise without the closing point
func convexHull(points []*Point2D) []Point2D {

	pts := make([]Point2D, 0, len(points))

	for _, p := range points {
		if p != nil {
			pts = append(pts, *p)
		}
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X == pts[j].X {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})

	if len(pts) < 3 {
		return pts
	}

	cross := func(o, a, b Point2D) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]Point2D, 0, 2*len(pts))

	// lower hull
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// upper hull
	lower := len(hull) + 1

	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}
