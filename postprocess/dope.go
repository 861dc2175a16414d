package postprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/swdee/go-dope/postprocess/result"
	"gocv.io/x/gocv"
)

// DOPE defines the struct for Deep Object Pose Estimation post processing
// which decodes the belief maps and affinity fields of the network output
// into 2D cuboids
type DOPE struct {
	// Params are the decoding parameters
	Params DOPEParams
}

// DOPEParams defines the thresholds used when decoding the network output
type DOPEParams struct {
	// Sigma is the standard deviation of the Gaussian smoothing applied to
	// each belief map before peak finding
	Sigma float64
	// ThreshMap is the minimum smoothed belief value of a peak
	ThreshMap float64
	// ThreshPoints is the minimum raw belief value a centroid or vertex must
	// score to be used
	ThreshPoints float64
	// ThreshAngle is the maximum distance between the unit affinity vector of
	// a vertex and the unit vector from the vertex to a centroid for the two
	// to be matched
	ThreshAngle float64
	// StrideScale is the ratio between the network input size and the belief
	// map size
	StrideScale float64
}

const (
	// peakWindow is the size of the window used for sub pixel refinement of
	// a peak
	peakWindow = 5
	// upsamplingOffset is added to refined peak positions to compensate for
	// the network's upsampling layers
	upsamplingOffset = 0.4395
	// affinityScale is applied to affinity vectors before normalisation
	affinityScale = 10
	// unmatchedDist is the distance at which no centroid has yet been
	// matched to a vertex
	unmatchedDist = 1000
)

// DOPEDefaultParams returns the decoding parameters the DOPE networks were
// trained and evaluated with:
// - Sigma: 3
// - ThreshMap: 0.01
// - ThreshPoints: 0.1
// - ThreshAngle: 0.5
// - StrideScale: 8
func DOPEDefaultParams() DOPEParams {
	return DOPEParams{
		Sigma:        3,
		ThreshMap:    0.01,
		ThreshPoints: 0.1,
		ThreshAngle:  0.5,
		StrideScale:  8,
	}
}

// NewDOPE returns an instance of the DOPE post processor
func NewDOPE(p DOPEParams) *DOPE {
	return &DOPE{
		Params: p,
	}
}

// Peak is a local maximum of a belief map in belief map coordinates
type Peak struct {
	// X and Y are the refined sub pixel position
	X float64
	Y float64
	// Score is the unsmoothed belief value at the peak cell
	Score float64
}

// FindPeaks returns the peaks of every belief map in the tensor, indexed by
// belief map
func (d *DOPE) FindPeaks(tensor *result.Tensor) ([][]Peak, error) {

	if tensor.Channels < result.BeliefMapCount {
		return nil, fmt.Errorf("tensor has %d channels, need at least %d belief maps",
			tensor.Channels, result.BeliefMapCount)
	}

	src := gocv.NewMatWithSize(tensor.Rows, tensor.Cols, gocv.MatTypeCV32F)
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()

	peaks := make([][]Peak, result.BeliefMapCount)

	for i := 0; i < result.BeliefMapCount; i++ {
		belief := tensor.BeliefMap(i)

		smooth, err := d.smooth(belief, &src, &blurred)

		if err != nil {
			return nil, fmt.Errorf("error smoothing belief map %d: %w", i, err)
		}

		peaks[i] = d.mapPeaks(belief, smooth, tensor.Rows, tensor.Cols)
	}

	return peaks, nil
}

// smooth applies the Gaussian filter to belief and returns the result
func (d *DOPE) smooth(belief []float32, src, dst *gocv.Mat) ([]float32, error) {

	data, err := src.DataPtrFloat32()

	if err != nil {
		return nil, err
	}

	copy(data, belief)

	if d.Params.Sigma <= 0 {
		out := make([]float32, len(belief))
		copy(out, belief)
		return out, nil
	}

	// kernel covers four standard deviations either side of the center
	k := 2*int(4*d.Params.Sigma+0.5) + 1

	gocv.GaussianBlur(*src, dst, image.Pt(k, k), d.Params.Sigma, d.Params.Sigma,
		gocv.BorderReflect)

	smoothed, err := dst.DataPtrFloat32()

	if err != nil {
		return nil, err
	}

	out := make([]float32, len(smoothed))
	copy(out, smoothed)

	return out, nil
}

// mapPeaks finds the cells of smooth that are not smaller than their four
// neighbours and above ThreshMap, then refines each on the raw belief map.
// Cells outside the map count as zero.
func (d *DOPE) mapPeaks(belief, smooth []float32, rows, cols int) []Peak {

	at := func(x, y int) float32 {
		if x < 0 || y < 0 || x >= cols || y >= rows {
			return 0
		}
		return smooth[y*cols+x]
	}

	var peaks []Peak

	// row major order
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := at(x, y)

			if float64(v) <= d.Params.ThreshMap {
				continue
			}

			if v < at(x-1, y) || v < at(x+1, y) || v < at(x, y-1) || v < at(x, y+1) {
				continue
			}

			px, py := refinePeak(belief, rows, cols, x, y)

			peaks = append(peaks, Peak{
				X:     px,
				Y:     py,
				Score: float64(belief[y*cols+x]),
			})
		}
	}

	return peaks
}

// refinePeak computes the belief weighted average position of the window
// around (x, y).  When the window has no belief the cell position is used.
func refinePeak(belief []float32, rows, cols, x, y int) (float64, float64) {

	ran := peakWindow / 2

	var sumW, sumX, sumY float64

	for i := -ran; i <= ran; i++ {
		for j := -ran; j <= ran; j++ {
			yy, xx := y+i, x+j

			if yy < 0 || yy >= rows || xx < 0 || xx >= cols {
				continue
			}

			w := float64(belief[yy*cols+xx])
			sumW += w
			sumX += w * float64(xx)
			sumY += w * float64(yy)
		}
	}

	if sumW == 0 {
		return float64(x) + upsamplingOffset, float64(y) + upsamplingOffset
	}

	return sumX/sumW + upsamplingOffset, sumY/sumW + upsamplingOffset
}

// match is the centroid a vertex was assigned to
type match struct {
	angle float64
	dist  float64
}

// DetectObjects decodes the tensor into objects.  Points are scaled from
// belief map coordinates to network input coordinates by StrideScale and then
// by scaleX and scaleY, the ratio between the source image and the network
// input.
func (d *DOPE) DetectObjects(tensor *result.Tensor, scaleX, scaleY float64) ([]result.Object2D, error) {

	peaks, err := d.FindPeaks(tensor)

	if err != nil {
		return nil, err
	}

	return d.AssignVertices(tensor, peaks, scaleX, scaleY), nil
}

// AssignVertices groups the vertex peaks to the centroid peaks using the
// affinity fields of the tensor
func (d *DOPE) AssignVertices(tensor *result.Tensor, peaks [][]Peak, scaleX, scaleY float64) []result.Object2D {

	type candidate struct {
		center   Peak
		vertices [8]*result.Point2D
		matches  [8]match
	}

	var objects []*candidate

	for _, c := range peaks[result.CentroidIndex] {
		if c.Score > d.Params.ThreshPoints {
			objects = append(objects, &candidate{center: c})
		}
	}

	for v := 0; v < result.CentroidIndex; v++ {
		for _, p := range peaks[v] {

			if p.Score < d.Params.ThreshPoints {
				continue
			}

			best := -1
			bestDist := float64(unmatchedDist * 10)
			bestAngle := 100.0

			ix := clampIndex(int(p.X), tensor.Cols)
			iy := clampIndex(int(p.Y), tensor.Rows)
			ax, ay := tensor.Affinity(v, ix, iy)
			ax, ay = normalize(ax*affinityScale, ay*affinityScale)

			for i, obj := range objects {
				cx, cy := normalize(obj.center.X-p.X, obj.center.Y-p.Y)

				distAngle := math.Hypot(cx-ax, cy-ay)
				distPoint := math.Hypot(p.X-obj.center.X, p.Y-obj.center.Y)

				if distAngle < d.Params.ThreshAngle &&
					(bestDist > unmatchedDist || bestDist > distPoint) {
					best = i
					bestAngle = distAngle
					bestDist = distPoint
				}
			}

			if best == -1 {
				continue
			}

			obj := objects[best]

			if obj.vertices[v] == nil ||
				(bestAngle < d.Params.ThreshAngle && bestDist < obj.matches[v].dist) {
				obj.vertices[v] = d.scale(p.X, p.Y, scaleX, scaleY)
				obj.matches[v] = match{angle: bestAngle, dist: bestDist}
			}
		}
	}

	out := make([]result.Object2D, 0, len(objects))

	for _, obj := range objects {
		var o result.Object2D

		for v := range obj.vertices {
			o.Points[v] = obj.vertices[v]
		}

		o.Points[result.CentroidIndex] = d.scale(obj.center.X, obj.center.Y, scaleX, scaleY)
		o.Score = obj.center.Score

		out = append(out, o)
	}

	return out
}

// scale converts a belief map position to image coordinates
func (d *DOPE) scale(x, y, scaleX, scaleY float64) *result.Point2D {
	return &result.Point2D{
		X: x * d.Params.StrideScale * scaleX,
		Y: y * d.Params.StrideScale * scaleY,
	}
}

// normalize returns the unit vector of (x, y), a zero vector gives NaN
// components which fail every threshold comparison
func normalize(x, y float64) (float64, float64) {
	n := math.Hypot(x, y)
	return x / n, y / n
}

// clampIndex limits i to a valid index of a dimension of size
func clampIndex(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}
