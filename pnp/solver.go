package pnp

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/swdee/go-dope/postprocess/result"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/num/quat"
)

// cv::SolvePnPMethod values
const (
	methodIterative = 0
	methodP3P       = 2
)

const (
	// minPoints is the fewest 2D points a pose can be solved from
	minPoints = 4
	// iterativePoints is the fewest points the iterative method is used for,
	// below this P3P is run on the first four points
	iterativePoints = 6
)

// Pose is the solved pose of one detected cuboid
type Pose struct {
	// Location and Quaternion are nil when the object could not be localized
	Location   *r3.Vector
	Quaternion *quat.Number
	// Projected are the model cuboid points projected with the pose, or the
	// raw 2D points when not localized
	Projected [result.CuboidPoints]*result.Point2D
}

// Solver recovers the 3D pose of a cuboid from its 2D points.  It is safe
// for concurrent use once created.
type Solver struct {
	camera Camera
	cuboid Cuboid3D
	// cameraMat and distMat are the OpenCV copies of the calibration
	cameraMat gocv.Mat
	distMat   gocv.Mat
}

// NewSolver binds the camera calibration and the object model
func NewSolver(camera Camera, cuboid Cuboid3D) (*Solver, error) {

	if camera.Intrinsics == nil {
		return nil, fmt.Errorf("camera has no intrinsics")
	}

	if r, c := camera.Intrinsics.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("camera intrinsics must be 3x3, got %dx%d", r, c)
	}

	if n := len(camera.Distortion); n != 4 && n != 5 {
		return nil, fmt.Errorf("distortion must have 4 or 5 coefficients, got %d", n)
	}

	s := &Solver{
		camera:    camera,
		cuboid:    cuboid,
		cameraMat: gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F),
		distMat:   gocv.NewMatWithSize(1, len(camera.Distortion), gocv.MatTypeCV64F),
	}

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			s.cameraMat.SetDoubleAt(r, c, camera.Intrinsics.At(r, c))
		}
	}

	for i, d := range camera.Distortion {
		s.distMat.SetDoubleAt(0, i, d)
	}

	return s, nil
}

// Camera returns the calibration the solver was built with
func (s *Solver) Camera() Camera {
	return s.camera
}

// Cuboid returns the object model the solver was built with
func (s *Solver) Cuboid() Cuboid3D {
	return s.cuboid
}

// Close releases the OpenCV matrices
func (s *Solver) Close() error {
	return multierr.Combine(s.cameraMat.Close(), s.distMat.Close())
}

// Solve computes the pose of the cuboid from its 2D points, nil points are
// ignored.  Failing to converge is not an error, the returned pose is then
// not localized.
func (s *Solver) Solve(points [result.CuboidPoints]*result.Point2D) Pose {

	pose := Pose{
		Projected: points,
	}

	var (
		obj []gocv.Point3f
		img []gocv.Point2f
	)

	for i, p := range points {
		if p == nil {
			continue
		}

		v := s.cuboid.Points[i]
		obj = append(obj, gocv.Point3f{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)})
		img = append(img, gocv.Point2f{X: float32(p.X), Y: float32(p.Y)})
	}

	if len(obj) < minPoints {
		return pose
	}

	method := methodIterative

	if len(obj) < iterativePoints {
		method = methodP3P
		obj = obj[:minPoints]
		img = img[:minPoints]
	}

	rvec, tvec, ok := s.solvePnP(obj, img, method)

	if !ok {
		return pose
	}

	q := QuatFromRotationVector(rvec)

	projected := Project(s.camera, RotationMatrix(q), tvec, s.cuboid.Points[:])

	for i := range projected {
		pose.Projected[i] = &projected[i]
	}

	location, q := FlipBehindCamera(tvec, q)

	pose.Location = &location
	pose.Quaternion = &q

	return pose
}

// solvePnP runs cv::solvePnP returning the rotation and translation vectors
func (s *Solver) solvePnP(obj []gocv.Point3f, img []gocv.Point2f, method int) (r3.Vector, r3.Vector, bool) {

	objVec := gocv.NewPoint3fVectorFromPoints(obj)
	defer objVec.Close()

	imgVec := gocv.NewPoint2fVectorFromPoints(img)
	defer imgVec.Close()

	rvec := gocv.NewMat()
	defer rvec.Close()

	tvec := gocv.NewMat()
	defer tvec.Close()

	if !gocv.SolvePnP(objVec, imgVec, s.cameraMat, s.distMat, &rvec, &tvec, false, method) {
		return r3.Vector{}, r3.Vector{}, false
	}

	if rvec.Total() != 3 || tvec.Total() != 3 {
		return r3.Vector{}, r3.Vector{}, false
	}

	r := r3.Vector{X: rvec.GetDoubleAt(0, 0), Y: rvec.GetDoubleAt(1, 0), Z: rvec.GetDoubleAt(2, 0)}
	t := r3.Vector{X: tvec.GetDoubleAt(0, 0), Y: tvec.GetDoubleAt(1, 0), Z: tvec.GetDoubleAt(2, 0)}

	if hasNaN(r) || hasNaN(t) {
		return r3.Vector{}, r3.Vector{}, false
	}

	return r, t, true
}

func hasNaN(v r3.Vector) bool {
	return math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z)
}
