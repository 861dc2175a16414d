package detector

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-dope/cache"
	"github.com/swdee/go-dope/pnp"
	"github.com/swdee/go-dope/postprocess/result"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/num/quat"
)

const (
	inputWidth  = 640
	inputHeight = 480
	mapCols     = inputWidth / 8
	mapRows     = inputHeight / 8
	// upsampling offset the decoder adds to refined peaks
	peakOffset = 0.4395
)

var (
	testDims     = [3]float64{4.947199821472168, 2.9923000335693359, 8.3498001098632812}
	testLocation = r3.Vector{X: 1.5, Y: -2, Z: 60}
	testRotation = pnp.QuatFromAxisAngle(r3.Vector{X: 0.3, Y: 1, Z: 0.2}, 0.5)
)

// fakeNetwork returns a fixed tensor
type fakeNetwork struct {
	mu     sync.Mutex
	tensor *result.Tensor
	calls  int
}

func (f *fakeNetwork) Name() string {
	return "ChocolatePudding"
}

func (f *fakeNetwork) InputSize() (int, int) {
	return inputWidth, inputHeight
}

func (f *fakeNetwork) Infer(img gocv.Mat) (*result.Tensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.tensor, nil
}

func testSolver(t *testing.T) *pnp.Solver {
	solver, err := ConfigureSolver(pnp.DefaultIntrinsics, pnp.DefaultDistortion, testDims)
	require.NoError(t, err)
	t.Cleanup(func() { solver.Close() })
	return solver
}

// poseTensor builds the network output of an object at a known pose.  Each
// point is spread bilinearly over four belief map cells so the decoder's
// weighted refinement recovers its exact position.
func poseTensor(t *testing.T, solver *pnp.Solver, q quat.Number, loc r3.Vector) (*result.Tensor, []result.Point2D) {

	cuboid := solver.Cuboid()
	points := pnp.Project(solver.Camera(), pnp.RotationMatrix(q), loc, cuboid.Points[:])

	data := make([]float32, result.TensorChannels*mapRows*mapCols)
	tensor, err := result.NewTensor(result.TensorChannels, mapRows, mapCols, data)
	require.NoError(t, err)

	center := points[result.CentroidIndex]

	for i, p := range points {
		mx := p.X/8 - peakOffset
		my := p.Y/8 - peakOffset

		x0, y0 := int(math.Floor(mx)), int(math.Floor(my))
		fx, fy := mx-float64(x0), my-float64(y0)

		belief := tensor.BeliefMap(i)
		belief[y0*mapCols+x0] = float32((1 - fx) * (1 - fy))
		belief[y0*mapCols+x0+1] = float32(fx * (1 - fy))
		belief[(y0+1)*mapCols+x0] = float32((1 - fx) * fy)
		belief[(y0+1)*mapCols+x0+1] = float32(fx * fy)

		if i == result.CentroidIndex {
			continue
		}

		// affinity towards the centroid around the vertex
		dx, dy := center.X-p.X, center.Y-p.Y
		n := math.Hypot(dx, dy)

		for yy := y0 - 1; yy <= y0+2; yy++ {
			for xx := x0 - 1; xx <= x0+2; xx++ {
				idx := yy*mapCols + xx
				tensor.Channel(result.BeliefMapCount + i*2)[idx] = float32(dx / n / 10)
				tensor.Channel(result.BeliefMapCount + i*2 + 1)[idx] = float32(dy / n / 10)
			}
		}
	}

	return tensor, points
}

func assertPose(t *testing.T, d result.Detection) {
	require.True(t, d.Localized())
	assert.InDelta(t, testLocation.X, d.Location.X, 0.1)
	assert.InDelta(t, testLocation.Y, d.Location.Y, 0.1)
	assert.InDelta(t, testLocation.Z, d.Location.Z, 0.5)
}

func TestDefaultConfig(t *testing.T) {

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	assert.Equal(t, 3.0, p.Sigma)
	assert.Equal(t, 0.01, p.ThreshMap)
	assert.Equal(t, 0.1, p.ThreshPoints)
	assert.Equal(t, 0.5, p.ThreshAngle)
	assert.Equal(t, 8.0, p.StrideScale)

	cfg.ThreshAngle = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigureSolver(t *testing.T) {

	_, err := ConfigureSolver(pnp.DefaultIntrinsics, []float64{0, 0, 0}, testDims)
	assert.Error(t, err)

	solver := testSolver(t)
	assert.Equal(t, r3.Vector{X: testDims[0], Y: testDims[1], Z: testDims[2]}, solver.Cuboid().Size)
}

func TestDetectTensor(t *testing.T) {

	solver := testSolver(t)
	tensor, points := poseTensor(t, solver, testRotation, testLocation)

	dets, err := DetectTensor("ChocolatePudding", tensor, solver, DefaultConfig(), 1, 1)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	d := dets[0]
	assert.Equal(t, "ChocolatePudding", d.Name)
	assert.Equal(t, result.CuboidPoints, d.ValidPoints())

	for i, p := range d.Cuboid2D {
		assert.InDelta(t, points[i].X, p.X, 0.01)
		assert.InDelta(t, points[i].Y, p.Y, 0.01)
	}

	assertPose(t, d)
}

func TestDetectTensorEmpty(t *testing.T) {

	solver := testSolver(t)

	data := make([]float32, result.TensorChannels*mapRows*mapCols)
	tensor, err := result.NewTensor(result.TensorChannels, mapRows, mapCols, data)
	require.NoError(t, err)

	dets, err := DetectTensor("ChocolatePudding", tensor, solver, DefaultConfig(), 1, 1)
	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Empty(t, dets)
}

func TestDetect(t *testing.T) {

	solver := testSolver(t)
	tensor, points := poseTensor(t, solver, testRotation, testLocation)
	net := &fakeNetwork{tensor: tensor}

	// source image twice the network input size
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), inputHeight*2, inputWidth*2, gocv.MatTypeCV8UC3)
	defer img.Close()

	dets, belief, err := Detect(net, solver, img, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 1, net.calls)

	center := dets[0].Cuboid2D[result.CentroidIndex]
	assert.InDelta(t, points[result.CentroidIndex].X*2, center.X, 0.02)
	assert.InDelta(t, points[result.CentroidIndex].Y*2, center.Y, 0.02)

	require.NotNil(t, belief)
	assert.Equal(t, mapCols*mosaicScale*3, belief.Bounds().Dx())
}

// writeImage writes a blank image of the network input size
func writeImage(t *testing.T, path string) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), inputHeight, inputWidth, gocv.MatTypeCV8UC3)
	defer img.Close()
	require.True(t, gocv.IMWrite(path, img))
}

func TestFileDetector(t *testing.T) {

	dir := t.TempDir()
	solver := testSolver(t)
	tensor, _ := poseTensor(t, solver, testRotation, testLocation)

	good := filepath.Join(dir, "000.png")
	writeImage(t, good)

	text := filepath.Join(dir, "001.png")
	require.NoError(t, os.WriteFile(text, []byte("not an image at all"), 0o644))

	corrupt := filepath.Join(dir, "002.png")
	require.NoError(t, os.WriteFile(corrupt,
		append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...), 0o644))

	net := &fakeNetwork{tensor: tensor}
	d := NewFileDetector(net, solver, DefaultConfig())

	dets, err := d.Detect(context.Background(), good)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assertPose(t, dets[0])

	_, err = d.Detect(context.Background(), text)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = d.Detect(context.Background(), corrupt)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = d.Detect(context.Background(), filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, good)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileDetectorCache(t *testing.T) {

	dir := t.TempDir()
	solver := testSolver(t)
	tensor, _ := poseTensor(t, solver, testRotation, testLocation)

	image := filepath.Join(dir, "000.png")
	writeImage(t, image)

	store := cache.NewStore(cache.NewMapper("_cache", dir))
	net := &fakeNetwork{tensor: tensor}
	debugDir := filepath.Join(dir, "debug")

	d := NewFileDetector(net, solver, DefaultConfig(), WithCache(store), WithDebugDir(debugDir))

	for i := 0; i < 2; i++ {
		dets, err := d.Detect(context.Background(), image)
		require.NoError(t, err)
		require.Len(t, dets, 1)
		assertPose(t, dets[0])
	}

	// second run read the cached tensor
	assert.Equal(t, 1, net.calls)

	for _, file := range []string{
		store.Mapper().TensorFile(image),
		store.Mapper().ProcessedImageFile(image),
		filepath.Join(debugDir, "000.png.belief.png"),
		filepath.Join(debugDir, "000.png.detections.png"),
	} {
		_, err := os.Stat(file)
		assert.NoError(t, err, file)
	}
}
