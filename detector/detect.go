package detector

import (
	"fmt"
	"image"

	"github.com/swdee/go-dope/pnp"
	"github.com/swdee/go-dope/postprocess"
	"github.com/swdee/go-dope/postprocess/result"
	"github.com/swdee/go-dope/preprocess"
	"github.com/swdee/go-dope/render"
	"gocv.io/x/gocv"
)

// mosaicScale is the upscale of belief maps in the belief map image
const mosaicScale = 4

// ConfigureSolver builds the PnP solver for a camera and an object with the
// given width, height and depth
func ConfigureSolver(intrinsics [9]float64, distortion []float64, dims [3]float64) (*pnp.Solver, error) {

	cam, err := pnp.NewCamera(intrinsics, distortion)

	if err != nil {
		return nil, fmt.Errorf("error configuring camera: %w", err)
	}

	return pnp.NewSolver(cam, pnp.NewCuboid3D(dims[0], dims[1], dims[2]))
}

// Detect finds the objects in an RGB image.  It returns the detections and
// an image of the belief maps.
func Detect(net Network, solver *pnp.Solver, img gocv.Mat, cfg Config) ([]result.Detection, image.Image, error) {

	input, sx, sy := resizeInput(net, img)
	defer input.Close()

	tensor, err := net.Infer(input)

	if err != nil {
		return nil, nil, err
	}

	dets, err := DetectTensor(net.Name(), tensor, solver, cfg, sx, sy)

	if err != nil {
		return nil, nil, err
	}

	return dets, render.BeliefMosaic(tensor, mosaicScale), nil
}

// DetectTensor decodes a network output into localized detections.  scaleX
// and scaleY map network input coordinates onto the source image.
func DetectTensor(name string, tensor *result.Tensor, solver *pnp.Solver, cfg Config,
	scaleX, scaleY float64) ([]result.Detection, error) {

	objects, err := postprocess.NewDOPE(cfg.Params()).DetectObjects(tensor, scaleX, scaleY)

	if err != nil {
		return nil, fmt.Errorf("error decoding network output: %w", err)
	}

	dets := make([]result.Detection, 0, len(objects))

	for _, obj := range objects {
		pose := solver.Solve(obj.Points)

		dets = append(dets, result.Detection{
			Name:       name,
			Cuboid2D:   obj.Points,
			Projected:  pose.Projected,
			Location:   pose.Location,
			Quaternion: pose.Quaternion,
			Score:      obj.Score,
		})
	}

	return dets, nil
}

// resizeInput scales img to the network input returning the new Mat, owned
// by the caller, and the factors back to img coordinates
func resizeInput(net Network, img gocv.Mat) (gocv.Mat, float64, float64) {

	w, h := net.InputSize()

	resizer := preprocess.NewResizer(img.Cols(), img.Rows(), w, h)

	input := gocv.NewMat()
	resizer.Resize(img, &input)

	sx, sy := resizer.ScaleFactor()

	return input, sx, sy
}
