package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/swdee/go-dope/cache"
	"github.com/swdee/go-dope/pnp"
	"github.com/swdee/go-dope/postprocess/result"
	"github.com/swdee/go-dope/render"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	// ErrNotImage is returned for files whose content is not an image
	ErrNotImage = errors.New("file is not an image")
	// ErrDecode is returned when an image can not be decoded
	ErrDecode = errors.New("image could not be decoded")
)

// FileDetector detects objects in image files
type FileDetector struct {
	net    Network
	solver *pnp.Solver
	cfg    Config
	// cache holds network outputs between runs, nil disables caching
	cache *cache.Store
	// debugDir receives belief map and overlay images, empty disables
	debugDir string
	log      *zap.Logger
}

// FileDetectorOption configures optional FileDetector behaviour
type FileDetectorOption func(*FileDetector)

// WithCache reuses network outputs stored in store and saves new ones
func WithCache(store *cache.Store) FileDetectorOption {
	return func(d *FileDetector) {
		d.cache = store
	}
}

// WithDebugDir writes the belief map mosaic and the annotated image of
// every file to dir
func WithDebugDir(dir string) FileDetectorOption {
	return func(d *FileDetector) {
		d.debugDir = dir
	}
}

// WithLogger sets the logger, the default discards
func WithLogger(log *zap.Logger) FileDetectorOption {
	return func(d *FileDetector) {
		d.log = log
	}
}

// NewFileDetector returns a FileDetector
func NewFileDetector(net Network, solver *pnp.Solver, cfg Config, opts ...FileDetectorOption) *FileDetector {

	d := &FileDetector{
		net:    net,
		solver: solver,
		cfg:    cfg,
		log:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect decodes the image at path and returns its detections
func (d *FileDetector) Detect(ctx context.Context, path string) ([]result.Detection, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mtype, err := mimetype.DetectFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotImage, filepath.Base(path), mtype.String())
	}

	bgr := gocv.IMRead(path, gocv.IMReadColor)
	defer bgr.Close()

	if bgr.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrDecode, filepath.Base(path))
	}

	img := gocv.NewMat()
	defer img.Close()

	gocv.CvtColor(bgr, &img, gocv.ColorBGRToRGB)

	tensor, sx, sy, err := d.tensor(path, img)

	if err != nil {
		return nil, err
	}

	dets, err := DetectTensor(d.net.Name(), tensor, d.solver, d.cfg, sx, sy)

	if err != nil {
		return nil, err
	}

	for i, det := range dets {
		d.log.Debug("Detection",
			zap.String("image", filepath.Base(path)),
			zap.Int("index", i),
			zap.Bool("localized", det.Localized()),
			zap.Int("points", det.ValidPoints()),
			zap.Float64("score", det.Score),
		)
	}

	if d.debugDir != "" {
		if err := d.writeDebug(path, bgr, tensor, dets); err != nil {
			d.log.Warn("Error writing debug images", zap.String("image", path), zap.Error(err))
		}
	}

	return dets, nil
}

// tensor returns the network output of img from the cache or by running
// the network
func (d *FileDetector) tensor(path string, img gocv.Mat) (*result.Tensor, float64, float64, error) {

	w, h := d.net.InputSize()
	sx := float64(img.Cols()) / float64(w)
	sy := float64(img.Rows()) / float64(h)

	if d.cache != nil {
		t, err := d.cache.Load(path)

		if err == nil {
			return t, sx, sy, nil
		}

		if !errors.Is(err, cache.ErrNotCached) {
			d.log.Warn("Ignoring tensor cache", zap.String("image", path), zap.Error(err))
		}
	}

	input, sx, sy := resizeInput(d.net, img)
	defer input.Close()

	t, err := d.net.Infer(input)

	if err != nil {
		return nil, 0, 0, fmt.Errorf("error detecting %s: %w", filepath.Base(path), err)
	}

	if d.cache != nil {
		if err := d.cache.Save(path, t); err != nil {
			d.log.Warn("Error caching tensor", zap.String("image", path), zap.Error(err))
		}

		if err := d.saveProcessed(path, input); err != nil {
			d.log.Warn("Error caching processed image", zap.String("image", path), zap.Error(err))
		}
	}

	return t, sx, sy, nil
}

// saveProcessed writes the network input next to the cached tensor
func (d *FileDetector) saveProcessed(path string, input gocv.Mat) error {

	bgr := gocv.NewMat()
	defer bgr.Close()

	gocv.CvtColor(input, &bgr, gocv.ColorRGBToBGR)

	file := d.cache.Mapper().ProcessedImageFile(path)

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}

	if !gocv.IMWrite(file, bgr) {
		return fmt.Errorf("error writing %s", file)
	}

	return nil
}

// writeDebug writes <name>.belief.png and <name>.detections.png to the
// debug directory
func (d *FileDetector) writeDebug(path string, bgr gocv.Mat, tensor *result.Tensor, dets []result.Detection) error {

	if err := os.MkdirAll(d.debugDir, 0o755); err != nil {
		return err
	}

	base := filepath.Join(d.debugDir, filepath.Base(path))

	if err := writeGray(base+".belief.png", render.BeliefMosaic(tensor, mosaicScale)); err != nil {
		return err
	}

	overlay := bgr.Clone()
	defer overlay.Close()

	render.Detections(&overlay, dets, render.Pink, 2)
	render.Labels(&overlay, dets, render.Black, render.DefaultFont())

	if !gocv.IMWrite(base+".detections.png", overlay) {
		return fmt.Errorf("error writing %s", base+".detections.png")
	}

	return nil
}

func writeGray(file string, img *image.Gray) error {

	mat, err := gocv.ImageGrayToMatGray(img)

	if err != nil {
		return err
	}

	defer mat.Close()

	if !gocv.IMWrite(file, mat) {
		return fmt.Errorf("error writing %s", file)
	}

	return nil
}
