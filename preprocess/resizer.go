package preprocess

import (
	"image"

	"gocv.io/x/gocv"
)

// Resizer scales source images to the network input size and keeps the
// factors needed to map points found in the network input back onto the
// source image
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// scaleX and scaleY are the source to destination ratios
	scaleX float64
	scaleY float64
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	return &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		scaleX:     float64(srcWidth) / float64(destWidth),
		scaleY:     float64(srcHeight) / float64(destHeight),
	}
}

// Resize stretches src to the destination size.  When the sizes already
// match the pixels are copied unchanged.
func (r *Resizer) Resize(src gocv.Mat, dest *gocv.Mat) {

	if r.srcWidth == r.destWidth && r.srcHeight == r.destHeight {
		src.CopyTo(dest)
		return
	}

	interp := gocv.InterpolationLinear

	if r.destWidth < r.srcWidth {
		interp = gocv.InterpolationArea
	}

	gocv.Resize(src, dest, image.Pt(r.destWidth, r.destHeight), 0, 0, interp)
}

// ScaleFactor returns the factors that convert destination coordinates to
// source image coordinates
func (r *Resizer) ScaleFactor() (float64, float64) {
	return r.scaleX, r.scaleY
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}
