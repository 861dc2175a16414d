package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-dope/postprocess/result"
	"gocv.io/x/gocv"
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Pad is the space between the text and its background box
	Pad int
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Pad:       4,
	}
}

// Labels writes the index and score of each detection above its centroid on
// a filled box of clr.  Detections without a centroid are not labelled.
func Labels(img *gocv.Mat, dets []result.Detection, clr color.RGBA, font Font) {

	for i, d := range dets {
		c := d.Cuboid2D[result.CentroidIndex]

		if d.Localized() {
			c = d.Projected[result.CentroidIndex]
		}

		if c == nil {
			continue
		}

		text := fmt.Sprintf("%d %.2f", i, d.Score)
		size := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// box sits above the centroid marker, centered on it
		center := pt(c)
		left := center.X - size.X/2 - font.Pad
		bottom := center.Y - font.Pad*2
		top := bottom - size.Y - font.Pad*2

		box := image.Rect(left, top, left+size.X+font.Pad*2, bottom)
		gocv.Rectangle(img, box, clr, -1)

		gocv.PutTextWithParams(img, text, image.Pt(left+font.Pad, bottom-font.Pad),
			font.Face, font.Scale, font.Color, font.Thickness, font.LineType, false)
	}
}
