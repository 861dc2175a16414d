package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-dope/postprocess/result"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// mosaicColumns is the number of belief maps per mosaic row
const mosaicColumns = 3

// BeliefMosaic renders the belief maps of the tensor as a 3x3 grid of
// grayscale tiles, each scaled up by scale and labelled with its map index.
// Belief values are clamped to [0, 1].
func BeliefMosaic(tensor *result.Tensor, scale int) *image.Gray {

	if scale < 1 {
		scale = 1
	}

	tileW, tileH := tensor.Cols*scale, tensor.Rows*scale
	rows := (result.BeliefMapCount + mosaicColumns - 1) / mosaicColumns

	mosaic := image.NewGray(image.Rect(0, 0, tileW*mosaicColumns, tileH*rows))

	for i := 0; i < result.BeliefMapCount; i++ {
		tile := beliefImage(tensor.BeliefMap(i), tensor.Cols, tensor.Rows)

		x0 := (i % mosaicColumns) * tileW
		y0 := (i / mosaicColumns) * tileH
		dst := image.Rect(x0, y0, x0+tileW, y0+tileH)

		draw.NearestNeighbor.Scale(mosaic, dst, tile, tile.Bounds(), draw.Src, nil)

		label(mosaic, x0+2, y0+13, fmt.Sprintf("%d", i))
	}

	return mosaic
}

// beliefImage converts a belief map to a grayscale image
func beliefImage(belief []float32, cols, rows int) *image.Gray {

	img := image.NewGray(image.Rect(0, 0, cols, rows))

	for i, v := range belief {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}

		img.Pix[i] = uint8(v*255 + 0.5)
	}

	return img
}

// label draws text with its baseline at (x, y)
func label(img draw.Image, x, y int, text string) {

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}

	d.DrawString(text)
}
