package render

import "image/color"

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
	Pink   = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Blue   = color.RGBA{R: 0, G: 0, B: 255, A: 255}

	// faceColors are used for the cuboid edges, front face, rear face and
	// the edges joining them
	faceColors = [3]color.RGBA{
		{R: 255, G: 56, B: 56, A: 255},  // #FF3838
		{R: 0, G: 194, B: 255, A: 255},  // #00C2FF
		{R: 255, G: 178, B: 29, A: 255}, // #FFB21D
	}

	// vertexColors are used for the matched vertices of each belief map,
	// the last color is the centroid
	vertexColors = [9]color.RGBA{
		{R: 255, G: 56, B: 56, A: 255},   // #FF3838
		{R: 255, G: 112, B: 31, A: 255},  // #FF701F
		{R: 255, G: 178, B: 29, A: 255},  // #FFB21D
		{R: 207, G: 210, B: 49, A: 255},  // #CFD231
		{R: 72, G: 249, B: 10, A: 255},   // #48F90A
		{R: 26, G: 147, B: 52, A: 255},   // #1A9334
		{R: 0, G: 212, B: 187, A: 255},   // #00D4BB
		{R: 0, G: 194, B: 255, A: 255},   // #00C2FF
		{R: 255, G: 255, B: 255, A: 255}, // #FFFFFF
	}
)
