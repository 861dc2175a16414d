package detector

import (
	"github.com/swdee/go-dope/postprocess/result"
	"gocv.io/x/gocv"
)

// Network runs the pose network on an RGB image already resized to the
// network input size.  dope.Model and dope.PoolNetwork implement it.
type Network interface {
	// Name is the object the network detects
	Name() string
	// InputSize is the width and height of the network input
	InputSize() (width, height int)
	// Infer returns the belief maps and affinity fields of img
	Infer(img gocv.Mat) (*result.Tensor, error)
}
