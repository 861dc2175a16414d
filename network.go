package dope

import (
	"fmt"

	"github.com/swdee/go-dope/postprocess/result"
	"gocv.io/x/gocv"
)

// Infer runs the network on an RGB image resized to the input size and
// returns its belief maps and affinity fields.  Models loaded without
// normalisation compiled in should have SetInputTypeFloat32(true) set, the
// image is then scaled to [-1, 1] (mean 0.5, std 0.5) before inference.
func (m *Model) Infer(img gocv.Mat) (*result.Tensor, error) {

	input := img

	if m.inputTypeFloat32 && img.Type() != gocv.MatTypeCV32FC3 {
		input = gocv.NewMat()
		defer input.Close()

		// (v / 255 - 0.5) / 0.5
		img.ConvertToWithParams(&input, gocv.MatTypeCV32FC3, 2.0/255, -1)
	}

	outputs, err := m.Inference(input)

	if err != nil {
		return nil, fmt.Errorf("error running inference: %w", err)
	}

	defer outputs.Free()

	return outputs.Tensor()
}

// Tensor copies the outputs into a Go owned tensor.  The network may
// produce one output holding the belief maps and affinity fields or one
// output per stage, in which case the last belief map and affinity field
// outputs are used.
func (o *Outputs) Tensor() (*result.Tensor, error) {

	belief, affinity := -1, -1

	for i := range o.Output {
		c, rows, cols := o.Shape(i)

		switch c {
		case result.TensorChannels:
			data, err := o.channelData(i)

			if err != nil {
				return nil, err
			}

			return result.NewTensor(c, rows, cols, data)

		case result.BeliefMapCount:
			belief = i

		case result.AffinityCount:
			affinity = i
		}
	}

	if belief == -1 || affinity == -1 {
		return nil, fmt.Errorf("model outputs do not contain belief maps and affinity fields")
	}

	_, rows, cols := o.Shape(belief)

	if _, ar, ac := o.Shape(affinity); ar != rows || ac != cols {
		return nil, fmt.Errorf("belief map size %dx%d differs from affinity field size %dx%d",
			cols, rows, ac, ar)
	}

	b, err := o.channelData(belief)

	if err != nil {
		return nil, err
	}

	a, err := o.channelData(affinity)

	if err != nil {
		return nil, err
	}

	return result.NewTensor(result.TensorChannels, rows, cols, append(b, a...))
}

// channelData returns a copy of output idx in CHW order
func (o *Outputs) channelData(idx int) ([]float32, error) {

	c, rows, cols := o.Shape(idx)
	buf := o.Output[idx].Buf

	if len(buf) < c*rows*cols {
		return nil, fmt.Errorf("output %d has %d values, expected %d", idx, len(buf), c*rows*cols)
	}

	data := make([]float32, c*rows*cols)

	if !o.IsNHWC(idx) {
		copy(data, buf)
		return data, nil
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for ch := 0; ch < c; ch++ {
				data[ch*rows*cols+y*cols+x] = buf[(y*cols+x)*c+ch]
			}
		}
	}

	return data, nil
}

// PoolNetwork runs inference on models borrowed from a Pool so several
// goroutines can infer in parallel
type PoolNetwork struct {
	pool   *Pool
	name   string
	width  int
	height int
}

// NewPoolNetwork wraps a model pool
func NewPoolNetwork(pool *Pool) *PoolNetwork {

	m := pool.Get()
	defer pool.Return(m)

	w, h := m.InputSize()

	return &PoolNetwork{
		pool:   pool,
		name:   m.Name(),
		width:  w,
		height: h,
	}
}

// Name is the object the models detect
func (n *PoolNetwork) Name() string {
	return n.name
}

// InputSize is the width and height of the model input
func (n *PoolNetwork) InputSize() (int, int) {
	return n.width, n.height
}

// Infer runs a pooled model on img
func (n *PoolNetwork) Infer(img gocv.Mat) (*result.Tensor, error) {

	m := n.pool.Get()
	defer n.pool.Return(m)

	return m.Infer(img)
}
