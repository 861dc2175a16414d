package result

import "fmt"

const (
	// BeliefMapCount is the number of belief maps, one per cuboid vertex
	// plus one for the centroid
	BeliefMapCount = 9
	// AffinityCount is the number of affinity field channels, an x and y
	// vector component for each of the eight vertices
	AffinityCount = 16
	// TensorChannels is the channel count of a DOPE output tensor
	TensorChannels = BeliefMapCount + AffinityCount
)

// Tensor is a DOPE network output in CHW layout.  The first BeliefMapCount
// channels are the belief maps, the remaining channels the affinity fields.
type Tensor struct {
	Channels int
	Rows     int
	Cols     int
	Data     []float32
}

// NewTensor checks the shape of data and wraps it
func NewTensor(channels, rows, cols int, data []float32) (*Tensor, error) {

	if channels != TensorChannels {
		return nil, fmt.Errorf("tensor has %d channels, expected %d", channels, TensorChannels)
	}

	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid tensor size %dx%d", cols, rows)
	}

	if len(data) != channels*rows*cols {
		return nil, fmt.Errorf("tensor data length %d does not match shape %dx%dx%d",
			len(data), channels, rows, cols)
	}

	return &Tensor{
		Channels: channels,
		Rows:     rows,
		Cols:     cols,
		Data:     data,
	}, nil
}

// Channel returns the data of channel c
func (t *Tensor) Channel(c int) []float32 {
	size := t.Rows * t.Cols
	return t.Data[c*size : (c+1)*size]
}

// BeliefMap returns belief map i, 0-7 are the vertices and 8 the centroid
func (t *Tensor) BeliefMap(i int) []float32 {
	return t.Channel(i)
}

// Affinity returns the affinity vector of vertex i at map cell (x, y)
func (t *Tensor) Affinity(i, x, y int) (float64, float64) {
	idx := y*t.Cols + x
	return float64(t.Channel(BeliefMapCount + i*2)[idx]),
		float64(t.Channel(BeliefMapCount + i*2 + 1)[idx])
}
