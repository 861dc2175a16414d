package detector

import (
	"fmt"

	"github.com/swdee/go-dope/postprocess"
)

// Config enumerates the detection options.  It is built once per run and
// shared read only by every detection.
type Config struct {
	// MaskEdges, MaskFaces, Vertex, Threshold and Softmax are accepted for
	// compatibility with existing detection configurations, decoding does
	// not use them
	MaskEdges int     `koanf:"mask_edges"`
	MaskFaces int     `koanf:"mask_faces"`
	Vertex    int     `koanf:"vertex"`
	Threshold float64 `koanf:"threshold"`
	Softmax   float64 `koanf:"softmax"`
	// ThreshAngle is the maximum affinity angle distance between a vertex
	// and its centroid
	ThreshAngle float64 `koanf:"thresh_angle"`
	// ThreshMap is the minimum smoothed belief of a peak
	ThreshMap float64 `koanf:"thresh_map"`
	// Sigma is the Gaussian smoothing applied to belief maps
	Sigma float64 `koanf:"sigma"`
	// ThreshPoints is the minimum belief of a centroid or vertex
	ThreshPoints float64 `koanf:"thresh_points"`
}

// DefaultConfig returns the configuration the test sets were evaluated with
func DefaultConfig() Config {
	return Config{
		MaskEdges:    1,
		MaskFaces:    1,
		Vertex:       1,
		Threshold:    0.5,
		Softmax:      1000,
		ThreshAngle:  0.5,
		ThreshMap:    0.01,
		Sigma:        3,
		ThreshPoints: 0.1,
	}
}

// Validate checks the thresholds are usable
func (c Config) Validate() error {

	if c.Sigma < 0 {
		return fmt.Errorf("sigma must not be negative, got %v", c.Sigma)
	}

	if c.ThreshAngle <= 0 {
		return fmt.Errorf("thresh_angle must be positive, got %v", c.ThreshAngle)
	}

	if c.ThreshMap < 0 || c.ThreshPoints < 0 {
		return fmt.Errorf("thresh_map and thresh_points must not be negative")
	}

	return nil
}

// Params returns the belief map decoding parameters of the configuration
func (c Config) Params() postprocess.DOPEParams {

	p := postprocess.DOPEDefaultParams()
	p.Sigma = c.Sigma
	p.ThreshMap = c.ThreshMap
	p.ThreshPoints = c.ThreshPoints
	p.ThreshAngle = c.ThreshAngle

	return p
}
