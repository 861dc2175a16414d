package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Matrix is a row major matrix of a ROS camera_info file
type Matrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

// CameraInfo holds the fields of a ROS camera_info YAML file used for pose
// estimation
type CameraInfo struct {
	ImageWidth             int    `yaml:"image_width"`
	ImageHeight            int    `yaml:"image_height"`
	CameraName             string `yaml:"camera_name"`
	CameraMatrix           Matrix `yaml:"camera_matrix"`
	DistortionModel        string `yaml:"distortion_model"`
	DistortionCoefficients Matrix `yaml:"distortion_coefficients"`
}

// ReadCameraInfo reads a ROS camera_info YAML file
func ReadCameraInfo(path string) (*CameraInfo, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading camera info: %w", err)
	}

	var info CameraInfo

	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("error parsing camera info %s: %w", path, err)
	}

	if n := len(info.CameraMatrix.Data); n != 9 {
		return nil, fmt.Errorf("camera info %s: camera_matrix needs 9 values, got %d", path, n)
	}

	if n := len(info.DistortionCoefficients.Data); n != 4 && n != 5 {
		return nil, fmt.Errorf("camera info %s: distortion_coefficients needs 4 or 5 values, got %d", path, n)
	}

	return &info, nil
}

// ParseObjectSize parses a "width,height,depth" cuboid size
func ParseObjectSize(val string) ([]float64, error) {

	parts := strings.Split(val, ",")

	if len(parts) != 3 {
		return nil, fmt.Errorf("object size %q is not width,height,depth", val)
	}

	size := make([]float64, len(parts))

	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)

		if err != nil {
			return nil, fmt.Errorf("object size %q: %w", val, err)
		}

		if v <= 0 {
			return nil, fmt.Errorf("object size %q must be positive", val)
		}

		size[i] = v
	}

	return size, nil
}
