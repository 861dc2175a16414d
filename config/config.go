// Package config loads the settings of the evaluation tools from defaults,
// an optional YAML file, DOPE_ environment variables and command line
// overrides, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/swdee/go-dope/detector"
	"github.com/swdee/go-dope/logger"
	"github.com/swdee/go-dope/pnp"
	"github.com/swdee/go-dope/report"
	"go.uber.org/multierr"
)

// EnvPrefix is the prefix of environment overrides.  Sections are separated
// by a double underscore, eg: DOPE_DETECT__THRESH_MAP=0.02
const EnvPrefix = "DOPE_"

// ModelConfig defines the network
type ModelConfig struct {
	// Name of the detected object, copied to every detection
	Name string `koanf:"name"`
	// File is the RKNN compiled model
	File string `koanf:"file"`
	// Cores are the NPU core masks models are pinned to, eg: auto, 0, 1, 012
	Cores []string `koanf:"cores"`
	// Float32 feeds normalised float32 input instead of uint8 pixels
	Float32 bool `koanf:"float32"`
}

// TestSetConfig defines the images to evaluate
type TestSetConfig struct {
	Dir        string   `koanf:"dir"`
	Extensions []string `koanf:"extensions"`
	Recursive  bool     `koanf:"recursive"`
}

// CameraConfig defines the camera the test set was captured with
type CameraConfig struct {
	// Intrinsics is the row major 3x3 camera matrix
	Intrinsics []float64 `koanf:"intrinsics"`
	// Distortion holds 4 or 5 coefficients
	Distortion []float64 `koanf:"distortion"`
	// Info is an optional ROS camera_info YAML file replacing Intrinsics
	// and Distortion
	Info string `koanf:"info"`
}

// ObjectConfig defines the detected object
type ObjectConfig struct {
	// Size is the cuboid width, height and depth in centimeters
	Size []float64 `koanf:"size"`
}

// OutputConfig defines the report
type OutputConfig struct {
	Path string `koanf:"path"`
	// Schema is A, B or C
	Schema string `koanf:"schema"`
	// Rounding overrides the default numeric policy of the schema
	Rounding string `koanf:"rounding"`
	// Lines optionally streams entries as JSON lines to this file
	Lines string `koanf:"lines"`
	// Stdout mirrors the report to standard output
	Stdout bool `koanf:"stdout"`
	// Silhouette is the outline margin in pixels of schema C
	Silhouette float64 `koanf:"silhouette"`
}

// CacheConfig defines the tensor cache
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`
	// Dir is absolute or relative to each image directory
	Dir string `koanf:"dir"`
}

// RunConfig defines how the batch is processed
type RunConfig struct {
	Workers int `koanf:"workers"`
	// Platform pins the process to CPU cores of a board such as rk3588,
	// empty leaves the affinity unchanged
	Platform string `koanf:"platform"`
	// CPUCores is fast, slow or all
	CPUCores string `koanf:"cpucores"`
	// DebugDir receives belief map and overlay images when set
	DebugDir string `koanf:"debugdir"`
}

// Config is the complete configuration
type Config struct {
	Model   ModelConfig     `koanf:"model"`
	TestSet TestSetConfig   `koanf:"testset"`
	Camera  CameraConfig    `koanf:"camera"`
	Object  ObjectConfig    `koanf:"object"`
	Detect  detector.Config `koanf:"detect"`
	Output  OutputConfig    `koanf:"output"`
	Cache   CacheConfig     `koanf:"cache"`
	Run     RunConfig       `koanf:"run"`
	Log     logger.Config   `koanf:"log"`
}

// Defaults returns the default settings keyed by their dotted path
func Defaults() map[string]any {

	det := detector.DefaultConfig()
	log := logger.DefaultConfig()

	return map[string]any{
		"model.name":    "ChocolatePudding",
		"model.file":    "dope.rknn",
		"model.cores":   []string{},
		"model.float32": false,

		"testset.dir":        "/tmp/dope4j/testset",
		"testset.extensions": []string{".png"},
		"testset.recursive":  false,

		"camera.intrinsics": append([]float64(nil), pnp.DefaultIntrinsics[:]...),
		"camera.distortion": append([]float64(nil), pnp.DefaultDistortion...),
		"camera.info":       "",

		"object.size": []float64{4.947199821472168, 2.9923000335693359, 8.3498001098632812},

		"detect.mask_edges":    det.MaskEdges,
		"detect.mask_faces":    det.MaskFaces,
		"detect.vertex":        det.Vertex,
		"detect.threshold":     det.Threshold,
		"detect.softmax":       det.Softmax,
		"detect.thresh_angle":  det.ThreshAngle,
		"detect.thresh_map":    det.ThreshMap,
		"detect.sigma":         det.Sigma,
		"detect.thresh_points": det.ThreshPoints,

		"output.path":       "/tmp/dope4j/testset/results.json",
		"output.schema":     string(report.SchemaA),
		"output.rounding":   "",
		"output.lines":      "",
		"output.stdout":     true,
		"output.silhouette": 0.0,

		"cache.enabled": false,
		"cache.dir":     "_cache",

		"run.workers":  1,
		"run.platform": "",
		"run.cpucores": "fast",
		"run.debugdir": "",

		"log.level":      log.Level,
		"log.debug":      log.Debug,
		"log.file":       log.File,
		"log.maxsize":    log.MaxSize,
		"log.maxbackups": log.MaxBackups,
	}
}

// Load reads the configuration.  path may be empty to skip the YAML file.
// overrides, keyed by dotted path, take precedence over every other source.
func Load(path string, overrides map[string]any) (*Config, error) {

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading overrides: %w", err)
		}
	}

	var cfg Config

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if cfg.Camera.Info != "" {
		info, err := ReadCameraInfo(cfg.Camera.Info)

		if err != nil {
			return nil, err
		}

		cfg.Camera.Intrinsics = info.CameraMatrix.Data
		cfg.Camera.Distortion = info.DistortionCoefficients.Data
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps DOPE_DETECT__THRESH_MAP to detect.thresh_map.  Values with
// commas become lists, variables outside a section are ignored.
func envKey(s string, v string) (string, any) {

	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")

	// settings all live in a section, eg: DOPE_MODEL alone is not one
	if !strings.Contains(key, ".") {
		return "", nil
	}

	if strings.Contains(v, ",") {
		return key, strings.Split(strings.TrimSpace(v), ",")
	}

	return key, v
}

// Validate checks every section, returning all problems found
func (c *Config) Validate() error {

	var err error

	if c.Model.File == "" {
		err = multierr.Append(err, errors.New("model.file is required"))
	}

	if c.TestSet.Dir == "" {
		err = multierr.Append(err, errors.New("testset.dir is required"))
	}

	if _, cerr := c.Intrinsics(); cerr != nil {
		err = multierr.Append(err, cerr)
	}

	if n := len(c.Camera.Distortion); n != 4 && n != 5 {
		err = multierr.Append(err, fmt.Errorf("camera.distortion needs 4 or 5 coefficients, got %d", n))
	}

	if _, cerr := c.ObjectSize(); cerr != nil {
		err = multierr.Append(err, cerr)
	}

	err = multierr.Append(err, c.Detect.Validate())

	if c.Output.Path == "" {
		err = multierr.Append(err, errors.New("output.path is required"))
	}

	if _, cerr := c.Projector(); cerr != nil {
		err = multierr.Append(err, cerr)
	}

	if c.Cache.Enabled && c.Cache.Dir == "" {
		err = multierr.Append(err, errors.New("cache.dir is required when the cache is enabled"))
	}

	if c.Run.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("run.workers must be at least 1, got %d", c.Run.Workers))
	}

	return multierr.Append(err, c.Log.Validate())
}

// Intrinsics returns the camera matrix as an array
func (c *Config) Intrinsics() ([9]float64, error) {

	var m [9]float64

	if len(c.Camera.Intrinsics) != len(m) {
		return m, fmt.Errorf("camera.intrinsics needs 9 values, got %d", len(c.Camera.Intrinsics))
	}

	copy(m[:], c.Camera.Intrinsics)
	return m, nil
}

// ObjectSize returns the cuboid width, height and depth
func (c *Config) ObjectSize() ([3]float64, error) {

	var dims [3]float64

	if len(c.Object.Size) != len(dims) {
		return dims, fmt.Errorf("object.size needs width, height and depth, got %d values", len(c.Object.Size))
	}

	for i, v := range c.Object.Size {
		if v <= 0 {
			return dims, fmt.Errorf("object.size values must be positive, got %v", c.Object.Size)
		}
		dims[i] = v
	}

	return dims, nil
}

// Projector returns the report projector of the output section
func (c *Config) Projector() (report.Projector, error) {

	schema, err := report.ParseSchema(c.Output.Schema)

	if err != nil {
		return report.Projector{}, err
	}

	p := report.NewProjector(schema)
	p.SilhouetteMargin = c.Output.Silhouette

	rounding, ok, err := report.ParseRounding(c.Output.Rounding)

	if err != nil {
		return report.Projector{}, err
	}

	if ok {
		p.Rounding = rounding
	}

	return p, nil
}
