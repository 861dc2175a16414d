package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-dope/detector"
	"github.com/swdee/go-dope/pnp"
	"github.com/swdee/go-dope/report"
	"go.uber.org/multierr"
)

func writeFile(t *testing.T, name, data string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "ChocolatePudding", cfg.Model.Name)
	assert.Equal(t, "/tmp/dope4j/testset", cfg.TestSet.Dir)
	assert.Equal(t, []string{".png"}, cfg.TestSet.Extensions)
	assert.Equal(t, detector.DefaultConfig(), cfg.Detect)
	assert.Equal(t, "/tmp/dope4j/testset/results.json", cfg.Output.Path)
	assert.True(t, cfg.Output.Stdout)
	assert.Equal(t, 1, cfg.Run.Workers)

	m, err := cfg.Intrinsics()
	require.NoError(t, err)
	assert.Equal(t, pnp.DefaultIntrinsics, m)

	dims, err := cfg.ObjectSize()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{4.947199821472168, 2.9923000335693359, 8.3498001098632812}, dims)

	p, err := cfg.Projector()
	require.NoError(t, err)
	assert.Equal(t, report.SchemaA, p.Schema)
	assert.Equal(t, report.RoundIdentity, p.Rounding)
}

func TestLoadPrecedence(t *testing.T) {

	path := writeFile(t, "dope.yaml", `
model:
  file: /opt/models/dope.rknn
  cores: ["0", "1"]
testset:
  dir: /data/testset
detect:
  sigma: 2
  thresh_map: 0.05
output:
  schema: B
run:
  workers: 3
`)

	t.Setenv("DOPE_DETECT__THRESH_MAP", "0.02")
	t.Setenv("DOPE_OUTPUT__ROUNDING", "identity")
	t.Setenv("DOPE_MODEL", "ignored")

	cfg, err := Load(path, map[string]any{"run.workers": 2})
	require.NoError(t, err)

	assert.Equal(t, "/opt/models/dope.rknn", cfg.Model.File)
	assert.Equal(t, []string{"0", "1"}, cfg.Model.Cores)
	assert.Equal(t, "/data/testset", cfg.TestSet.Dir)
	assert.Equal(t, 2.0, cfg.Detect.Sigma)
	assert.Equal(t, 0.02, cfg.Detect.ThreshMap)
	assert.Equal(t, 0.1, cfg.Detect.ThreshPoints)
	assert.Equal(t, 2, cfg.Run.Workers)

	p, err := cfg.Projector()
	require.NoError(t, err)
	assert.Equal(t, report.SchemaB, p.Schema)
	assert.Equal(t, report.RoundIdentity, p.Rounding)
}

func TestLoadCameraInfo(t *testing.T) {

	info := writeFile(t, "camera_info.yaml", `
image_width: 640
image_height: 480
camera_name: dope
camera_matrix:
  rows: 3
  cols: 3
  data: [600, 0, 300, 0, 610, 250, 0, 0, 1]
distortion_model: plumb_bob
distortion_coefficients:
  rows: 1
  cols: 5
  data: [0.1, -0.2, 0, 0, 0.05]
`)

	cfg, err := Load("", map[string]any{"camera.info": info})
	require.NoError(t, err)

	m, err := cfg.Intrinsics()
	require.NoError(t, err)
	assert.Equal(t, [9]float64{600, 0, 300, 0, 610, 250, 0, 0, 1}, m)
	assert.Equal(t, []float64{0.1, -0.2, 0, 0, 0.05}, cfg.Camera.Distortion)

	_, err = Load("", map[string]any{"camera.info": filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestReadCameraInfoInvalid(t *testing.T) {

	path := writeFile(t, "camera_info.yaml", `
camera_matrix:
  data: [600, 0, 300]
distortion_coefficients:
  data: [0, 0, 0, 0, 0]
`)

	_, err := ReadCameraInfo(path)
	assert.Error(t, err)

	path = writeFile(t, "broken.yaml", "camera_matrix: [")
	_, err = ReadCameraInfo(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {

	_, err := Load("", map[string]any{
		"model.file":        "",
		"camera.distortion": []float64{0, 0},
		"object.size":       []float64{1, 2},
		"output.schema":     "D",
		"run.workers":       0,
	})
	require.Error(t, err)

	assert.Len(t, multierr.Errors(err), 5)
	assert.Contains(t, err.Error(), "model.file")
	assert.Contains(t, err.Error(), "run.workers")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestParseObjectSize(t *testing.T) {

	tests := []struct {
		val     string
		want    []float64
		wantErr bool
	}{
		{"4.947199821472168,2.9923000335693359,8.3498001098632812",
			[]float64{4.947199821472168, 2.9923000335693359, 8.3498001098632812}, false},
		{"1, 2, 3", []float64{1, 2, 3}, false},
		{"1,2", nil, true},
		{"1,x,3", nil, true},
		{"1,0,3", nil, true},
	}

	for _, tc := range tests {
		got, err := ParseObjectSize(tc.val)

		if tc.wantErr {
			assert.Error(t, err, tc.val)
			continue
		}

		require.NoError(t, err, tc.val)
		assert.Equal(t, tc.want, got)
	}
}
