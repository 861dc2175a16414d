package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-dope/postprocess/result"
	"github.com/swdee/go-dope/report"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/num/quat"
)

// fakeDetector returns canned detections per image base name
type fakeDetector struct {
	mu      sync.Mutex
	results map[string][]result.Detection
	errs    map[string]error
	calls   []string
	onCall  func(name string)
}

func (f *fakeDetector) Detect(ctx context.Context, path string) ([]result.Detection, error) {

	name := filepath.Base(path)

	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(name)
	}

	if err := f.errs[name]; err != nil {
		return nil, err
	}

	return f.results[name], nil
}

// touch creates empty files under dir
func touch(t *testing.T, dir string, names ...string) {
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

func localized(x, y, z float64) result.Detection {
	loc := r3.Vector{X: x, Y: y, Z: z}
	q := quat.Number{Real: 1}

	d := result.Detection{Location: &loc, Quaternion: &q}

	for i := range d.Projected {
		d.Projected[i] = &result.Point2D{X: float64(i), Y: float64(i)}
	}

	return d
}

// memWriter records streamed entries
type memWriter struct {
	mu      sync.Mutex
	entries []report.Entry
}

func (m *memWriter) Write(e report.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func TestListImages(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "c.png", "a.PNG", "b.jpg", "notes.txt", "sub/d.png", "a/b.png")

	files, err := ListImages(dir, []string{".png"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.PNG"),
		filepath.Join(dir, "c.png"),
	}, files)

	files, err = ListImages(dir, []string{"png", ".JPG"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.PNG"),
		filepath.Join(dir, "a/b.png"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "c.png"),
		filepath.Join(dir, "sub/d.png"),
	}, files)

	// default extension
	files, err = ListImages(dir, nil, false)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = ListImages(filepath.Join(dir, "missing"), nil, false)
	assert.Error(t, err)

	_, err = ListImages(filepath.Join(dir, "c.png"), nil, false)
	assert.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "b.jpg", "a.jpg")

	det := &fakeDetector{
		results: map[string][]result.Detection{
			"a.jpg": {localized(1, 2, 3)},
		},
	}

	h := New(det, report.NewProjector(report.SchemaB),
		Options{Dir: dir, Extensions: []string{".jpg"}}, zaptest.NewLogger(t))

	rep, sum, err := h.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep, 2)
	assert.Equal(t, "a.jpg", rep[0].ImagePath)
	assert.Equal(t, "b.jpg", rep[1].ImagePath)

	a := rep[0].DetectedPoses
	require.NotNil(t, a)
	require.Len(t, a.Poses, 1)
	assert.Equal(t, &report.Point3{X: 1, Y: 2, Z: 3}, a.Poses[0].Position)
	assert.Equal(t, []float64{0, 0, 0, 1}, a.Poses[0].Orientation.Values)

	b := rep[1].DetectedPoses
	require.NotNil(t, b)
	assert.Empty(t, b.Poses)

	assert.Equal(t, Summary{
		Images:     2,
		Processed:  2,
		Detections: 1,
		Localized:  1,
		Duration:   sum.Duration,
	}, sum)

	assert.Equal(t, []string{"a.jpg", "b.jpg"}, det.calls)
}

func TestRunSkipsCorruptImage(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "000.png", "001.png", "002.png")

	det := &fakeDetector{
		results: map[string][]result.Detection{
			"000.png": {localized(1, 1, 10)},
			"002.png": {localized(2, 2, 20)},
		},
		errs: map[string]error{
			"001.png": errors.New("image decode failed"),
		},
	}

	stream := &memWriter{}

	h := New(det, report.NewProjector(report.SchemaA),
		Options{Dir: dir, Entries: stream}, zaptest.NewLogger(t))

	rep, sum, err := h.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep, 3)
	assert.False(t, rep[0].Skipped())
	assert.True(t, rep[1].Skipped())
	assert.Equal(t, "image decode failed", rep[1].Error)
	assert.False(t, rep[2].Skipped())

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, multierr.Errors(sum.Skips), 1)
	assert.Len(t, stream.entries, 3)
}

func TestRunWorkersKeepOrder(t *testing.T) {

	dir := t.TempDir()
	names := []string{"05.png", "01.png", "03.png", "02.png", "04.png", "00.png"}
	touch(t, dir, names...)

	det := &fakeDetector{results: map[string][]result.Detection{}}

	for i, name := range names {
		det.results[name] = []result.Detection{localized(float64(i), 0, 1)}
	}

	h := New(det, report.NewProjector(report.SchemaC),
		Options{Dir: dir, Workers: 4}, zaptest.NewLogger(t))

	rep, sum, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep, len(names))

	for i, e := range rep {
		assert.Equal(t, filepath.Base(e.ImagePath), e.ImagePath)
		assert.Equal(t, "0"+string(rune('0'+i))+".png", e.ImagePath)
	}

	assert.Equal(t, len(names), sum.Localized)
}

func TestRunCancelled(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "a.png", "b.png", "c.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	det := &fakeDetector{
		onCall: func(name string) {
			if name == "b.png" {
				cancel()
			}
		},
	}

	h := New(det, report.NewProjector(report.SchemaA), Options{Dir: dir}, zaptest.NewLogger(t))

	rep, _, err := h.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, rep, 2)
	assert.Equal(t, "a.png", rep[0].ImagePath)
	assert.Equal(t, "b.png", rep[1].ImagePath)
	assert.Equal(t, []string{"a.png", "b.png"}, det.calls)

	// the partial report is still a valid document
	data, err := report.Marshal(rep)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRunRecursiveNames(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "scene1/000.png", "scene2/000.png")

	h := New(&fakeDetector{}, report.NewProjector(report.SchemaA),
		Options{Dir: dir, Recursive: true}, nil)

	rep, _, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep, 2)
	assert.Equal(t, "scene1/000.png", rep[0].ImagePath)
	assert.Equal(t, "scene2/000.png", rep[1].ImagePath)
}

func TestListImagesExclude(t *testing.T) {

	dir := t.TempDir()
	debug := filepath.Join(dir, "out", "debug")
	touch(t, dir, "000.png", "_cache/000.png.png", "scene/001.png",
		"scene/_cache/001.png.png", "out/debug/000.png.belief.png", "out/keep.png")

	files, err := ListImages(dir, nil, true, "_cache", debug)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "000.png"),
		filepath.Join(dir, "out/keep.png"),
		filepath.Join(dir, "scene/001.png"),
	}, files)

	// excludes only apply below the test set directory
	files, err = ListImages(filepath.Join(dir, "_cache"), nil, true, "_cache")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "_cache/000.png.png")}, files)
}

func TestRunExcludesCache(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "000.png", "_cache/000.png.png")

	det := &fakeDetector{}

	h := New(det, report.NewProjector(report.SchemaA),
		Options{Dir: dir, Recursive: true, Exclude: []string{"_cache"}}, zaptest.NewLogger(t))

	rep, sum, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep, 1)
	assert.Equal(t, "000.png", rep[0].ImagePath)
	assert.Equal(t, 1, sum.Images)
	assert.Equal(t, []string{"000.png"}, det.calls)
}

func TestRunRecoversPanic(t *testing.T) {

	dir := t.TempDir()
	touch(t, dir, "000.png", "001.png", "002.png")

	det := &fakeDetector{
		results: map[string][]result.Detection{
			"000.png": {localized(1, 1, 10)},
			"002.png": {localized(2, 2, 20)},
		},
		onCall: func(name string) {
			if name == "001.png" {
				var points []float64
				_ = points[3]
			}
		},
	}

	stream := &memWriter{}

	h := New(det, report.NewProjector(report.SchemaA),
		Options{Dir: dir, Workers: 2, Entries: stream}, zaptest.NewLogger(t))

	var (
		rep report.Report
		sum Summary
		err error
	)

	require.NotPanics(t, func() {
		rep, sum, err = h.Run(context.Background())
	})
	require.NoError(t, err)

	require.Len(t, rep, 3)
	assert.False(t, rep[0].Skipped())
	assert.True(t, rep[1].Skipped())
	assert.Contains(t, rep[1].Error, "panic: runtime error: index out of range")
	assert.False(t, rep[2].Skipped())

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, stream.entries, 3)
}
