package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/swdee/go-dope/postprocess/result"
	"github.com/swdee/go-dope/report"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Detector finds the objects in one image file
type Detector interface {
	Detect(ctx context.Context, path string) ([]result.Detection, error)
}

// EntryWriter receives every entry as soon as its image completes
type EntryWriter interface {
	Write(e report.Entry) error
}

// Options configure a batch run
type Options struct {
	// Dir is the test set directory
	Dir string
	// Extensions filters the images of Dir, eg: .png
	Extensions []string
	// Recursive scans the sub directories of Dir
	Recursive bool
	// Exclude lists directories the recursive scan skips, such as the tensor
	// cache and debug output
	Exclude []string
	// Workers is the number of images processed in parallel
	Workers int
	// Entries optionally streams entries as they complete
	Entries EntryWriter
}

// Summary describes a finished run
type Summary struct {
	Images     int
	Processed  int
	Skipped    int
	Detections int
	Localized  int
	Duration   time.Duration
	// Skips combines the errors of all skipped images
	Skips error
}

// Harness runs a Detector over a test set and collects the report
type Harness struct {
	detector  Detector
	projector report.Projector
	opts      Options
	log       *zap.Logger
}

// New returns a Harness.  Workers below one run sequentially.
func New(detector Detector, projector report.Projector, opts Options, log *zap.Logger) *Harness {

	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Harness{
		detector:  detector,
		projector: projector,
		opts:      opts,
		log:       log,
	}
}

// outcome is the result of one image
type outcome struct {
	entry report.Entry
	dets  []result.Detection
	done  bool
}

// Run processes every image of the test set.  A failing image is logged and
// recorded as a skipped entry.  When ctx is cancelled no further images are
// started and the report of the images finished so far is returned along
// with the context error.
func (h *Harness) Run(ctx context.Context) (report.Report, Summary, error) {

	start := time.Now()

	files, err := ListImages(h.opts.Dir, h.opts.Extensions, h.opts.Recursive, h.opts.Exclude...)

	if err != nil {
		return nil, Summary{}, err
	}

	h.log.Info("Processing test set",
		zap.String("dir", h.opts.Dir),
		zap.Int("images", len(files)),
		zap.Int("workers", h.opts.Workers),
	)

	outcomes := make([]outcome, len(files))

	var (
		writeMu  sync.Mutex
		writeErr error
	)

	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)

		for i := range files {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}

		return nil
	})

	for w := 0; w < h.opts.Workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				if gctx.Err() != nil {
					continue
				}

				o, ok := h.process(gctx, files[i])

				if !ok {
					continue
				}

				outcomes[i] = o

				if h.opts.Entries != nil {
					writeMu.Lock()
					writeErr = multierr.Append(writeErr, h.opts.Entries.Write(o.entry))
					writeMu.Unlock()
				}
			}

			return nil
		})
	}

	g.Wait()

	rep := make(report.Report, 0, len(files))
	sum := Summary{Images: len(files)}

	for _, o := range outcomes {
		if !o.done {
			continue
		}

		rep = append(rep, o.entry)

		if o.entry.Skipped() {
			sum.Skipped++
			sum.Skips = multierr.Append(sum.Skips,
				fmt.Errorf("%s: %s", o.entry.ImagePath, o.entry.Error))
			continue
		}

		sum.Processed++
		sum.Detections += len(o.dets)

		for _, d := range o.dets {
			if d.Localized() {
				sum.Localized++
			}
		}
	}

	sum.Duration = time.Since(start)

	h.log.Info("Finished test set",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("detections", sum.Detections),
		zap.Int("localized", sum.Localized),
		zap.Duration("duration", sum.Duration),
	)

	if err := ctx.Err(); err != nil {
		return rep, sum, fmt.Errorf("run interrupted after %d of %d images: %w",
			len(rep), len(files), err)
	}

	if writeErr != nil {
		return rep, sum, fmt.Errorf("error streaming entries: %w", writeErr)
	}

	return rep, sum, nil
}

// process detects the objects of one image.  It returns false when the
// image was abandoned because the run was cancelled.  A panic while
// detecting is recorded as a skipped entry.
func (h *Harness) process(ctx context.Context, path string) (o outcome, ok bool) {

	name := h.imageName(path)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)

			h.log.Error("Skipping image", zap.String("image", name), zap.Error(err),
				zap.Stack("stack"))

			o, ok = outcome{entry: h.projector.Skipped(name, err), done: true}, true
		}
	}()

	dets, err := h.detector.Detect(ctx, path)

	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, false
		}

		h.log.Warn("Skipping image", zap.String("image", name), zap.Error(err))

		return outcome{entry: h.projector.Skipped(name, err), done: true}, true
	}

	h.log.Debug("Processed image",
		zap.String("image", name),
		zap.Int("detections", len(dets)),
		zap.Duration("duration", time.Since(start)),
	)

	return outcome{
		entry: h.projector.Project(name, dets),
		dets:  dets,
		done:  true,
	}, true
}

// imageName is the identifier of an image in the report, its path relative
// to the test set directory
func (h *Harness) imageName(path string) string {

	if rel, err := filepath.Rel(h.opts.Dir, path); err == nil {
		return filepath.ToSlash(rel)
	}

	return filepath.Base(path)
}
