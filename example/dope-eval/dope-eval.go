// dope-eval runs the DOPE pose estimation network over a test set directory
// and writes a JSON report of the detected poses
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/uuid"
	"github.com/swdee/go-dope"
	"github.com/swdee/go-dope/cache"
	"github.com/swdee/go-dope/config"
	"github.com/swdee/go-dope/detector"
	"github.com/swdee/go-dope/harness"
	"github.com/swdee/go-dope/logger"
	"github.com/swdee/go-dope/report"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	flagConfig     = "config"
	flagModel      = "model"
	flagDir        = "dir"
	flagOutput     = "output"
	flagSchema     = "schema"
	flagRounding   = "rounding"
	flagLines      = "lines"
	flagObjectSize = "object-size"
	flagCameraInfo = "camera-info"
	flagWorkers    = "workers"
	flagCores      = "cores"
	flagRecursive  = "recursive"
	flagCache      = "cache"
	flagDebugDir   = "debug-dir"
	flagPlatform   = "platform"
	flagDebug      = "debug"
	flagDelta      = "delta"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configFlag := &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Usage:   "Load configuration from `FILE`",
	}

	debugFlag := &cli.BoolFlag{
		Name:  flagDebug,
		Usage: "Enable debug logging",
	}

	runFlags := []cli.Flag{
		configFlag,
		debugFlag,
		&cli.StringFlag{Name: flagModel, Aliases: []string{"m"}, Usage: "RKNN compiled DOPE model `FILE`"},
		&cli.StringFlag{Name: flagDir, Aliases: []string{"d"}, Usage: "Test set `DIR` of images"},
		&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "Report `FILE`"},
		&cli.StringFlag{Name: flagSchema, Usage: "Report schema A, B or C"},
		&cli.StringFlag{Name: flagRounding, Usage: "Numeric formatting, identity or round3"},
		&cli.StringFlag{Name: flagLines, Usage: "Also stream entries as JSON lines to `FILE`"},
		&cli.StringFlag{Name: flagObjectSize, Usage: "Object cuboid `WIDTH,HEIGHT,DEPTH`"},
		&cli.StringFlag{Name: flagCameraInfo, Usage: "ROS camera_info YAML `FILE`"},
		&cli.IntFlag{Name: flagWorkers, Aliases: []string{"w"}, Usage: "Number of images processed in parallel, each with its own model"},
		&cli.StringSliceFlag{Name: flagCores, Usage: "NPU core masks models are pinned to"},
		&cli.BoolFlag{Name: flagRecursive, Aliases: []string{"r"}, Usage: "Scan sub directories of the test set"},
		&cli.BoolFlag{Name: flagCache, Usage: "Reuse cached network outputs"},
		&cli.StringFlag{Name: flagDebugDir, Usage: "Write belief map and overlay images to `DIR`"},
		&cli.StringFlag{Name: flagPlatform, Usage: "Pin to the fast CPU cores of `PLATFORM`, eg: rk3588"},
	}

	app := &cli.App{
		Name:  "dope-eval",
		Usage: "evaluate DOPE pose estimation on a test set",
		Flags: runFlags,
		// run is the default command
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "detect the poses of every image in the test set and write the report",
				Flags:  runFlags,
				Action: runAction,
			},
			{
				Name:      "compare",
				Usage:     "compare the pose positions of two reports",
				ArgsUsage: "<expected> <actual>",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagDelta, Value: report.PoseDelta, Usage: "Maximum position difference"},
				},
				Action: compareAction,
			},
			{
				Name:   "query",
				Usage:  "print the SDK version and tensor attributes of the model",
				Flags:  []cli.Flag{configFlag, debugFlag, runFlags[2]},
				Action: queryAction,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dope-eval: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration applying the command line flags that
// were set on top of it
func loadConfig(c *cli.Context) (*config.Config, error) {

	overrides := map[string]any{}

	strs := map[string]string{
		flagModel:      "model.file",
		flagDir:        "testset.dir",
		flagOutput:     "output.path",
		flagSchema:     "output.schema",
		flagRounding:   "output.rounding",
		flagLines:      "output.lines",
		flagCameraInfo: "camera.info",
		flagDebugDir:   "run.debugdir",
		flagPlatform:   "run.platform",
	}

	for flag, key := range strs {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}

	if c.IsSet(flagObjectSize) {
		size, err := config.ParseObjectSize(c.String(flagObjectSize))

		if err != nil {
			return nil, err
		}

		overrides["object.size"] = size
	}

	if c.IsSet(flagWorkers) {
		overrides["run.workers"] = c.Int(flagWorkers)
	}

	if c.IsSet(flagCores) {
		overrides["model.cores"] = c.StringSlice(flagCores)
	}

	if c.IsSet(flagRecursive) {
		overrides["testset.recursive"] = c.Bool(flagRecursive)
	}

	if c.IsSet(flagCache) {
		overrides["cache.enabled"] = c.Bool(flagCache)
	}

	if c.IsSet(flagDebug) {
		overrides["log.debug"] = c.Bool(flagDebug)
	}

	return config.Load(c.String(flagConfig), overrides)
}

// openNetwork loads a single model or, for parallel runs, a pool with one
// model per worker
func openNetwork(cfg *config.Config) (detector.Network, func() error, error) {

	cores := make([]dope.CoreMask, 0, len(cfg.Model.Cores))

	for _, val := range cfg.Model.Cores {
		core, err := dope.ParseCoreMask(val)

		if err != nil {
			return nil, nil, err
		}

		cores = append(cores, core)
	}

	if cfg.Run.Workers == 1 {
		core := dope.NPUCoreAuto

		if len(cores) > 0 {
			core = cores[0]
		}

		m, err := dope.LoadModel(cfg.Model.Name, cfg.Model.File, core)

		if err != nil {
			return nil, nil, err
		}

		m.SetInputTypeFloat32(cfg.Model.Float32)

		return m, m.Close, nil
	}

	pool, err := dope.NewPool(cfg.Run.Workers, cfg.Model.Name, cfg.Model.File, cores)

	if err != nil {
		return nil, nil, err
	}

	pool.SetInputTypeFloat32(cfg.Model.Float32)

	return dope.NewPoolNetwork(pool), pool.Close, nil
}

func setAffinity(platform, cores string) error {

	ct, err := dope.ParseCoreType(cores)

	if err != nil {
		return err
	}

	return dope.SetCPUAffinityByPlatform(platform, ct)
}

func runAction(c *cli.Context) error {

	cfg, err := loadConfig(c)

	if err != nil {
		return cli.Exit(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	log, err := logger.New(cfg.Log)

	if err != nil {
		return cli.Exit(fmt.Sprintf("Error creating logger: %v", err), 1)
	}

	defer log.Sync()

	runID, err := uuid.NewV4()

	if err != nil {
		return cli.Exit(fmt.Sprintf("Error creating run id: %v", err), 1)
	}

	log = log.With(zap.String("run", runID.String()))

	if cfg.Run.Platform != "" {
		if err := setAffinity(cfg.Run.Platform, cfg.Run.CPUCores); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		log.Debug("Set CPU affinity", zap.String("platform", cfg.Run.Platform),
			zap.String("cores", cfg.Run.CPUCores))
	}

	// fail before spending time on the test set
	if err := report.CheckWritable(cfg.Output.Path); err != nil {
		log.Error("Report can not be written", zap.Error(err))
		return cli.Exit(err.Error(), 1)
	}

	net, closeNet, err := openNetwork(cfg)

	if err != nil {
		log.Error("Error loading model", zap.String("model", cfg.Model.File), zap.Error(err))
		return cli.Exit(err.Error(), 1)
	}

	// checked by Validate
	intrinsics, _ := cfg.Intrinsics()
	dims, _ := cfg.ObjectSize()
	projector, _ := cfg.Projector()

	solver, err := detector.ConfigureSolver(intrinsics, cfg.Camera.Distortion, dims)

	if err != nil {
		closeNet()
		return cli.Exit(err.Error(), 1)
	}

	defer func() {
		if cerr := multierr.Combine(solver.Close(), closeNet()); cerr != nil {
			log.Warn("Error releasing resources", zap.Error(cerr))
		}
	}()

	opts := []detector.FileDetectorOption{detector.WithLogger(log)}

	if cfg.Cache.Enabled {
		opts = append(opts, detector.WithCache(cache.NewStore(cache.NewMapper(cfg.Cache.Dir, cfg.TestSet.Dir))))
	}

	if cfg.Run.DebugDir != "" {
		opts = append(opts, detector.WithDebugDir(cfg.Run.DebugDir))
	}

	det := detector.NewFileDetector(net, solver, cfg.Detect, opts...)

	hopts := harness.Options{
		Dir:        cfg.TestSet.Dir,
		Extensions: cfg.TestSet.Extensions,
		Recursive:  cfg.TestSet.Recursive,
		Workers:    cfg.Run.Workers,
		Exclude:    []string{cfg.Cache.Dir},
	}

	if cfg.Run.DebugDir != "" {
		// resolved so a plain name only skips the debug directory itself
		debugDir, err := filepath.Abs(cfg.Run.DebugDir)

		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		hopts.Exclude = append(hopts.Exclude, debugDir)
	}

	if cfg.Output.Lines != "" {
		lines, err := report.OpenLineWriter(cfg.Output.Lines)

		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		defer lines.Close()
		hopts.Entries = lines
	}

	log.Info("Starting run",
		zap.String("model", cfg.Model.File),
		zap.String("testset", cfg.TestSet.Dir),
		zap.String("schema", string(projector.Schema)),
		zap.String("rounding", projector.Rounding.String()),
		zap.Int("workers", cfg.Run.Workers),
	)

	rep, sum, runErr := harness.New(det, projector, hopts, log).Run(c.Context)

	var echo io.Writer

	if cfg.Output.Stdout {
		echo = os.Stdout
	}

	// a cancelled run still leaves the entries processed so far
	if err := report.WriteFile(cfg.Output.Path, rep, echo); err != nil {
		log.Error("Error writing report", zap.String("path", cfg.Output.Path), zap.Error(err))
		return cli.Exit(err.Error(), 1)
	}

	log.Info("Completed run",
		zap.String("report", cfg.Output.Path),
		zap.Int("images", sum.Images),
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("detections", sum.Detections),
		zap.Int("localized", sum.Localized),
		zap.Duration("duration", sum.Duration),
	)

	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}

	return nil
}

func compareAction(c *cli.Context) error {

	if c.NArg() != 2 {
		return cli.Exit("compare needs the expected and actual report files", 1)
	}

	expected, err := report.Read(c.Args().Get(0))

	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	actual, err := report.Read(c.Args().Get(1))

	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := report.Compare(expected, actual, c.Float64(flagDelta)); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, e)
		}

		return cli.Exit(fmt.Sprintf("%d differences", len(multierr.Errors(err))), 1)
	}

	fmt.Printf("%d entries match\n", len(expected))
	return nil
}

func queryAction(c *cli.Context) error {

	cfg, err := loadConfig(c)

	if err != nil {
		return cli.Exit(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	m, err := dope.LoadModel(cfg.Model.Name, cfg.Model.File, dope.NPUCoreAuto)

	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer m.Close()

	if err := m.Query(os.Stdout); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}
