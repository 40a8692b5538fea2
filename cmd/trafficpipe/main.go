// Command trafficpipe turns regions into ns-2 mobility traces with the SUMO tools.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/driver"
	"github.com/askiada/go-traffic-pipeline/internal/geo"
	"github.com/askiada/go-traffic-pipeline/internal/stage"
	"github.com/askiada/go-traffic-pipeline/internal/sumo"
	"github.com/askiada/go-traffic-pipeline/internal/toolexec"
	"github.com/askiada/go-traffic-pipeline/internal/variant"
	"github.com/askiada/go-traffic-pipeline/pkg/pipeline"
)

// Exit codes.
const (
	exitOK      = 0
	exitSetup   = 1
	exitAborted = 2
)

var (
	configPath = flag.String("config", "pipeline.yaml", "config file path")
	variantArg = flag.String("variant", "", "pipeline variant, overrides the config file")
	workers    = flag.Int("workers", 0, "regions processed at the same time, overrides the config file")
	dryRun     = flag.Bool("dry-run", false, "log the commands without running them")
	graphFile  = flag.String("graph", "", "write the DOT graph of the run with step durations to this file")
	planGraph  = flag.String("plan-graph", "", "write the DOT graph of the stage dependencies to this file")
	strict     = flag.Bool("strict", false, "exit with status 2 when a region or a vehicle class was aborted")

	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "log level (trace debug info warn error critical off)")

	log = logrus.WithField("module", "trafficpipe")
)

type options struct {
	configPath string
	variant    string
	workers    int
	dryRun     bool
	graphFile  string
	planGraph  string
	strict     bool
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.0000",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Errorf("log.level must be one of %v", logLevels)
		os.Exit(exitSetup)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using the environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, options{
		configPath: *configPath,
		variant:    *variantArg,
		workers:    *workers,
		dryRun:     *dryRun,
		graphFile:  *graphFile,
		planGraph:  *planGraph,
		strict:     *strict,
	})
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, opts options) int {
	cfg, err := loadConfig(opts)
	if err != nil {
		log.Error(err)

		return exitSetup
	}

	plan, err := variant.ForVariant(cfg.Variant, stage.DefaultRegistry())
	if err != nil {
		log.Error(err)

		return exitSetup
	}
	if opts.planGraph != "" {
		err = writePlanGraph(plan, opts.planGraph)
		if err != nil {
			log.Error(err)

			return exitSetup
		}
	}

	tools := sumo.New(cfg.Tools)
	if !opts.dryRun {
		err = tools.Check(plan.Tools()...)
		if err != nil {
			log.Error(err)

			return exitSetup
		}
	}

	geocoder, closeGeocoder, err := newGeocoder(cfg)
	if err != nil {
		log.Error(err)

		return exitSetup
	}
	defer closeGeocoder()

	summary, err := driver.Run(ctx, driver.Options{
		Plan: plan,
		Env: &stage.Env{
			Config:   cfg,
			Tools:    tools,
			Runner:   toolexec.NewExecRunner(cfg.Tools.Timeout, opts.dryRun),
			Geocoder: geocoder,
			DryRun:   opts.dryRun,
		},
		GraphFile: opts.graphFile,
	})
	if err != nil {
		entry := log.WithError(err)
		var stepErr *pipeline.StepError
		if errors.As(err, &stepErr) {
			entry = entry.WithField("step", stepErr.Step)
		}
		entry.Error("run interrupted")

		return exitSetup
	}

	if !summary.OK() {
		for _, sErr := range summary.Failures() {
			log.WithField("diagnostic", sErr.Diagnostic).Warn(sErr.Error())
		}
		if opts.strict {
			return exitAborted
		}
	}

	return exitOK
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.variant != "" {
		cfg.Variant = opts.variant
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	// the variant picks some defaults
	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, stage.NewError(stage.KindConfiguration, "config", opts.configPath, err)
	}

	return cfg, nil
}

func writePlanGraph(plan *variant.Plan, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}

	err = plan.WriteDOT(f)
	if err != nil {
		_ = f.Close()

		return err
	}

	return errors.Wrapf(f.Close(), "unable to close %s", path)
}

func newGeocoder(cfg *config.Config) (geo.Geocoder, func(), error) {
	nominatim := geo.NewNominatim(cfg.Geocoder.URL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout)
	if cfg.Geocoder.CacheDB == "" {
		return nominatim, func() {}, nil
	}

	db, err := geo.OpenCache(cfg.Geocoder.CacheDB)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("unable to close geocode cache")
		}
	}

	return &geo.CachedGeocoder{Geocoder: nominatim, Cache: geo.NewSQLiteCache(db)}, closeDB, nil
}
