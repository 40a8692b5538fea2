// Package driver runs a plan over every region of the configuration.
//
// Regions flow through a channel pipeline: a root step emits them, a layout step prepares their scratch
// directory, a stage step runs the region chain then the chain of each vehicle class, and a sink collects
// the reports. Up to Workers regions run at the same time.
package driver

import (
	"context"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-traffic-pipeline/internal/config"
	"github.com/askiada/go-traffic-pipeline/internal/stage"
	"github.com/askiada/go-traffic-pipeline/internal/variant"
	"github.com/askiada/go-traffic-pipeline/pkg/pipeline"
	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/drawer"
	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/measure"
	"github.com/askiada/go-traffic-pipeline/pkg/pipeline/model"
)

var log = logrus.WithField("module", "driver")

// Options configures a run.
type Options struct {
	Plan *variant.Plan
	Env  *stage.Env
	// Workers is the number of regions processed at the same time. Defaults to the configured workers.
	Workers int
	// GraphFile receives the DOT graph of the run, with step durations, when set.
	GraphFile string
}

type regionJob struct {
	index  int
	region config.Region
	layout stage.Layout
}

// Run processes every region and returns one report per chain. Stage failures are reported, not returned:
// the error is only set when the run itself could not complete.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Plan == nil || opts.Env == nil || opts.Env.Config == nil {
		return nil, ErrMissingOptions
	}
	cfg := opts.Env.Config
	workers := opts.Workers
	if workers < 1 {
		workers = cfg.Workers
	}

	runID := uuid.New().String()
	entry := log.WithFields(logrus.Fields{
		"run":     runID,
		"variant": opts.Plan.Name,
	})
	if opts.Env.DryRun {
		entry = entry.WithField("dry_run", true)
	}

	var pipeOpts []model.PipelineOption
	if opts.GraphFile != "" {
		msr := measure.NewDefaultMeasure()
		pipeOpts = append(pipeOpts,
			measure.PipelineMeasure(msr),
			drawer.PipelineDrawer(drawer.NewDOTDrawer(opts.GraphFile), msr),
		)
	}

	pipe, err := pipeline.New(ctx, pipeOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	regions := cfg.PipelineRegions()
	entry.WithField("workers", workers).Infof("processing %d regions", len(regions))

	rootStep, err := pipeline.AddRootStep(pipe, "regions", func(ctx context.Context, rootChan chan<- regionJob) error {
		for i, region := range regions {
			job := regionJob{
				index:  i,
				region: region,
				layout: stage.NewLayout(cfg.OutputDir, region.Name, cfg.Export.Extension),
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- job:
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to add regions step")
	}

	layoutStep, err := pipeline.AddStepOneToOne(pipe, "layout", rootStep, func(_ context.Context, job regionJob) (regionJob, error) {
		if opts.Env.DryRun {
			return job, nil
		}
		err := os.MkdirAll(job.layout.ScratchDir(), 0o755)
		if err != nil {
			return job, errors.Wrapf(err, "unable to create scratch directory of %s", job.region.Name)
		}

		return job, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to add layout step")
	}

	r := &runner{plan: opts.Plan, env: opts.Env, log: entry}
	stagesStep, err := pipeline.AddStepOneToMany(pipe, "stages", layoutStep, r.runRegion, pipeline.StepConcurrency[Report](workers))
	if err != nil {
		return nil, errors.Wrap(err, "unable to add stages step")
	}

	summary := &Summary{RunID: runID, Variant: opts.Plan.Name}
	err = pipeline.AddSink(pipe, "report", stagesStep, func(_ context.Context, rep Report) error {
		summary.Reports = append(summary.Reports, rep)

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to add report sink")
	}

	err = pipe.Run()
	if err != nil {
		return nil, errors.Wrap(err, "pipeline run failed")
	}

	sort.SliceStable(summary.Reports, func(i, j int) bool {
		a, b := summary.Reports[i], summary.Reports[j]
		if a.regionIndex != b.regionIndex {
			return a.regionIndex < b.regionIndex
		}

		return a.classIndex < b.classIndex
	})
	summary.log(entry)

	return summary, nil
}

type runner struct {
	plan *variant.Plan
	env  *stage.Env
	log  *logrus.Entry
}

// runRegion runs the region chain, then the chain of every class unless the region chain aborted.
func (r *runner) runRegion(ctx context.Context, job regionJob) ([]Report, error) {
	entry := r.log.WithField("region", job.region.Name)
	entry.Info("region started")

	regionReport := r.runChain(ctx, r.plan.RegionStages, stage.Job{
		Region: job.region,
		Layout: job.layout,
		Log:    entry,
	})
	regionReport.regionIndex = job.index
	reports := []Report{regionReport}

	if regionReport.Aborted() {
		entry.WithField("stage", regionReport.AbortedAt).Error("region aborted, no vehicle class processed")

		return reports, ctx.Err()
	}

	for i, class := range r.env.Config.Demand.VehicleClasses {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		classEntry := entry.WithField("class", class)
		rep := r.runChain(ctx, r.plan.ClassStages, stage.Job{
			Region: job.region,
			Class:  class,
			Layout: job.layout.ForClass(class),
			Log:    classEntry,
		})
		rep.regionIndex = job.index
		rep.classIndex = i + 1
		reports = append(reports, rep)
	}
	entry.Info("region finished")

	return reports, ctx.Err()
}

// runChain executes stages in order and stops at the first result that aborts the chain.
func (r *runner) runChain(ctx context.Context, stages []*stage.Stage, job stage.Job) Report {
	rep := Report{Region: job.Layout.Region, Class: job.Class}

	for i, st := range stages {
		res := stage.Execute(ctx, r.env, st, job)
		rep.Results = append(rep.Results, res)
		if !res.Aborts() {
			continue
		}

		rep.AbortedAt = st.Name
		for _, next := range stages[i+1:] {
			rep.NotRun = append(rep.NotRun, next.Name)
		}
		job.Log.WithFields(logrus.Fields{
			"stage":   st.Name,
			"kind":    res.Err.Kind,
			"blocked": r.plan.Downstream(st.Name),
		}).Warnf("chain aborted, %d stages not run", len(rep.NotRun))

		break
	}

	return rep
}
