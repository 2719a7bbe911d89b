// Package pipeline runs one full planning pass: load and validate the
// input directory, compile constraints, solve the weekly plan, expand
// every day in parallel, staff each day, and write resultado.yaml
// atomically. A run either produces the complete result set or fails
// before writing anything.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/calzaplan/calzaplan/internal/assign"
	"github.com/calzaplan/calzaplan/internal/compile"
	"github.com/calzaplan/calzaplan/internal/config"
	"github.com/calzaplan/calzaplan/internal/daily"
	"github.com/calzaplan/calzaplan/internal/model"
	"github.com/calzaplan/calzaplan/internal/weekly"
	"github.com/calzaplan/calzaplan/internal/yamlio"
)

// DayPlan pairs one day's block schedule with its operator assignment.
type DayPlan struct {
	Schedule   *model.DayResult        `yaml:"schedule"`
	Assignment *model.AssignmentResult `yaml:"assignment"`
}

// Result is the complete output of one planning run.
type Result struct {
	RunID       string                `yaml:"run_id"`
	GeneratedAt time.Time             `yaml:"generated_at"`
	Weekly      *model.WeeklySchedule `yaml:"weekly"`
	Summary     *model.WeeklySummary  `yaml:"summary"`
	Days        []DayPlan             `yaml:"days"`
	Warnings    []string              `yaml:"warnings,omitempty"`
}

// Runner executes planning passes over one input directory.
type Runner struct {
	dir    string
	params model.Params
	log    *Logger
}

func New(dir string, params model.Params, log *Logger) *Runner {
	return &Runner{dir: dir, params: params, log: log}
}

// Run executes one pass. Configuration and weekly infeasibility errors
// are fatal; daily degradation and assignment gaps are carried in the
// result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	r.log.Infof("run %s: loading inputs from %s", runID, r.dir)

	in, err := config.Load(r.dir)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	r.log.Infof("run %s: %d models, %d days, %d constraints, %d workers",
		runID, len(in.Models), len(in.Days), len(in.Constraints), len(in.Workers))

	compiled := compile.Compile(in.Constraints, in.Progress, in.Models, in.Days, r.params.Blocks, in.ReoptimizeFrom)
	for _, w := range compiled.Warnings {
		r.log.Warnf("run %s: compile: %s", runID, w)
	}

	wctx, cancel := context.WithTimeout(ctx, r.params.WeeklyTimeout)
	defer cancel()
	sched, summary, err := weekly.Optimize(wctx, in.Models, in.Days, in.Capacities, compiled, r.params)
	if err != nil {
		return nil, fmt.Errorf("weekly optimization: %w", err)
	}
	r.log.Infof("run %s: weekly %s, objective %.0f", runID, summary.Status, summary.Objective)

	days := make([]DayPlan, len(in.Days))
	g, gctx := errgroup.WithContext(ctx)
	for i, day := range in.Days {
		i, day := i, day
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(gctx, r.params.DailyTimeout)
			defer cancel()

			quotas := r.quotasFor(in, compiled, sched, i)
			dr := daily.Schedule(dctx, day.Name, quotas, in.Capacities, day.TotalHeadcount(), r.params)
			for _, w := range dr.Warnings {
				r.log.Warnf("run %s: %s: %s", runID, day.Name, w)
			}
			ar := assign.Assign(dr, in.Workers)
			if n := len(ar.Unassigned); n > 0 {
				r.log.Warnf("run %s: %s: %d task(s) with unassigned blocks", runID, day.Name, n)
			}
			days[i] = DayPlan{Schedule: dr, Assignment: ar}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:       runID,
		GeneratedAt: started,
		Weekly:      sched,
		Summary:     summary,
		Days:        days,
		Warnings:    compiled.Warnings,
	}
	r.log.Infof("run %s: done in %s", runID, time.Since(started).Round(time.Millisecond))
	return result, nil
}

// quotasFor translates the weekly plan's cells for one day into daily
// quotas with the compiled per-block availability.
func (r *Runner) quotasFor(in *config.Inputs, compiled *compile.Compiled, sched *model.WeeklySchedule, day int) []daily.Quota {
	var quotas []daily.Quota
	for _, m := range in.Models {
		pairs := sched.Pairs(m.ID, in.Days[day].Name)
		if pairs <= 0 {
			continue
		}
		quotas = append(quotas, daily.Quota{
			Model:  m,
			Pairs:  pairs,
			Blocks: compiled.Blocks(m.ID, day, len(r.params.Blocks)),
		})
	}
	return quotas
}

// Write persists the result set as resultado.yaml via temp file plus
// rename, keeping the previous plan as .bak.
func (r *Runner) Write(result *Result) error {
	path := filepath.Join(r.dir, config.ResultFile)
	if err := yamlio.AtomicWrite(path, result); err != nil {
		return fmt.Errorf("write %s: %w", config.ResultFile, err)
	}
	r.log.Infof("run %s: wrote %s", result.RunID, path)
	return nil
}
