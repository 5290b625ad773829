// Package driver runs a plan against a mission model.
//
// The driver instantiates every planned activity, starts the model's
// daemons, and steps the engine to the plan's horizon. After every
// committed instant (and at sampling-period boundaries, if the plan sets
// one) it samples all registered resources into a profile manager.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/plan"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// DriverOption configures a simulation.
type DriverOption func(*config)

type config struct {
	logger     *slog.Logger
	manager    profile.Manager
	engineOpts []engine.EngineOption
	trace      func(engine.Commit)
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) DriverOption {
	return func(c *config) {
		c.logger = logger
	}
}

// WithManager sets the profile manager. Default: a fresh
// profile.InMemoryManager, whose profiles are copied into the results.
func WithManager(m profile.Manager) DriverOption {
	return func(c *config) {
		c.manager = m
	}
}

// WithEngineOptions passes options through to the engine.
func WithEngineOptions(opts ...engine.EngineOption) DriverOption {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithTrace calls fn with every committed instant.
func WithTrace(fn func(engine.Commit)) DriverOption {
	return func(c *config) {
		c.trace = fn
	}
}

// planned is an activity that was instantiated and scheduled.
type planned struct {
	activity plan.Activity
	args     ir.Object
	task     task.ID
}

// Simulate runs p against m and returns the results. Activities that fail
// to instantiate are reported in Results.Failures; the run goes on without
// them. An error is returned only when the run itself cannot complete.
func Simulate(ctx context.Context, m *model.Model, p *plan.Plan, opts ...DriverOption) (*Results, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	memory, _ := cfg.manager.(*profile.InMemoryManager)
	if cfg.manager == nil {
		memory = profile.NewInMemoryManager()
		cfg.manager = memory
	}

	planDigest, err := p.Digest()
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", p.Name, err)
	}

	engineOpts := append([]engine.EngineOption{engine.WithLogger(cfg.logger)}, cfg.engineOpts...)
	e := engine.New(m.Schema, engineOpts...)
	defer e.Close()

	for _, d := range m.Daemons {
		id := e.Schedule(0, d.Factory)
		cfg.logger.Debug("daemon started", "daemon", d.Name, "task", id)
	}

	res := &Results{
		Plan:       p.Name,
		PlanDigest: planDigest,
		Model:      m.Name,
		Horizon:    p.Horizon,
	}

	var scheduled []planned
	for _, a := range p.Activities {
		factory, args, err := m.Activities.Instantiate(a.ID, a.Type, a.Args)
		if err != nil {
			cfg.logger.Warn("activity not instantiated",
				"activity", a.ID,
				"type", a.Type,
				"error", err,
			)
			res.Failures = append(res.Failures, Failure{ActivityID: a.ID, Type: a.Type, Message: err.Error()})
			continue
		}
		id := e.Schedule(a.Start, withSpan(a.Type, args, factory))
		scheduled = append(scheduled, planned{activity: a, args: args, task: id})
	}

	cfg.logger.Info("simulation starting",
		"plan", p.Name,
		"model", m.Name,
		"horizon", p.Horizon,
		"activities", len(scheduled),
		"failures", len(res.Failures),
	)

	r := &runner{ctx: ctx, engine: e, model: m, manager: cfg.manager, trace: cfg.trace}
	if err := r.run(p.Horizon, p.SamplingPeriod); err != nil {
		return nil, fmt.Errorf("simulate %s: %w", p.Name, err)
	}

	res.Commits = r.commits
	res.Events = r.events
	res.collect(e, m, scheduled)
	if memory != nil {
		res.Profiles = memory.Profiles()
	}
	if res.Digest, err = ir.ResultsDigest(res.Object()); err != nil {
		return nil, fmt.Errorf("simulate %s: %w", p.Name, err)
	}

	cfg.logger.Info("simulation finished",
		"plan", p.Name,
		"instants", res.Commits,
		"unfinished", len(res.Unfinished),
		"digest", res.Digest,
	)
	return res, nil
}

// withSpan runs child inside an activity span carrying its type and
// arguments, and completes with child's value.
func withSpan(activityType string, args ir.Object, child task.Factory) task.Factory {
	return task.Go(func(ctx *task.Context) any {
		ctx.StartActivity(activityType, args)
		computed := ctx.Call(task.SpanParent, child)
		ctx.EndActivity()
		return computed
	})
}

// runner steps the engine and feeds samples to the manager.
type runner struct {
	ctx     context.Context
	engine  *engine.Engine
	model   *model.Model
	manager profile.Manager
	trace   func(engine.Commit)
	commits int
	events  []EventRecord
}

func (r *runner) sample() error {
	updates := r.model.Resources.Sample(r.engine)
	return r.manager.AcceptUpdates(r.ctx, r.engine.Now(), updates)
}

func (r *runner) run(horizon, period simtime.Duration) error {
	if err := r.sample(); err != nil {
		return err
	}

	nextSample := engine.Forever
	if period > 0 {
		nextSample = period
	}

	for {
		limit := simtime.Min(horizon, nextSample)
		ran, err := r.engine.Step(r.ctx, limit)
		if err != nil {
			return err
		}
		if ran {
			r.commits++
			if c, ok := r.engine.LastCommit(); ok {
				r.events = append(r.events, eventRecords(c)...)
				if r.trace != nil {
					r.trace(c)
				}
			}
			if err := r.sample(); err != nil {
				return err
			}
			continue
		}
		if limit >= horizon {
			break
		}
		r.engine.AdvanceTo(limit)
		if err := r.sample(); err != nil {
			return err
		}
		nextSample += period
	}

	if r.engine.Now() < horizon {
		r.engine.AdvanceTo(horizon)
	}
	if err := r.sample(); err != nil {
		return err
	}
	return r.manager.Finish(r.ctx, horizon)
}
