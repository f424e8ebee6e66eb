// Package scheduler repeats a job on a cron or interval schedule.
//
// Runs never overlap: a tick that fires while the previous run is still
// going is skipped and logged.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "orderbot/pkg/logx"
)

// Job is one scheduled run. ctx is cancelled when the runner stops.
type Job func(ctx context.Context)

type Options struct {
	Location *time.Location
	// RunImmediately starts one run as soon as Run is called.
	RunImmediately bool
}

type Runner struct {
	spec  ParsedSpec
	sched cron.Schedule
	opt   Options
	log   logx.Logger
	job   Job
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New parses raw and prepares a runner for job.
func New(raw string, job Job, log logx.Logger, opt Options) (*Runner, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler: job is nil")
	}
	spec, err := ParseSchedule(raw)
	if err != nil {
		return nil, err
	}
	var sched cron.Schedule
	switch spec.Kind {
	case SpecInterval:
		sched = cron.Every(spec.Every)
	default:
		sched, err = cronParser.Parse(spec.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", spec.Cron, err)
		}
	}
	if opt.Location == nil {
		opt.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{spec: spec, sched: sched, opt: opt, log: log.With(logx.String("comp", "scheduler")), job: job}, nil
}

func (r *Runner) Spec() ParsedSpec { return r.spec }

// Run blocks until ctx is done, then waits for an in-flight run to return.
func (r *Runner) Run(ctx context.Context) error {
	cl := cronLogger{log: r.log}
	wrapped := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		r.job(ctx)
	}))

	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(r.opt.Location), cron.WithLogger(cl))
	id := c.Schedule(r.sched, wrapped)

	var wg sync.WaitGroup
	if r.opt.RunImmediately {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wrapped.Run()
		}()
	}

	c.Start()
	r.log.Info("scheduler started",
		logx.String("schedule", r.spec.String()),
		logx.String("tz", r.opt.Location.String()),
		logx.Time("next", c.Entry(id).Next),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	r.log.Info("scheduler stopped")
	return nil
}

// cronLogger routes robfig/cron's key/value logs into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
