// Package app wires the delivery pipeline from one config.Config and runs
// it either once (one pass per invocation) or on a schedule.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"orderbot/internal/config"
	"orderbot/internal/metrics"
	"orderbot/internal/runtime/supervisor"
	"orderbot/internal/scheduler"
	logx "orderbot/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFetchFailed = 1
	ExitStartup     = 2
)

type App struct {
	loader config.Loader
	cfg    *config.Config

	log       logx.Logger
	logCloser io.Closer
	metrics   *metrics.Recorder

	// passMu serializes passes and component swaps.
	passMu sync.Mutex
	comp   *components
}

// New builds the logger and every component from cfg. The loader is kept
// for config reloads in daemon mode.
func New(loader config.Loader, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	log, closer := logx.New(mapLogConfig(cfg))
	a, err := newWithLogger(loader, cfg, log.With(logx.String("comp", "app")))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	a.logCloser = closer
	return a, nil
}

func newWithLogger(loader config.Loader, cfg *config.Config, log logx.Logger) (*App, error) {
	rec := metrics.New()
	comp, err := buildComponents(cfg, log, rec)
	if err != nil {
		return nil, err
	}
	return &App{loader: loader, cfg: cfg, log: log, metrics: rec, comp: comp}, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// RunOnce runs a single pass and returns the process exit code.
func (a *App) RunOnce(ctx context.Context) int {
	err := a.runPass(ctx)
	if path := strings.TrimSpace(a.cfg.Metrics.Textfile); path != "" {
		if werr := a.metrics.WriteTextfile(path); werr != nil {
			a.log.Warn("metrics textfile write failed", logx.String("path", path), logx.Err(werr))
		}
	}
	return ExitCode(err)
}

// ExitCode maps a pass error onto the process exit code. Only a failed
// fetch (or an interrupted pass) is non-zero; per-record failures are not.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalid):
		return ExitStartup
	default:
		return ExitFetchFailed
	}
}

func (a *App) runPass(ctx context.Context) error {
	a.passMu.Lock()
	defer a.passMu.Unlock()
	_, err := a.comp.pipe.Run(ctx)
	return err
}

// RunScheduled repeats passes on schedule until ctx is done. The first
// pass starts immediately. Config file edits rebuild the components
// between passes.
func (a *App) RunScheduled(ctx context.Context, schedule string) error {
	loc, err := a.cfg.Notifier.Location()
	if err != nil {
		return err
	}
	runner, err := scheduler.New(schedule, func(ctx context.Context) {
		_ = a.runPass(ctx)
	}, a.log, scheduler.Options{Location: loc, RunImmediately: true})
	if err != nil {
		return fmt.Errorf("%w: schedule: %v", config.ErrInvalid, err)
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	if addr := strings.TrimSpace(a.cfg.Metrics.Addr); addr != "" {
		sup.Go("metrics", func(ctx context.Context) error {
			return a.metrics.Serve(ctx, addr, a.log.With(logx.String("comp", "metrics")))
		})
	}
	sup.Go("config-watch", func(ctx context.Context) error {
		return a.loader.Watch(ctx, a.log.With(logx.String("comp", "config")), a.cfg, a.reload)
	})
	sup.Go("scheduler", runner.Run)

	sdNotify(a.log, daemon.SdNotifyReady)
	<-sup.Context().Done()
	sdNotify(a.log, daemon.SdNotifyStopping)
	return sup.Wait(context.Background())
}

// reload swaps in components built from cfg. A config that cannot be
// wired is logged and the current components stay.
func (a *App) reload(cfg *config.Config) {
	changed, attrs := config.SummarizeConfigChange(a.cfg, cfg)
	a.log.Info("config changed", append(attrs, logx.String("sections", strings.Join(changed, ",")))...)
	if strings.TrimSpace(cfg.Schedule) != strings.TrimSpace(a.cfg.Schedule) {
		a.log.Warn("schedule changes need a restart", logx.String("schedule", cfg.Schedule))
	}
	comp, err := buildComponents(cfg, a.log, a.metrics)
	if err != nil {
		a.log.Error("config reload failed; keeping previous components", logx.Err(err))
		return
	}

	a.passMu.Lock()
	old := a.comp
	a.comp = comp
	a.cfg = cfg
	a.passMu.Unlock()

	if err := old.Close(); err != nil {
		a.log.Warn("closing previous ledger store failed", logx.Err(err))
	}
	a.log.Info("components rebuilt from new config")
}

// Close releases the ledger store and the log file.
func (a *App) Close() error {
	a.passMu.Lock()
	comp := a.comp
	a.comp = nil
	a.passMu.Unlock()

	err := comp.Close()
	if a.logCloser != nil {
		if cerr := a.logCloser.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func sdNotify(log logx.Logger, state string) {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if ok {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
