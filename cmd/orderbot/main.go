package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"orderbot/internal/app"
	"orderbot/internal/config"
	logx "orderbot/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfgPath, envPath, schedule string
	flag.StringVar(&cfgPath, "config", "", "optional config file (.json, .yaml, .yml)")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file; real environment variables win")
	flag.StringVar(&schedule, "schedule", "", `run as a daemon on this schedule ("5m", "00:05", "*/5 * * * *"); empty runs one pass`)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loader := config.NewLoader(cfgPath, envPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return app.ExitStartup
	}
	if strings.TrimSpace(schedule) == "" {
		schedule = cfg.Schedule
	}

	a, err := app.New(loader, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		return app.ExitStartup
	}
	defer func() { _ = a.Close() }()

	if strings.TrimSpace(schedule) == "" {
		return a.RunOnce(ctx)
	}
	if err := a.RunScheduled(ctx, schedule); err != nil {
		a.Logger().Error("daemon stopped", logx.Err(err))
		return app.ExitCode(err)
	}
	return app.ExitOK
}
