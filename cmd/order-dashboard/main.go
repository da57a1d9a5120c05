package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"order-dashboard/internal/app/board"
	"order-dashboard/internal/app/migrate"
	"order-dashboard/internal/app/notifications"
	"order-dashboard/internal/app/server"
	"order-dashboard/internal/common/config"
	"order-dashboard/internal/common/logger"
)

const modes = "api | dashboard | migrate | notification-subscriber"

type runFunc func(context.Context, config.App, *logger.Logger) error

var runners = map[string]runFunc{
	"api":                     server.Run,
	"dashboard":               board.Run,
	"migrate":                 migrate.Run,
	"notification-subscriber": notifications.Run,
}

func main() {
	os.Exit(execute(os.Args[1:], runners, os.Stderr))
}

// execute returns the process exit code so deferred cleanup runs before exit.
func execute(args []string, runners map[string]runFunc, stderr io.Writer) int {
	fs := flag.NewFlagSet("order-dashboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "", modes)
	cfgPath := fs.String("config", "", "path to YAML config (default: ./config.yaml when present)")
	port := fs.Int("port", 0, "api: http port, overrides config")
	logFile := fs.String("log-file", "", "write logs to this file instead of stdout (dashboard default: order-dashboard.log)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	run, ok := runners[*mode]
	if !ok {
		fmt.Fprintln(stderr, "--mode is required: "+modes)
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	if *mode == "dashboard" && *logFile == "" {
		*logFile = "order-dashboard.log"
	}
	lg := logger.New("bootstrap")
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(stderr, "open log file:", err)
			return 2
		}
		defer f.Close()
		lg = logger.NewWithWriter("bootstrap", f)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := lg.Named(*mode)
	svc.Info("service_started", map[string]any{
		"mode": *mode, "feed": cfg.Sync.Feed, "enforce_transitions": cfg.Lifecycle.Enforce,
	})
	if err := run(ctx, cfg, svc); err != nil {
		svc.Error("fatal", err, nil)
		return 1
	}
	svc.Info("service_stopped", nil)
	return 0
}
