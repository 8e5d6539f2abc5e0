package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/config"
	"github.com/arazimproject/dibit/internal/domain"
)

// withApp loads configuration, opens the application and runs fn.
// Interrupts cancel the context.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, app.AppConfig{Config: cfg, Logger: cliLogger(cfg.Daemon.LogLevel)})
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// cliLogger logs warnings to stderr; catalog degradation shows up there
// without drowning command output.
func cliLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	if level == "debug" {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// semesterFlags parses the common -s flag and returns the positional
// arguments.
func semesterFlags(name string, args []string) (sem *string, fs *flag.FlagSet) {
	fs = flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sem = fs.String("s", "", "semester (e.g. 2024a)")
	return sem, fs
}

// resolveSemester validates an explicit semester or picks the active one.
func resolveSemester(ctx context.Context, a *app.App, explicit string) (string, error) {
	raw := a.Planner.Semester(ctx, explicit)
	if raw == "" {
		return "", fmt.Errorf("no semester given and the catalog is unreachable (use -s)")
	}
	sem, err := domain.ParseSemester(raw)
	if err != nil {
		return "", err
	}
	return sem.String(), nil
}

// parseArgs parses args with fs, accepting flags after positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%s: %w", fs.Name(), err)
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}
