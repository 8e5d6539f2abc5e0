package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/catalog"
	"github.com/arazimproject/dibit/internal/config"
	"github.com/arazimproject/dibit/internal/daemon"
	"github.com/arazimproject/dibit/internal/queue"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName = "dibitd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Ensure ~/.dibit directory exists
	dibitDir, err := config.EnsureDibitDir()
	if err != nil {
		return fmt.Errorf("ensure dibit dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Daemon.LogLevel)
	logFile, err := setupLogging(dibitDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	pidPath := filepath.Join(dibitDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.NewApp(ctx, app.AppConfig{Config: cfg, Dir: dibitDir})
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer a.Close()

	serverCfg := daemon.ServerConfig{
		Config:   cfg,
		Planner:  a.Planner,
		Version:  Version,
		Prefetch: a.Provider.Prefetch,
	}

	// Queue workers warm the cache; the API publishes to them
	if cfg.Queue.Enabled {
		stop, publisher, err := startQueue(ctx, cfg, a.Provider)
		if err != nil {
			return err
		}
		defer stop()
		serverCfg.Publisher = publisher
	}

	server, err := daemon.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if cfg.Catalog.PrefetchUpcoming {
		go prefetchUpcoming(ctx, a.Provider)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// startQueue connects to RabbitMQ and starts the prefetch workers.
func startQueue(ctx context.Context, cfg *config.LocalConfig, provider *catalog.Provider) (stop func(), publisher daemon.PrefetchPublisher, err error) {
	if cfg.Queue.RabbitMQURL == "" {
		return nil, nil, fmt.Errorf("queue enabled but rabbitmq_url is not set in secrets.yaml")
	}
	conn, err := queue.NewConnection(cfg.Queue.RabbitMQURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect queue: %w", err)
	}

	warm := func(ctx context.Context, semester string) error {
		_, err := provider.SemesterCourses(ctx, semester)
		return err
	}
	consumerCfg := queue.DefaultConsumerConfig()
	if cfg.Queue.Workers > 0 {
		consumerCfg.Workers = cfg.Queue.Workers
	}
	consumer := queue.NewConsumer(conn, queue.CatalogHandler(warm), consumerCfg)
	if err := consumer.Start(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("start consumer: %w", err)
	}

	stop = func() {
		consumer.Stop()
		conn.Close()
	}
	return stop, queue.NewProducer(conn), nil
}

// prefetchUpcoming warms the current and upcoming semesters in the
// background.
func prefetchUpcoming(ctx context.Context, provider *catalog.Provider) {
	info, err := provider.GeneralInfo(ctx)
	if err != nil {
		slog.Warn("startup prefetch skipped", "error", err)
		return
	}
	semesters := append([]string{info.CurrentSemester}, catalog.UpcomingSemesters(info)...)
	n := provider.Prefetch(ctx, semesters...)
	slog.Info("startup prefetch finished", "loaded", n, "requested", len(semesters))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(dibitDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(dibitDir, "logs", "dibitd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the file, text to stderr for foreground mode
	handler := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}

	slog.SetDefault(slog.New(handler))

	return logFile, nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
