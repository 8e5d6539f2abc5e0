package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/arazimproject/dibit/internal/app"
	mcpserver "github.com/arazimproject/dibit/internal/mcp"
)

// cmdMCP starts the MCP server on stdio, or on HTTP with --http
func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("http", "", "serve over HTTP on this address instead of stdio")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	// stdout carries the protocol; logs go to stderr only
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	return withApp(func(ctx context.Context, a *app.App) error {
		mcpSrv := mcpserver.NewServer(mcpserver.Config{
			Planner: a.Planner,
			Version: Version,
		})

		if *addr != "" {
			return mcpSrv.ServeHTTP(ctx, *addr)
		}
		return mcpSrv.ServeStdio(ctx)
	})
}
