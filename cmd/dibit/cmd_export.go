package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/arazimproject/dibit/internal/app"
)

// cmdExport writes a calendar, spreadsheet or document export
func cmdExport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`usage:
  dibit export ics  [-s semester] [-o file]   iCalendar of the weekly lessons
  dibit export xlsx [-s semester] [-o file]   Weekly grid spreadsheet
  dibit export json [-o file]                 The whole selection document`)
	}
	format := args[0]
	semFlag, fs := semesterFlags("export", args[1:])
	out := fs.String("o", "", "output file (default: stdout, or a generated name for xlsx)")
	if _, err := parseArgs(fs, args[1:]); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		var (
			data []byte
			name string
			err  error
		)
		switch format {
		case "json":
			data, err = a.Planner.ExportDocument()
			name = "dibit.json"
		case "ics", "xlsx":
			sem, serr := resolveSemester(ctx, a, *semFlag)
			if serr != nil {
				return serr
			}
			name = fmt.Sprintf("%s.%s", sem, format)
			if format == "ics" {
				data, err = a.Planner.ExportCalendar(ctx, sem)
			} else {
				var buf bytes.Buffer
				err = a.Planner.ExportXLSX(ctx, sem, &buf)
				data = buf.Bytes()
			}
		default:
			return fmt.Errorf("unknown export format: %s (valid: ics, xlsx, json)", format)
		}
		if err != nil {
			return err
		}

		// Binary output never goes to a terminal
		path := *out
		if path == "" && format == "xlsx" {
			path = name
		}
		return writeOutput(path, data, os.Stdout)
	})
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s (%d bytes)\n", path, len(data))
	return nil
}

// cmdImport replaces the selection with a previously exported document
func cmdImport(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dibit import <file|->")
	}

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(args[0]))
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		d, err := a.Planner.ImportDocument(ctx, data)
		if err != nil {
			return err
		}
		total := 0
		for _, courses := range d.Courses {
			total += len(courses)
		}
		fmt.Printf("✓ Imported %d courses across %d semesters\n", total, len(d.Courses))
		return nil
	})
}
