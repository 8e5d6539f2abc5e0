package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/selection"
)

// cmdDump prints the stored selection document, or a backup of an
// unreadable one.
func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	backup := fs.String("backup", "", "backup key to print")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		var backups []string
		if a.Local != nil {
			list, err := a.Local.Backups()
			if err != nil {
				return err
			}
			backups = list
		}

		var raw []byte
		var err error
		if *backup != "" {
			if a.Local == nil {
				return fmt.Errorf("backups exist only with local storage; use 'dibit history' for sqlite")
			}
			raw, err = a.Local.RawBackup(*backup)
		} else {
			raw, err = a.RawSelection(ctx)
		}
		switch {
		case errors.Is(err, app.ErrNoSelection) || (err == nil && len(raw) == 0):
			fmt.Fprintln(os.Stderr, "No selection stored yet")
		case err != nil:
			return err
		default:
			if err := printDocument(raw, os.Stdout); err != nil {
				return err
			}
		}

		if *backup == "" && len(backups) > 0 {
			fmt.Fprintln(os.Stderr, "\nBackups of unreadable documents (print with --backup KEY):")
			for _, k := range backups {
				fmt.Fprintf(os.Stderr, "  %s\n", k)
			}
		}
		return nil
	})
}

// printDocument indents JSON; malformed documents are printed as stored.
func printDocument(raw []byte, w io.Writer) error {
	var out bytes.Buffer
	if json.Indent(&out, raw, "", "  ") != nil {
		out.Reset()
		out.Write(raw)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

// cmdReset clears the selection document
func cmdReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("yes", false, "confirm")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("this clears every selected course; rerun with --yes")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if _, err := a.Planner.Update(ctx, selection.Reset()); err != nil {
			return err
		}
		fmt.Println("✓ Selection cleared")
		return nil
	})
}

// cmdHistory lists, shows or restores stored revisions
func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("n", 20, "number of revisions")
	show := fs.Int64("show", 0, "print a revision")
	restore := fs.Int64("restore", 0, "restore a revision")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if a.Revisions == nil {
			return fmt.Errorf("history requires sqlite storage (set storage.backend: sqlite)")
		}

		switch {
		case *show != 0:
			d, err := a.Revisions.Revision(ctx, *show)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(d, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		case *restore != 0:
			d, err := a.Revisions.Revision(ctx, *restore)
			if err != nil {
				return err
			}
			if _, err := a.Planner.Update(ctx, selection.Import(d)); err != nil {
				return err
			}
			fmt.Printf("✓ Restored revision %d\n", *restore)
		default:
			revisions, err := a.Revisions.History(ctx, *limit)
			if err != nil {
				return err
			}
			if len(revisions) == 0 {
				fmt.Println("No revisions stored yet")
				return nil
			}
			for _, r := range revisions {
				note := r.Semester
				if r.Cleared {
					note = "(cleared)"
				}
				fmt.Printf("%6d  %s  %s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), note)
			}
		}
		return nil
	})
}
