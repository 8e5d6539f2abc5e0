package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/arazimproject/dibit/internal/app"
)

// cmdSync saves the selection to, or restores it from, the cloud store
func cmdSync(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`usage:
  dibit sync save    [--user id]   Upload the selection
  dibit sync restore [--user id]   Replace the selection with the cloud copy`)
	}

	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "user ID (default: sync.user_id)")
	if _, err := parseArgs(fs, args[1:]); err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		uid := *user
		if uid == "" {
			uid = a.Config.Sync.UserID
		}

		switch args[0] {
		case "save":
			if err := a.Planner.SaveToCloud(ctx, uid); err != nil {
				return err
			}
			fmt.Printf("✓ Saved selection for %s\n", uid)
		case "restore":
			d, err := a.Planner.RestoreFromCloud(ctx, uid)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Restored %d semesters for %s\n", len(d.Courses), uid)
		default:
			return fmt.Errorf("unknown sync command: %s", args[0])
		}
		return nil
	})
}
