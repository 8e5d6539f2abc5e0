package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/catalog"
	"github.com/arazimproject/dibit/internal/queue"
)

// cmdPrefetch warms the catalog cache, directly or through the queue
func cmdPrefetch(args []string) error {
	fs := flag.NewFlagSet("prefetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	viaQueue := fs.Bool("queue", false, "publish a job for the daemon's workers")
	wait := fs.Duration("wait", 0, "with --queue, wait this long for the result")
	semesters, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if len(semesters) == 0 {
			info, err := a.Provider.GeneralInfo(ctx)
			if err != nil {
				return fmt.Errorf("load catalog metadata: %w", err)
			}
			semesters = append([]string{info.CurrentSemester}, catalog.UpcomingSemesters(info)...)
		}

		if !*viaQueue {
			n := a.Provider.Prefetch(ctx, semesters...)
			fmt.Printf("✓ Loaded %d of %d semesters\n", n, len(semesters))
			return nil
		}
		return publishPrefetch(ctx, a.Config.Queue.RabbitMQURL, semesters, *wait)
	})
}

// publishPrefetch queues a job and optionally waits for its result.
func publishPrefetch(ctx context.Context, url string, semesters []string, wait time.Duration) error {
	if url == "" {
		return fmt.Errorf("queue is not configured (set rabbitmq_url in secrets.yaml)")
	}
	conn, err := queue.NewConnection(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	job := queue.NewPrefetchJob("cli", semesters...)

	results := make(chan *queue.PrefetchResult, 1)
	if wait > 0 {
		rc := queue.NewResultConsumer(conn)
		rc.Subscribe(job.ID.String(), func(r *queue.PrefetchResult) {
			select {
			case results <- r:
			default:
			}
		})
		defer rc.Unsubscribe(job.ID.String())
		if err := rc.Start(ctx); err != nil {
			return err
		}
		defer rc.Stop()
	}

	if err := queue.NewProducer(conn).PublishPrefetchJob(ctx, job); err != nil {
		return err
	}
	fmt.Printf("✓ Queued prefetch job %s for %v\n", job.ID, semesters)
	if wait <= 0 {
		return nil
	}

	select {
	case r := <-results:
		fmt.Printf("Job %s: %s (loaded %v", r.JobID, r.Status, r.Loaded)
		if len(r.Failed) > 0 {
			fmt.Printf(", failed %v", r.Failed)
		}
		fmt.Println(")")
		if r.Error != "" {
			return fmt.Errorf("prefetch failed: %s", r.Error)
		}
		return nil
	case <-time.After(wait):
		return fmt.Errorf("no result within %s", wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}
