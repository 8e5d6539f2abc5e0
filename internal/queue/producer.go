package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes prefetch jobs to the queue
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishPrefetchJob publishes a prefetch job to the queue
func (p *Producer) PublishPrefetchJob(ctx context.Context, job *PrefetchJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, PrefetchQueueName, job); err != nil {
		return fmt.Errorf("failed to publish prefetch job: %w", err)
	}

	slog.Info("published prefetch job",
		"job_id", job.ID,
		"semesters", job.Semesters,
		"reason", job.Reason,
	)

	return nil
}

// PublishResult publishes a prefetch result to the results queue
func (p *Producer) PublishResult(ctx context.Context, result *PrefetchResult) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, ResultQueueName, result); err != nil {
		return fmt.Errorf("failed to publish prefetch result: %w", err)
	}

	slog.Info("published prefetch result",
		"job_id", result.JobID,
		"status", result.Status,
		"duration", result.Duration,
	)

	return nil
}

// NewPrefetchJob creates a job for the given semesters
func NewPrefetchJob(reason string, semesters ...string) *PrefetchJob {
	return &PrefetchJob{
		ID:        uuid.New(),
		Semesters: append([]string(nil), semesters...),
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}
