package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobHandler processes prefetch jobs
type JobHandler func(ctx context.Context, job *PrefetchJob) (*PrefetchResult, error)

// WarmFunc loads one semester of the catalog.
type WarmFunc func(ctx context.Context, semester string) error

// CatalogHandler returns a JobHandler that warms each semester of a job in
// turn. A job fails only when no semester could be loaded.
func CatalogHandler(warm WarmFunc) JobHandler {
	return func(ctx context.Context, job *PrefetchJob) (*PrefetchResult, error) {
		result := &PrefetchResult{JobID: job.ID}
		for _, sem := range job.Semesters {
			if err := warm(ctx, sem); err != nil {
				slog.Warn("prefetch semester failed", "job_id", job.ID, "semester", sem, "error", err)
				result.Failed = append(result.Failed, sem)
				continue
			}
			result.Loaded = append(result.Loaded, sem)
		}

		switch {
		case len(result.Failed) == 0:
			result.Status = StatusCompleted
		case len(result.Loaded) == 0:
			return nil, fmt.Errorf("no semester loaded (%d failed)", len(result.Failed))
		default:
			result.Status = StatusPartial
		}
		return result, nil
	}
}

type resultPublisher interface {
	PublishResult(ctx context.Context, result *PrefetchResult) error
}

// Consumer consumes prefetch jobs from the queue
type Consumer struct {
	conn       *Connection
	handler    JobHandler
	results    resultPublisher
	workers    int
	prefetch   int
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  2,
		Prefetch: 1,
	}
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler JobHandler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		handler:  handler,
		results:  NewProducer(conn),
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		PrefetchQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting prefetch consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			if _, ok := c.process(ctx, id, msg.Body); !ok {
				_ = msg.Reject(false)
				continue
			}
			if err := msg.Ack(false); err != nil {
				slog.Error("failed to ack message", "worker_id", id, "error", err)
			}
		}
	}
}

// process runs one job and publishes its result. ok is false for a
// malformed message, which must not be redelivered.
func (c *Consumer) process(ctx context.Context, workerID int, body []byte) (result *PrefetchResult, ok bool) {
	start := time.Now()

	var job PrefetchJob
	if err := json.Unmarshal(body, &job); err != nil {
		slog.Error("failed to unmarshal job", "worker_id", workerID, "error", err)
		return nil, false
	}

	slog.Info("processing prefetch job",
		"worker_id", workerID,
		"job_id", job.ID,
		"semesters", job.Semesters,
	)

	timeout := time.Duration(job.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.handler(jobCtx, &job)
	duration := time.Since(start)

	if err != nil {
		slog.Error("job processing failed",
			"worker_id", workerID,
			"job_id", job.ID,
			"error", err,
			"duration", duration,
		)

		result = &PrefetchResult{
			JobID:  job.ID,
			Status: StatusFailed,
			Error:  err.Error(),
			Failed: job.Semesters,
		}
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			result.Status = StatusTimeout
			result.Error = "prefetch timed out"
		}
	} else {
		result.JobID = job.ID
		if result.Status == "" {
			result.Status = StatusCompleted
		}
	}
	result.Duration = duration
	result.CompletedAt = time.Now()

	if err := c.results.PublishResult(ctx, result); err != nil {
		slog.Error("failed to publish result",
			"worker_id", workerID,
			"job_id", job.ID,
			"error", err,
		)
	}

	return result, true
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}

// ResultHandler handles the result of a specific job
type ResultHandler func(result *PrefetchResult)

// ResultConsumer consumes prefetch results and dispatches them by job ID
type ResultConsumer struct {
	conn       *Connection
	handlers   map[string]ResultHandler
	handlersMu sync.RWMutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewResultConsumer creates a result consumer
func NewResultConsumer(conn *Connection) *ResultConsumer {
	return &ResultConsumer{
		conn:     conn,
		handlers: make(map[string]ResultHandler),
	}
}

// Subscribe registers a handler for results of a specific job
func (rc *ResultConsumer) Subscribe(jobID string, handler ResultHandler) {
	rc.handlersMu.Lock()
	defer rc.handlersMu.Unlock()
	rc.handlers[jobID] = handler
}

// Unsubscribe removes a handler
func (rc *ResultConsumer) Unsubscribe(jobID string) {
	rc.handlersMu.Lock()
	defer rc.handlersMu.Unlock()
	delete(rc.handlers, jobID)
}

// Start begins consuming results
func (rc *ResultConsumer) Start(ctx context.Context) error {
	ctx, rc.cancelFunc = context.WithCancel(ctx)

	msgs, err := rc.conn.Channel().Consume(
		ResultQueueName,
		"",    // consumer tag
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start result consumer: %w", err)
	}

	rc.wg.Add(1)
	go rc.consume(ctx, msgs)

	return nil
}

func (rc *ResultConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer rc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			rc.dispatch(msg.Body)
		}
	}
}

func (rc *ResultConsumer) dispatch(body []byte) {
	var result PrefetchResult
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("failed to unmarshal result", "error", err)
		return
	}

	rc.handlersMu.RLock()
	handler, ok := rc.handlers[result.JobID.String()]
	rc.handlersMu.RUnlock()

	if ok {
		handler(&result)
	}
}

// Stop stops the result consumer
func (rc *ResultConsumer) Stop() {
	if rc.cancelFunc != nil {
		rc.cancelFunc()
	}
	rc.wg.Wait()
}
