package worker

import (
	"context"

	"github.com/toolsascode/gfm/internal/executor"
	"github.com/toolsascode/gfm/internal/logger"
	"github.com/toolsascode/gfm/internal/queue"
)

// Worker processes migration jobs from the queue
type Worker struct {
	executor *executor.Executor
	queue    queue.Queue
}

// NewWorker creates a new migration worker
func NewWorker(exec *executor.Executor, q queue.Queue) *Worker {
	return &Worker{
		executor: exec,
		queue:    q,
	}
}

// Start starts the worker to consume and process jobs
func (w *Worker) Start(ctx context.Context) error {
	logger.Info("Starting migration worker...")

	handler := func(ctx context.Context, job *queue.Job) (*queue.JobResult, error) {
		return w.processJob(ctx, job)
	}

	return w.queue.Consume(ctx, handler)
}

// processJob processes a single migration job
func (w *Worker) processJob(ctx context.Context, job *queue.Job) (*queue.JobResult, error) {
	logger.Infof("Processing migration job %s (%s %s)", job.ID, job.Action, job.Graph)

	actor := job.RequestedBy
	if actor == "" {
		actor = "worker"
	}
	runCtx := executor.WithRunMetadata(ctx, actor, "worker")

	var result *executor.Result
	var err error
	switch job.Action {
	case queue.ActionRollback:
		result, err = w.executor.DownSync(runCtx, job.Graph, job.ToVersion, job.Steps, false)
	default:
		result, err = w.executor.UpSync(runCtx, job.Graph, job.ToVersion, false)
	}
	if err != nil {
		return &queue.JobResult{
			JobID:   job.ID,
			Success: false,
			Errors:  []string{err.Error()},
		}, err
	}

	return &queue.JobResult{
		JobID:   job.ID,
		Success: result.Success,
		Applied: result.Applied,
		Skipped: result.Skipped,
		Errors:  result.Errors,
	}, nil
}

// Stop stops the worker
func (w *Worker) Stop() error {
	logger.Info("Stopping migration worker...")
	return w.queue.Close()
}
