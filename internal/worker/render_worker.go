package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/internal/timeline"
)

// TaskTypeRenderSubmit submits a render request through the queue instead
// of the HTTP API
const TaskTypeRenderSubmit = "render:submit"

// QueueRender is the asynq queue render submissions are placed on
const QueueRender = "render"

// RenderStarter creates render jobs
type RenderStarter interface {
	StartRender(ctx context.Context, req *model.RenderStartRequest) (*model.RenderStartResponse, error)
}

// NewRenderSubmitTask builds a task carrying req
func NewRenderSubmitTask(req *model.RenderStartRequest, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}
	opts = append([]asynq.Option{asynq.Queue(QueueRender), asynq.MaxRetry(3)}, opts...)
	return asynq.NewTask(TaskTypeRenderSubmit, payload, opts...), nil
}

// RenderWorker hands queued submissions to the scheduler. The task only
// covers intake; the render itself is tracked like any other job.
type RenderWorker struct {
	starter RenderStarter
	log     *slog.Logger
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(starter RenderStarter, log *slog.Logger) *RenderWorker {
	return &RenderWorker{
		starter: starter,
		log:     log.With(slog.String("component", "render_worker")),
	}
}

// ProcessTask handles render submission tasks
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var req model.RenderStartRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return fmt.Errorf("failed to unmarshal render request: %v: %w", err, asynq.SkipRetry)
	}

	resp, err := w.starter.StartRender(ctx, &req)
	if err != nil {
		var verr *timeline.ValidationError
		if errors.As(err, &verr) || errors.Is(err, scheduler.ErrInvalidSettings) {
			w.log.Warn("rejected queued render", slog.String("project_id", req.Project.ID), slog.Any("error", err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to start render: %w", err)
	}

	w.log.Info("queued render accepted",
		slog.String("job_id", resp.JobID),
		slog.String("project_id", req.Project.ID),
	)
	if rw := t.ResultWriter(); rw != nil {
		if data, err := json.Marshal(resp); err == nil {
			if _, err := rw.Write(data); err != nil {
				w.log.Warn("failed to write task result", slog.String("job_id", resp.JobID), slog.Any("error", err))
			}
		}
	}
	return nil
}

// Register wires the worker into mux
func (w *RenderWorker) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskTypeRenderSubmit, w)
}
