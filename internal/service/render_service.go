package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/scheduler"
	"github.com/estudioia/timeline-render/internal/timeline"
)

var ErrJobNotFound = errors.New("job not found")

const storeTimeout = 2 * time.Second

// EventBroadcaster pushes job events to live clients
type EventBroadcaster interface {
	BroadcastEvent(ev model.ProgressEvent)
}

// SnapshotStore keeps job snapshots outside the process
type SnapshotStore interface {
	Save(ctx context.Context, job model.RenderJob) error
	Get(ctx context.Context, jobID string) (model.RenderJob, error)
	Delete(ctx context.Context, jobID string) (bool, error)
}

// RenderService fronts the scheduler for HTTP and queue intake
type RenderService struct {
	scheduler *scheduler.Scheduler
	store     SnapshotStore
	hub       EventBroadcaster
	log       *slog.Logger

	// snapshotMu orders snapshot writes against removals
	snapshotMu sync.RWMutex
}

func NewRenderService(s *scheduler.Scheduler, store SnapshotStore, hub EventBroadcaster, log *slog.Logger) *RenderService {
	return &RenderService{
		scheduler: s,
		store:     store,
		hub:       hub,
		log:       log.With(slog.String("component", "render_service")),
	}
}

// StartRender validates the project and queues a render job
func (s *RenderService) StartRender(ctx context.Context, req *model.RenderStartRequest) (*model.RenderStartResponse, error) {
	job, err := s.scheduler.CreateJob(&req.Project, req.Settings, s.onEvent)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, job.ID)

	return &model.RenderStartResponse{
		JobID:            job.ID,
		Status:           job.Status,
		CompositionID:    job.CompositionID,
		DurationInFrames: job.Config.DurationInFrames,
		CreatedAt:        job.CreatedAt,
	}, nil
}

// GetStatus returns the job from memory, falling back to its snapshot
func (s *RenderService) GetStatus(ctx context.Context, jobID string) (model.RenderJob, error) {
	if job, ok := s.scheduler.GetJob(jobID); ok {
		return job, nil
	}
	return s.store.Get(ctx, jobID)
}

// ListJobs lists the jobs this instance knows about
func (s *RenderService) ListJobs(statuses ...model.JobStatus) *model.RenderListResponse {
	jobs := s.scheduler.ListJobs(statuses...)
	return &model.RenderListResponse{Jobs: jobs, Total: len(jobs)}
}

// CancelRender cancels a job. Success is false when the job had already
// finished.
func (s *RenderService) CancelRender(ctx context.Context, jobID string) (*model.RenderCancelResponse, error) {
	if _, ok := s.scheduler.GetJob(jobID); !ok {
		job, err := s.store.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		return &model.RenderCancelResponse{Success: false, JobID: jobID, Status: job.Status}, nil
	}

	cancelled := s.scheduler.CancelJob(jobID)
	job, ok := s.scheduler.GetJob(jobID)
	if !ok {
		// removed concurrently
		return nil, ErrJobNotFound
	}
	if cancelled {
		s.persist(ctx, jobID)
	}

	return &model.RenderCancelResponse{Success: cancelled, JobID: jobID, Status: job.Status}, nil
}

// RemoveJob cancels and forgets a job and its snapshot
func (s *RenderService) RemoveJob(ctx context.Context, jobID string) error {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	removed := s.scheduler.RemoveJob(jobID)

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	existed, err := s.store.Delete(storeCtx, jobID)
	if err != nil {
		s.log.Warn("failed to delete snapshot", slog.String("job_id", jobID), slog.Any("error", err))
	}

	if !removed && !existed {
		return ErrJobNotFound
	}
	return nil
}

// Subscribe streams the events of a job held by this instance
func (s *RenderService) Subscribe(jobID string) (<-chan model.ProgressEvent, func(), bool) {
	return s.scheduler.Subscribe(jobID)
}

// ConvertTimeline runs validation and conversion without creating a job
func (s *RenderService) ConvertTimeline(project *model.TimelineProject, settings model.ExportSettings) (*model.TimelineConvertResponse, error) {
	cfg, err := s.scheduler.DeriveConfig(project, settings)
	if err != nil {
		return nil, err
	}
	elements, err := timeline.Convert(project, cfg)
	if err != nil {
		return nil, err
	}
	return &model.TimelineConvertResponse{Config: cfg, Elements: elements}, nil
}

// Stats returns job counts per status
func (s *RenderService) Stats() scheduler.Stats {
	return s.scheduler.Stats()
}

// RunRetention purges finished jobs older than retention every interval
// until ctx is done
func (s *RenderService) RunRetention(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.scheduler.PurgeTerminal(retention); n > 0 {
				s.log.Info("purged finished jobs", slog.Int("count", n))
			}
		}
	}
}

// Shutdown stops the scheduler
func (s *RenderService) Shutdown(ctx context.Context) error {
	return s.scheduler.Shutdown(ctx)
}

// onEvent is the scheduler progress callback of every job
func (s *RenderService) onEvent(ev model.ProgressEvent) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ev)
	}

	// snapshot lifecycle changes and every fifth percent
	if ev.Type == model.EventProgress && ev.Percentage%5 != 0 {
		return
	}
	s.persist(context.Background(), ev.JobID)

	switch ev.Type {
	case model.EventCompleted:
		s.log.Info("render completed", slog.String("job_id", ev.JobID), slog.String("output_url", ev.OutputURL))
	case model.EventFailed:
		s.log.Warn("render failed", slog.String("job_id", ev.JobID), slog.String("error", ev.Error))
	}
}

// persist snapshots the job as the scheduler holds it now. Jobs that were
// removed are skipped.
func (s *RenderService) persist(ctx context.Context, jobID string) {
	s.snapshotMu.RLock()
	defer s.snapshotMu.RUnlock()

	job, ok := s.scheduler.GetJob(jobID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := s.store.Save(ctx, job); err != nil {
		s.log.Warn("failed to save snapshot", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}
