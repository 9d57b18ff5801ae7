// Package scheduler runs render jobs on a bounded pool of work units.
//
// A job moves pending -> processing -> completed | failed. At most
// MaxConcurrentJobs jobs are processing at any time and pending jobs start
// in the order they were created. Failed jobs are terminal; nothing here
// retries them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/estudioia/timeline-render/internal/logger"
	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/timeline"
)

const (
	DefaultMaxConcurrentJobs = 2

	// CancelledMessage is the error of a job stopped by its owner
	CancelledMessage = "Cancelado pelo usuário"
	// ShutdownMessage is the error of a job stopped by Shutdown
	ShutdownMessage = "Render service shutting down"
)

// FrameRenderer materializes one frame of a job
type FrameRenderer interface {
	RenderFrame(ctx context.Context, req model.FrameRequest) (model.FrameResult, error)
}

// OutputSink turns the rendered frames of a job into a deliverable URL
type OutputSink interface {
	FinalizeOutput(ctx context.Context, job model.RenderJob, frames []model.FrameResult) (string, error)
}

// Config configures a Scheduler
type Config struct {
	MaxConcurrentJobs int
	Renderer          FrameRenderer
	Sink              OutputSink
	Settings          Settings
	Logger            *slog.Logger

	// FrameTick is an optional pause between frames
	FrameTick time.Duration
	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

type entry struct {
	job        model.RenderJob
	project    *model.TimelineProject
	seq        uint64
	onProgress func(model.ProgressEvent)
	feed       *feed
	cancel     context.CancelFunc

	emitMu       sync.Mutex
	terminalSent bool
}

// Scheduler owns the job registry and the worker slots
type Scheduler struct {
	mu         sync.Mutex
	entries    map[string]*entry
	pending    *pendingQueue
	processing map[string]struct{}
	completed  map[string]struct{}
	failed     map[string]struct{}
	running    int // work units that have not returned
	seq        uint64
	closed     bool

	maxJobs   int
	renderer  FrameRenderer
	sink      OutputSink
	settings  Settings
	frameTick time.Duration
	now       func() time.Time
	log       *slog.Logger

	wg sync.WaitGroup
}

// Stats counts jobs per status
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// New creates a scheduler
func New(cfg Config) (*Scheduler, error) {
	if cfg.Renderer == nil {
		return nil, errors.New("scheduler: frame renderer is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("scheduler: output sink is required")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.Settings.Resolutions == nil || cfg.Settings.Compositions == nil {
		cfg.Settings = NewSettings(cfg.Settings.Resolutions, cfg.Settings.Compositions, cfg.Settings.DefaultFPS)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Scheduler{
		entries:    make(map[string]*entry),
		pending:    newPendingQueue(),
		processing: make(map[string]struct{}),
		completed:  make(map[string]struct{}),
		failed:     make(map[string]struct{}),
		maxJobs:    cfg.MaxConcurrentJobs,
		renderer:   cfg.Renderer,
		sink:       cfg.Sink,
		settings:   cfg.Settings,
		frameTick:  cfg.FrameTick,
		now:        cfg.Clock,
		log:        cfg.Logger.With(slog.String("component", "scheduler")),
	}, nil
}

// MaxConcurrentJobs returns the size of the worker pool
func (s *Scheduler) MaxConcurrentJobs() int {
	return s.maxJobs
}

// DeriveConfig maps export settings to a render config for project
func (s *Scheduler) DeriveConfig(project *model.TimelineProject, settings model.ExportSettings) (model.RenderConfig, error) {
	return s.settings.DeriveConfig(project, settings)
}

// CreateJob validates the project, queues a job and returns it without
// waiting for it to run. onProgress may be nil.
func (s *Scheduler) CreateJob(project *model.TimelineProject, settings model.ExportSettings, onProgress func(model.ProgressEvent)) (model.RenderJob, error) {
	cfg, err := s.settings.DeriveConfig(project, settings)
	if err != nil {
		return model.RenderJob{}, err
	}
	if err := timeline.Validate(project, cfg); err != nil {
		return model.RenderJob{}, err
	}

	now := s.now()
	e := &entry{
		job: model.RenderJob{
			ID:            uuid.New().String(),
			ProjectID:     project.ID,
			CompositionID: cfg.CompositionID,
			Config:        cfg,
			Status:        model.JobStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		project:    project.Clone(),
		onProgress: onProgress,
		feed:       newFeed(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.RenderJob{}, ErrClosed
	}
	if err := s.pending.push(e.job.ID); err != nil {
		s.mu.Unlock()
		return model.RenderJob{}, fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.seq++
	e.seq = s.seq
	s.entries[e.job.ID] = e
	job := e.job
	s.advanceLocked()
	s.mu.Unlock()

	s.log.Info("job created",
		slog.String("job_id", job.ID),
		slog.String("project_id", job.ProjectID),
		slog.String("composition_id", job.CompositionID),
		slog.Int("total_frames", cfg.DurationInFrames),
	)
	return job, nil
}

// GetJob returns a snapshot of the job
func (s *Scheduler) GetJob(id string) (model.RenderJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return model.RenderJob{}, false
	}
	return e.job, true
}

// ListJobs returns jobs in creation order, optionally filtered by status
func (s *Scheduler) ListJobs(statuses ...model.JobStatus) []model.RenderJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if len(statuses) > 0 && !hasStatus(statuses, e.job.Status) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	jobs := make([]model.RenderJob, len(matches))
	for i, e := range matches {
		jobs[i] = e.job
	}
	return jobs
}

// Stats returns the current number of jobs per status
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Pending:    s.pending.len(),
		Processing: len(s.processing),
		Completed:  len(s.completed),
		Failed:     len(s.failed),
	}
}

// CancelJob stops a pending or processing job. It returns false when the
// job is unknown or already terminal.
func (s *Scheduler) CancelJob(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.job.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	wasPending, cancel := s.cancelLocked(e, CancelledMessage)
	job := e.job
	s.mu.Unlock()

	s.log.Info("job cancelled", slog.String("job_id", id), slog.Bool("was_pending", wasPending))
	s.settle(e, job, wasPending, cancel)
	return true
}

// RemoveJob cancels the job if it is still active and forgets it
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	active := !e.job.Status.IsTerminal()
	var wasPending bool
	var cancel context.CancelFunc
	if active {
		wasPending, cancel = s.cancelLocked(e, CancelledMessage)
	}
	e.onProgress = nil
	job := e.job
	s.forgetLocked(id)
	s.mu.Unlock()

	if active {
		s.settle(e, job, wasPending, cancel)
	}
	s.log.Info("job removed", slog.String("job_id", id))
	return true
}

// Subscribe returns a channel of events for the job. The channel is
// closed after the terminal event. Subscribing to a finished job yields
// its terminal event once.
func (s *Scheduler) Subscribe(id string) (<-chan model.ProgressEvent, func(), bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, false
	}
	job := e.job
	s.mu.Unlock()

	ch, unsubscribe := e.feed.subscribe()
	if job.Status.IsTerminal() {
		// a cancelled work unit may not have reported yet
		e.feed.publish(job.TerminalEvent())
	}
	return ch, unsubscribe, true
}

// PurgeTerminal forgets finished jobs last updated more than olderThan ago
func (s *Scheduler) PurgeTerminal(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	purged := 0
	for id, e := range s.entries {
		if e.job.Status.IsTerminal() && e.job.UpdatedAt.Before(cutoff) {
			s.forgetLocked(id)
			purged++
		}
	}
	if purged > 0 {
		s.log.Debug("purged terminal jobs", slog.Int("count", purged))
	}
	return purged
}

// Shutdown rejects new jobs, fails every active one and waits for the
// work units to return or ctx to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	type stopped struct {
		e          *entry
		job        model.RenderJob
		wasPending bool
		cancel     context.CancelFunc
	}

	s.mu.Lock()
	s.closed = true
	var active []stopped
	for _, e := range s.entries {
		if e.job.Status.IsTerminal() {
			continue
		}
		wasPending, cancel := s.cancelLocked(e, ShutdownMessage)
		active = append(active, stopped{e: e, job: e.job, wasPending: wasPending, cancel: cancel})
	}
	s.mu.Unlock()

	for _, st := range active {
		s.settle(st.e, st.job, st.wasPending, st.cancel)
	}
	s.log.Info("scheduler shutting down", slog.Int("stopped_jobs", len(active)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started work unit has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// advanceLocked starts pending jobs while slots are free
func (s *Scheduler) advanceLocked() {
	if s.closed {
		return
	}
	for s.running < s.maxJobs {
		id, ok := s.pending.pop()
		if !ok {
			return
		}
		e, ok := s.entries[id]
		if !ok || e.job.Status != model.JobStatusPending {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.job.Status = model.JobStatusProcessing
		e.job.UpdatedAt = s.now()
		s.processing[id] = struct{}{}
		s.running++

		s.wg.Add(1)
		go s.run(ctx, e)
	}
}

// cancelLocked marks an active job failed. The slot of a processing job
// is released by its work unit once it returns.
func (s *Scheduler) cancelLocked(e *entry, msg string) (bool, context.CancelFunc) {
	id := e.job.ID
	wasPending := e.job.Status == model.JobStatusPending
	if wasPending {
		s.pending.remove(id)
	} else {
		delete(s.processing, id)
	}

	e.job.Status = model.JobStatusFailed
	e.job.Error = msg
	e.job.UpdatedAt = s.now()
	s.failed[id] = struct{}{}
	return wasPending, e.cancel
}

// settle finishes a cancellation outside the lock. A running work unit
// reports its own terminal event so it follows the last progress event.
func (s *Scheduler) settle(e *entry, job model.RenderJob, wasPending bool, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if wasPending {
		s.emit(e, job.TerminalEvent())
	}
}

func (s *Scheduler) forgetLocked(id string) {
	s.pending.remove(id)
	delete(s.entries, id)
	delete(s.processing, id)
	delete(s.completed, id)
	delete(s.failed, id)
}

// emit delivers ev to the job's subscribers. Nothing is delivered after
// the terminal event.
func (s *Scheduler) emit(e *entry, ev model.ProgressEvent) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	if e.terminalSent {
		return
	}
	if ev.IsTerminal() {
		e.terminalSent = true
	}

	s.mu.Lock()
	callback := e.onProgress
	s.mu.Unlock()

	e.feed.publish(ev)
	if callback != nil {
		s.invoke(callback, ev)
	}
}

func (s *Scheduler) invoke(callback func(model.ProgressEvent), ev model.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("progress callback panicked", slog.String("job_id", ev.JobID), slog.Any("panic", r))
		}
	}()
	callback(ev)
}

func hasStatus(statuses []model.JobStatus, status model.JobStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}
