package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/timeline"
)

// run is the work unit of one job: render every frame, then finalize.
// The worker slot is held until run returns, even when the job was
// cancelled while a renderer call was still in flight.
func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer s.wg.Done()
	defer e.cancel()
	defer s.release()

	s.mu.Lock()
	job := e.job
	project := e.project
	s.mu.Unlock()

	log := s.log.With(slog.String("job_id", job.ID), slog.String("composition_id", job.CompositionID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("work unit panicked", slog.Any("panic", r))
			s.fail(e, fmt.Sprintf("render panicked: %v", r), log)
		}
	}()
	log.Info("job started", slog.String("project_id", job.ProjectID))

	total := job.Config.DurationInFrames
	s.emit(e, model.ProgressEvent{
		Type:        model.EventStarted,
		JobID:       job.ID,
		Status:      model.JobStatusProcessing,
		TotalFrames: total,
	})

	elements, err := timeline.Convert(project, job.Config)
	if err != nil {
		s.fail(e, err.Error(), log)
		return
	}

	start := s.now()
	var frames []model.FrameResult

	for frame := 0; frame <= total; frame++ {
		if !s.tick(ctx) {
			s.stopped(e, log)
			return
		}

		result, err := s.renderer.RenderFrame(ctx, model.FrameRequest{
			JobID:           job.ID,
			CompositionID:   job.CompositionID,
			Config:          job.Config,
			BackgroundColor: project.BackgroundColor,
			Frame:           frame,
			Elements:        timeline.EvaluateFrame(elements, frame),
		})
		if err != nil {
			if ctx.Err() != nil {
				s.stopped(e, log)
				return
			}
			s.fail(e, fmt.Sprintf("render frame %d: %v", frame, err), log)
			return
		}
		frames = append(frames, result)

		ev, ok := s.recordProgress(e, frame, total, s.now().Sub(start).Seconds())
		if !ok {
			s.stopped(e, log)
			return
		}
		s.emit(e, ev)
	}

	s.mu.Lock()
	job = e.job
	s.mu.Unlock()

	outputURL, err := s.sink.FinalizeOutput(ctx, job, frames)
	if err != nil {
		if ctx.Err() != nil {
			s.stopped(e, log)
			return
		}
		s.fail(e, fmt.Sprintf("finalize output: %v", err), log)
		return
	}

	s.complete(e, outputURL, log)
}

// release frees the worker slot of a returning work unit
func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running--
	s.advanceLocked()
}

// tick is the suspension point between frames. It returns false once the
// job's context is cancelled.
func (s *Scheduler) tick(ctx context.Context) bool {
	if s.frameTick <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(s.frameTick)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// recordProgress updates the job after a frame. It returns false when the
// job is no longer processing.
func (s *Scheduler) recordProgress(e *entry, frame, total int, elapsed float64) (model.ProgressEvent, bool) {
	percentage := 100
	if total > 0 {
		percentage = int(math.Round(100 * float64(frame) / float64(total)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.job.Status != model.JobStatusProcessing {
		return model.ProgressEvent{}, false
	}
	e.job.Progress = percentage
	e.job.UpdatedAt = s.now()

	ev := model.ProgressEvent{
		Type:           model.EventProgress,
		JobID:          e.job.ID,
		Status:         e.job.Status,
		Frame:          frame,
		TotalFrames:    total,
		Percentage:     percentage,
		ElapsedSeconds: elapsed,
	}
	if frame > 0 {
		remaining := elapsed / float64(frame) * float64(total-frame)
		ev.EstimatedRemainingSeconds = &remaining
	}
	return ev, true
}

func (s *Scheduler) complete(e *entry, outputURL string, log *slog.Logger) {
	s.mu.Lock()
	if e.job.Status != model.JobStatusProcessing {
		s.mu.Unlock()
		s.stopped(e, log)
		return
	}
	id := e.job.ID
	e.job.Status = model.JobStatusCompleted
	e.job.Progress = 100
	e.job.OutputURL = outputURL
	e.job.UpdatedAt = s.now()
	delete(s.processing, id)
	s.completed[id] = struct{}{}
	job := e.job
	s.mu.Unlock()

	log.Info("job completed", slog.String("output_url", outputURL))
	s.emit(e, job.TerminalEvent())
}

func (s *Scheduler) fail(e *entry, msg string, log *slog.Logger) {
	s.mu.Lock()
	if e.job.Status != model.JobStatusProcessing {
		s.mu.Unlock()
		s.stopped(e, log)
		return
	}
	id := e.job.ID
	e.job.Status = model.JobStatusFailed
	e.job.Error = msg
	e.job.UpdatedAt = s.now()
	delete(s.processing, id)
	s.failed[id] = struct{}{}
	job := e.job
	s.mu.Unlock()

	log.Error("job failed", slog.String("error", msg))
	s.emit(e, job.TerminalEvent())
}

// stopped reports the terminal state set by whoever cancelled the job
func (s *Scheduler) stopped(e *entry, log *slog.Logger) {
	s.mu.Lock()
	job := e.job
	s.mu.Unlock()

	log.Info("job stopped", slog.String("reason", job.Error))
	s.emit(e, job.TerminalEvent())
}
