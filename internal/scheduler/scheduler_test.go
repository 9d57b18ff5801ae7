package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/timeline"
)

// fakeRenderer records every frame request. When gate is non-nil each
// call blocks until the gate is closed or the job is cancelled.
type fakeRenderer struct {
	mu       sync.Mutex
	gate     chan struct{}
	entered  chan string
	requests map[string][]model.FrameRequest
	order    []string
	failAt   int
}

func newFakeRenderer(blocking bool) *fakeRenderer {
	r := &fakeRenderer{
		requests: make(map[string][]model.FrameRequest),
		entered:  make(chan string, 64),
		failAt:   -1,
	}
	if blocking {
		r.gate = make(chan struct{})
	}
	return r
}

func (r *fakeRenderer) RenderFrame(ctx context.Context, req model.FrameRequest) (model.FrameResult, error) {
	r.mu.Lock()
	if _, seen := r.requests[req.JobID]; !seen {
		r.order = append(r.order, req.JobID)
		r.entered <- req.JobID
	}
	r.requests[req.JobID] = append(r.requests[req.JobID], req)
	failAt := r.failAt
	r.mu.Unlock()

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return model.FrameResult{}, ctx.Err()
		}
	}
	if req.Frame == failAt {
		return model.FrameResult{}, errors.New("renderer exploded")
	}
	return model.FrameResult{Frame: req.Frame, Path: fmt.Sprintf("%s/%d.png", req.JobID, req.Frame)}, nil
}

func (r *fakeRenderer) release() {
	close(r.gate)
}

func (r *fakeRenderer) framesFor(jobID string) []model.FrameRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FrameRequest(nil), r.requests[jobID]...)
}

func (r *fakeRenderer) startOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// stubbornRenderer ignores cancellation and tracks overlapping calls
type stubbornRenderer struct {
	gate    chan struct{}
	entered chan string

	mu     sync.Mutex
	active int
	peak   int
}

func (r *stubbornRenderer) RenderFrame(ctx context.Context, req model.FrameRequest) (model.FrameResult, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	r.mu.Unlock()

	select {
	case r.entered <- req.JobID:
	default:
	}
	<-r.gate

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return model.FrameResult{Frame: req.Frame}, nil
}

type panickyRenderer struct{}

func (panickyRenderer) RenderFrame(ctx context.Context, req model.FrameRequest) (model.FrameResult, error) {
	if req.Frame == 1 {
		panic("nil frame buffer")
	}
	return model.FrameResult{Frame: req.Frame}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	frames map[string]int
}

func (f *fakeSink) FinalizeOutput(ctx context.Context, job model.RenderJob, frames []model.FrameResult) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames == nil {
		f.frames = make(map[string]int)
	}
	f.frames[job.ID] = len(frames)
	return "memory://" + job.ID, nil
}

// recorder collects callback events for one job
type recorder struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (r *recorder) record(ev model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []model.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ProgressEvent(nil), r.events...)
}

func shortProject(id string) *model.TimelineProject {
	return &model.TimelineProject{
		ID:       id,
		Name:     "Short",
		Duration: 100,
		Layers: []model.Layer{{
			ID:      "layer-1",
			Visible: true,
			Elements: []model.TimelineElement{{
				ID:        "shape-1",
				Type:      model.ElementShape,
				StartTime: 0,
				Duration:  100,
			}},
		}},
	}
}

func testSettings() model.ExportSettings {
	return model.ExportSettings{Format: model.FormatMP4, Quality: 1}
}

func newTestScheduler(t *testing.T, max int, renderer FrameRenderer) *Scheduler {
	t.Helper()
	s, err := New(Config{MaxConcurrentJobs: max, Renderer: renderer, Sink: &fakeSink{}})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func waitEntered(t *testing.T, r *fakeRenderer) string {
	t.Helper()
	select {
	case id := <-r.entered:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for renderer")
		return ""
	}
}

func waitStatus(t *testing.T, s *Scheduler, id string, want model.JobStatus) model.RenderJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := s.GetJob(id); ok && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.GetJob(id)
	t.Fatalf("job %s: expected status %s, got %s", id, want, job.Status)
	return job
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Sink: &fakeSink{}}); err == nil {
		t.Error("expected error without renderer")
	}
	if _, err := New(Config{Renderer: newFakeRenderer(false)}); err == nil {
		t.Error("expected error without sink")
	}
	s, err := New(Config{Renderer: newFakeRenderer(false), Sink: &fakeSink{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MaxConcurrentJobs() != DefaultMaxConcurrentJobs {
		t.Errorf("expected default pool size %d, got %d", DefaultMaxConcurrentJobs, s.MaxConcurrentJobs())
	}
}

func TestCreateJob_ConcurrencyBound(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 2, r)

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := s.CreateJob(shortProject(fmt.Sprintf("p%d", i)), testSettings(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, job.ID)
	}

	stats := s.Stats()
	if stats.Processing != 2 || stats.Pending != 1 {
		t.Fatalf("expected 2 processing and 1 pending, got %+v", stats)
	}
	if job, _ := s.GetJob(ids[2]); job.Status != model.JobStatusPending {
		t.Errorf("expected third job pending, got %s", job.Status)
	}

	r.release()
	s.Wait()

	for _, id := range ids {
		job, _ := s.GetJob(id)
		if job.Status != model.JobStatusCompleted {
			t.Errorf("job %s: expected completed, got %s (%s)", id, job.Status, job.Error)
		}
	}
	if stats := s.Stats(); stats.Completed != 3 || stats.Processing != 0 {
		t.Errorf("unexpected final stats %+v", stats)
	}
}

func TestCreateJob_FIFO(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := s.CreateJob(shortProject(fmt.Sprintf("p%d", i)), testSettings(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, job.ID)
	}

	r.release()
	s.Wait()

	order := r.startOrder()
	if len(order) != 3 {
		t.Fatalf("expected 3 started jobs, got %d", len(order))
	}
	for i := range ids {
		if order[i] != ids[i] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], order[i])
		}
	}
}

func TestCreateJob_ValidationFailsClosed(t *testing.T) {
	s := newTestScheduler(t, 2, newFakeRenderer(false))

	project := shortProject("bad")
	project.Duration = 0

	_, err := s.CreateJob(project, testSettings(), nil)
	var verr *timeline.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(s.ListJobs()) != 0 {
		t.Error("expected no job to be created")
	}
}

func TestCreateJob_OversizedDuration(t *testing.T) {
	s := newTestScheduler(t, 2, newFakeRenderer(false))

	project := shortProject("huge")
	project.Duration = 1 << 50

	_, err := s.CreateJob(project, testSettings(), nil)
	var verr *timeline.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(s.ListJobs()) != 0 {
		t.Error("expected no job to be created")
	}
}

func TestCreateJob_InvalidSettings(t *testing.T) {
	s := newTestScheduler(t, 2, newFakeRenderer(false))

	_, err := s.CreateJob(shortProject("p"), model.ExportSettings{Format: model.FormatMP4, Quality: 11}, nil)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestCancelJob_Pending(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	first, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	rec := &recorder{}
	second, _ := s.CreateJob(shortProject("b"), testSettings(), rec.record)

	if !s.CancelJob(second.ID) {
		t.Fatal("expected cancel to succeed")
	}
	job, _ := s.GetJob(second.ID)
	if job.Status != model.JobStatusFailed || job.Error != CancelledMessage {
		t.Errorf("expected failed/%q, got %s/%q", CancelledMessage, job.Status, job.Error)
	}
	if s.Stats().Pending != 0 {
		t.Error("expected pending queue to be empty")
	}

	events := rec.snapshot()
	if len(events) != 1 || events[0].Type != model.EventFailed {
		t.Fatalf("expected a single failed event, got %+v", events)
	}

	r.release()
	s.Wait()

	if len(r.framesFor(second.ID)) != 0 {
		t.Error("cancelled pending job must never reach the renderer")
	}
	if job, _ := s.GetJob(first.ID); job.Status != model.JobStatusCompleted {
		t.Errorf("expected first job completed, got %s", job.Status)
	}
	if s.CancelJob(second.ID) {
		t.Error("expected second cancel to be a no-op")
	}
}

func TestCancelJob_Processing(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	rec := &recorder{}
	job, _ := s.CreateJob(shortProject("a"), testSettings(), rec.record)
	next, _ := s.CreateJob(shortProject("b"), testSettings(), nil)
	waitEntered(t, r)

	if !s.CancelJob(job.ID) {
		t.Fatal("expected cancel to succeed")
	}

	got, _ := s.GetJob(job.ID)
	if got.Status != model.JobStatusFailed || got.Error != CancelledMessage {
		t.Errorf("expected failed/%q, got %s/%q", CancelledMessage, got.Status, got.Error)
	}

	// the slot is handed over once the cancelled work unit returns
	if started := waitEntered(t, r); started != next.ID {
		t.Errorf("expected %s to start, got %s", next.ID, started)
	}

	r.release()
	s.Wait()

	events := rec.snapshot()
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	last := events[len(events)-1]
	if last.Type != model.EventFailed || last.Error != CancelledMessage {
		t.Errorf("expected cancellation terminal event, got %+v", last)
	}
	terminals := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal event, got %d", terminals)
	}
	if s.CancelJob(job.ID) {
		t.Error("cancelling a terminal job must return false")
	}
}

func TestCancelJob_SlotHeldUntilWorkUnitReturns(t *testing.T) {
	r := &stubbornRenderer{gate: make(chan struct{}), entered: make(chan string, 64)}
	s := newTestScheduler(t, 1, r)

	first, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	next, _ := s.CreateJob(shortProject("b"), testSettings(), nil)

	select {
	case id := <-r.entered:
		if id != first.ID {
			t.Fatalf("expected %s to start, got %s", first.ID, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for renderer")
	}

	if !s.CancelJob(first.ID) {
		t.Fatal("expected cancel to succeed")
	}
	select {
	case id := <-r.entered:
		t.Fatalf("job %s started while a cancelled frame was still rendering", id)
	case <-time.After(100 * time.Millisecond):
	}
	if job, _ := s.GetJob(next.ID); job.Status != model.JobStatusPending {
		t.Errorf("expected next job pending, got %s", job.Status)
	}
	if stats := s.Stats(); stats.Processing != 0 || stats.Pending != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	close(r.gate)
	waitStatus(t, s, next.ID, model.JobStatusCompleted)
	s.Wait()

	r.mu.Lock()
	peak := r.peak
	r.mu.Unlock()
	if peak != 1 {
		t.Errorf("expected at most 1 concurrent render call, got %d", peak)
	}
}

func TestRun_PanicFailsJob(t *testing.T) {
	s := newTestScheduler(t, 1, panickyRenderer{})

	rec := &recorder{}
	job, err := s.CreateJob(shortProject("a"), testSettings(), rec.record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Wait()

	got, _ := s.GetJob(job.ID)
	if got.Status != model.JobStatusFailed || !strings.Contains(got.Error, "nil frame buffer") {
		t.Fatalf("expected failed job carrying the panic, got %s/%q", got.Status, got.Error)
	}
	events := rec.snapshot()
	if len(events) == 0 || events[len(events)-1].Type != model.EventFailed {
		t.Errorf("expected failed terminal event, got %+v", events)
	}
	if stats := s.Stats(); stats.Processing != 0 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	// the slot is free again
	if _, err := s.CreateJob(shortProject("b"), testSettings(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Wait()
	if stats := s.Stats(); stats.Failed != 2 {
		t.Errorf("expected the second job to run and fail, got %+v", stats)
	}
}

func TestCancelJob_Unknown(t *testing.T) {
	s := newTestScheduler(t, 1, newFakeRenderer(false))
	if s.CancelJob("missing") {
		t.Error("expected false for unknown job")
	}
}

func TestRemoveJob_Idempotent(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	job, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	waitEntered(t, r)

	if !s.RemoveJob(job.ID) {
		t.Error("expected first remove to return true")
	}
	if s.RemoveJob(job.ID) {
		t.Error("expected second remove to return false")
	}
	if _, ok := s.GetJob(job.ID); ok {
		t.Error("expected job to be gone")
	}
	s.Wait()
	if stats := s.Stats(); stats.Processing != 0 || stats.Failed != 0 {
		t.Errorf("expected empty bookkeeping, got %+v", stats)
	}
}

func TestEndToEnd_FrameRangeAndProgress(t *testing.T) {
	r := newFakeRenderer(false)
	sink := &fakeSink{}
	s, err := New(Config{MaxConcurrentJobs: 2, Renderer: r, Sink: sink})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	project := &model.TimelineProject{
		ID:       "e2e",
		Duration: 5000,
		Layers: []model.Layer{{
			ID:      "layer-1",
			Visible: true,
			Elements: []model.TimelineElement{{
				ID:        "clip-1",
				Type:      model.ElementVideo,
				Src:       "clip.mp4",
				StartTime: 1000,
				Duration:  2000,
			}},
		}},
	}

	rec := &recorder{}
	job, err := s.CreateJob(project, model.ExportSettings{Format: model.FormatMP4, Quality: 6, FPS: 30}, rec.record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Config.DurationInFrames != 150 {
		t.Fatalf("expected 150 frames, got %d", job.Config.DurationInFrames)
	}
	if job.Config.Width != 1920 || job.Config.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", job.Config.Width, job.Config.Height)
	}
	s.Wait()

	done, _ := s.GetJob(job.ID)
	if done.Status != model.JobStatusCompleted || done.Progress != 100 {
		t.Fatalf("expected completed at 100%%, got %s at %d (%s)", done.Status, done.Progress, done.Error)
	}
	if done.OutputURL != "memory://"+job.ID {
		t.Errorf("unexpected output url %q", done.OutputURL)
	}

	frames := r.framesFor(job.ID)
	if len(frames) != 151 {
		t.Fatalf("expected frames 0..150, got %d", len(frames))
	}
	if sink.frames[job.ID] != 151 {
		t.Errorf("expected sink to receive 151 frames, got %d", sink.frames[job.ID])
	}
	for _, tt := range []struct {
		frame  int
		active bool
	}{{29, false}, {30, true}, {90, true}, {91, false}} {
		got := len(frames[tt.frame].Elements) == 1
		if got != tt.active {
			t.Errorf("frame %d: expected active=%v", tt.frame, tt.active)
		}
	}

	events := rec.snapshot()
	if events[0].Type != model.EventStarted {
		t.Errorf("expected first event started, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != model.EventCompleted || last.OutputURL == "" {
		t.Errorf("expected completed terminal event, got %+v", last)
	}

	prev := -1
	progress := 0
	for _, ev := range events {
		if ev.Type != model.EventProgress {
			continue
		}
		progress++
		if ev.Frame <= prev {
			t.Fatalf("progress out of order: %d after %d", ev.Frame, prev)
		}
		prev = ev.Frame
		if ev.TotalFrames != 150 {
			t.Errorf("expected total 150, got %d", ev.TotalFrames)
		}
		if ev.Frame == 0 && ev.EstimatedRemainingSeconds != nil {
			t.Error("estimate must be omitted on frame 0")
		}
		if ev.Frame > 0 && ev.EstimatedRemainingSeconds == nil {
			t.Errorf("frame %d: expected estimate", ev.Frame)
		}
		if ev.Frame == 75 && ev.Percentage != 50 {
			t.Errorf("expected 50%% at frame 75, got %d", ev.Percentage)
		}
	}
	if progress != 151 {
		t.Errorf("expected 151 progress events, got %d", progress)
	}
}

func TestRenderError_FailsWithoutRetry(t *testing.T) {
	r := newFakeRenderer(false)
	r.failAt = 2
	s := newTestScheduler(t, 1, r)

	rec := &recorder{}
	job, _ := s.CreateJob(shortProject("a"), testSettings(), rec.record)
	s.Wait()

	got, _ := s.GetJob(job.ID)
	if got.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.Error, "render frame 2") || !strings.Contains(got.Error, "renderer exploded") {
		t.Errorf("unexpected error %q", got.Error)
	}
	if n := len(r.framesFor(job.ID)); n != 3 {
		t.Errorf("expected 3 render calls and no retry, got %d", n)
	}

	events := rec.snapshot()
	if last := events[len(events)-1]; last.Type != model.EventFailed {
		t.Errorf("expected failed terminal event, got %s", last.Type)
	}
}

func TestSubscribe_DeliversUntilTerminal(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	job, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	ch, unsubscribe, ok := s.Subscribe(job.ID)
	if !ok {
		t.Fatal("expected subscription")
	}
	defer unsubscribe()

	r.release()

	var last model.ProgressEvent
	count := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, open := <-ch:
			if !open {
				if last.Type != model.EventCompleted {
					t.Errorf("expected completed as last event, got %s", last.Type)
				}
				if count == 0 {
					t.Error("expected events")
				}
				return
			}
			last = ev
			count++
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSubscribe_TerminalJob(t *testing.T) {
	s := newTestScheduler(t, 1, newFakeRenderer(false))

	job, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	s.Wait()

	ch, _, ok := s.Subscribe(job.ID)
	if !ok {
		t.Fatal("expected subscription")
	}
	ev, open := <-ch
	if !open || ev.Type != model.EventCompleted {
		t.Fatalf("expected completed event, got %+v (open=%v)", ev, open)
	}
	if _, open := <-ch; open {
		t.Error("expected channel to be closed")
	}

	if _, _, ok := s.Subscribe("missing"); ok {
		t.Error("expected no subscription for unknown job")
	}
}

func TestListJobs_FilterAndOrder(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	a, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	b, _ := s.CreateJob(shortProject("b"), testSettings(), nil)
	c, _ := s.CreateJob(shortProject("c"), testSettings(), nil)

	all := s.ListJobs()
	if len(all) != 3 || all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Fatalf("unexpected listing order")
	}

	pending := s.ListJobs(model.JobStatusPending)
	if len(pending) != 2 {
		t.Errorf("expected 2 pending jobs, got %d", len(pending))
	}
	processing := s.ListJobs(model.JobStatusProcessing)
	if len(processing) != 1 || processing[0].ID != a.ID {
		t.Errorf("expected %s processing, got %+v", a.ID, processing)
	}

	r.release()
	s.Wait()
}

func TestPurgeTerminal(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s, err := New(Config{MaxConcurrentJobs: 1, Renderer: newFakeRenderer(false), Sink: &fakeSink{}, Clock: clock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	s.Wait()

	if n := s.PurgeTerminal(time.Hour); n != 0 {
		t.Errorf("expected nothing purged yet, got %d", n)
	}

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	if n := s.PurgeTerminal(time.Hour); n != 1 {
		t.Errorf("expected 1 purged job, got %d", n)
	}
	if _, ok := s.GetJob(job.ID); ok {
		t.Error("expected purged job to be gone")
	}
}

func TestShutdown(t *testing.T) {
	r := newFakeRenderer(true)
	s, err := New(Config{MaxConcurrentJobs: 1, Renderer: r, Sink: &fakeSink{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	running, _ := s.CreateJob(shortProject("a"), testSettings(), nil)
	queued, _ := s.CreateJob(shortProject("b"), testSettings(), nil)
	waitEntered(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	for _, id := range []string{running.ID, queued.ID} {
		job := waitStatus(t, s, id, model.JobStatusFailed)
		if job.Error != ShutdownMessage {
			t.Errorf("job %s: expected %q, got %q", id, ShutdownMessage, job.Error)
		}
	}
	if len(r.framesFor(queued.ID)) != 0 {
		t.Error("queued job must not start during shutdown")
	}

	if _, err := s.CreateJob(shortProject("c"), testSettings(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCreateJob_ClonesProject(t *testing.T) {
	r := newFakeRenderer(true)
	s := newTestScheduler(t, 1, r)

	project := shortProject("a")
	job, _ := s.CreateJob(project, testSettings(), nil)
	project.Layers[0].Elements[0].Type = model.ElementVideo

	r.release()
	s.Wait()

	if got, _ := s.GetJob(job.ID); got.Status != model.JobStatusCompleted {
		t.Errorf("caller mutation leaked into job: %s (%s)", got.Status, got.Error)
	}
}
