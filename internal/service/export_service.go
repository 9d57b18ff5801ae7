package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/estudioia/timeline-render/internal/model"
)

var ErrJobNotCompleted = errors.New("job not completed")

const DefaultExportExpiry = time.Hour

// ArtifactStore hands out temporary links to stored render outputs
type ArtifactStore interface {
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ExportService issues download links for finished renders
type ExportService struct {
	renders *RenderService
	store   ArtifactStore
	keyFor  func(jobID string) string
	expiry  time.Duration
	now     func() time.Time
}

// NewExportService creates the service. With a nil store or keyFor the
// job's output URL is returned as is.
func NewExportService(renders *RenderService, store ArtifactStore, keyFor func(jobID string) string, expiry time.Duration) *ExportService {
	if expiry <= 0 {
		expiry = DefaultExportExpiry
	}
	return &ExportService{
		renders: renders,
		store:   store,
		keyFor:  keyFor,
		expiry:  expiry,
		now:     time.Now,
	}
}

// Export returns a download link for a completed job
func (s *ExportService) Export(ctx context.Context, jobID string) (*model.RenderExportResponse, error) {
	job, err := s.renders.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, ErrJobNotCompleted
	}

	if s.store == nil || s.keyFor == nil {
		return &model.RenderExportResponse{JobID: jobID, FileURL: job.OutputURL}, nil
	}

	url, err := s.store.GetSignedURL(ctx, s.keyFor(jobID), s.expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign export url: %w", err)
	}
	expiresAt := s.now().Add(s.expiry).UTC()
	return &model.RenderExportResponse{
		JobID:     jobID,
		FileURL:   url,
		ExpiresAt: &expiresAt,
	}, nil
}
