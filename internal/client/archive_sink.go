package client

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/estudioia/timeline-render/internal/model"
)

// FrameCleaner removes the intermediate frames of a job
type FrameCleaner interface {
	Cleanup(jobID string) error
}

// ArchiveManifest describes the contents of a frame archive
type ArchiveManifest struct {
	JobID         string          `json:"jobId"`
	ProjectID     string          `json:"projectId"`
	CompositionID string          `json:"compositionId"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	FPS           float64         `json:"fps"`
	TotalFrames   int             `json:"totalFrames"`
	CreatedAt     time.Time       `json:"createdAt"`
	Frames        []ManifestFrame `json:"frames"`
}

// ManifestFrame is one frame entry; File is set when the image is inside
// the archive, URL when the renderer stored it elsewhere.
type ManifestFrame struct {
	Frame int    `json:"frame"`
	File  string `json:"file,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ArchiveSink packs the frames of a job into a zip with a manifest and
// uploads it to storage.
type ArchiveSink struct {
	storage StorageClient
	cleaner FrameCleaner
	tempDir string
	log     *slog.Logger
}

// NewArchiveSink creates a sink; cleaner may be nil
func NewArchiveSink(storage StorageClient, cleaner FrameCleaner, tempDir string, log *slog.Logger) *ArchiveSink {
	return &ArchiveSink{storage: storage, cleaner: cleaner, tempDir: tempDir, log: log}
}

// ArchiveKey is the storage key of a job's archive
func ArchiveKey(jobID string) string {
	return fmt.Sprintf("renders/%s/%s.zip", jobID, jobID)
}

// FinalizeOutput writes the archive and returns its public URL
func (s *ArchiveSink) FinalizeOutput(ctx context.Context, job model.RenderJob, frames []model.FrameResult) (string, error) {
	if s.cleaner != nil {
		defer func() {
			if err := s.cleaner.Cleanup(job.ID); err != nil {
				s.log.Warn("failed to clean frames", slog.String("job_id", job.ID), slog.Any("error", err))
			}
		}()
	}

	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.tempDir, job.ID+"-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := writeArchive(ctx, tmp, job, frames); err != nil {
		return "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind archive: %w", err)
	}

	url, err := s.storage.Upload(ctx, ArchiveKey(job.ID), tmp, "application/zip")
	if err != nil {
		return "", err
	}
	s.log.Info("archive uploaded", slog.String("job_id", job.ID), slog.Int("frames", len(frames)))
	return url, nil
}

func writeArchive(ctx context.Context, w io.Writer, job model.RenderJob, frames []model.FrameResult) error {
	zw := zip.NewWriter(w)

	manifest := ArchiveManifest{
		JobID:         job.ID,
		ProjectID:     job.ProjectID,
		CompositionID: job.CompositionID,
		Width:         job.Config.Width,
		Height:        job.Config.Height,
		FPS:           job.Config.FPS,
		TotalFrames:   job.Config.DurationInFrames,
		CreatedAt:     job.CreatedAt,
		Frames:        make([]ManifestFrame, 0, len(frames)),
	}

	for _, fr := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := ManifestFrame{Frame: fr.Frame, URL: fr.URL}
		if fr.Path != "" {
			name := "frames/" + filepath.Base(fr.Path)
			if err := addFile(zw, name, fr.Path); err != nil {
				return err
			}
			entry.File = name
		}
		manifest.Frames = append(manifest.Frames, entry)
	}

	mw, err := zw.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("failed to add manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	// PNG data is already compressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to add frame: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy frame: %w", err)
	}
	return nil
}
