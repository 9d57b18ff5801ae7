package client

import (
	"context"
	"fmt"

	"github.com/estudioia/timeline-render/internal/config"
	"github.com/estudioia/timeline-render/internal/model"
)

// EncodeRequest asks the encoder to assemble frames into a video
type EncodeRequest struct {
	JobID         string              `json:"job_id"`
	CompositionID string              `json:"composition_id"`
	Width         int                 `json:"width"`
	Height        int                 `json:"height"`
	FPS           float64             `json:"fps"`
	Frames        []model.FrameResult `json:"frames"`
	OutputKey     string              `json:"output_key"`
}

// EncodeResponse represents the response from encoding
type EncodeResponse struct {
	OutputURL string `json:"output_url"`
	Size      int64  `json:"size"`
}

// EncoderClient finalizes jobs through the external encoder service
type EncoderClient struct {
	serviceClient
}

// NewEncoderClient creates a new encoder client
func NewEncoderClient(cfg *config.ServiceConfig) *EncoderClient {
	return &EncoderClient{serviceClient: newServiceClient("encoder service", cfg)}
}

// FinalizeOutput posts the frame list to /encode and returns the video URL
func (c *EncoderClient) FinalizeOutput(ctx context.Context, job model.RenderJob, frames []model.FrameResult) (string, error) {
	req := &EncodeRequest{
		JobID:         job.ID,
		CompositionID: job.CompositionID,
		Width:         job.Config.Width,
		Height:        job.Config.Height,
		FPS:           job.Config.FPS,
		Frames:        frames,
		OutputKey:     fmt.Sprintf("renders/%s/output", job.ID),
	}

	var result EncodeResponse
	if err := c.post(ctx, "/encode", req, &result); err != nil {
		return "", err
	}
	if result.OutputURL == "" {
		return "", fmt.Errorf("encoder service returned no output url")
	}
	return result.OutputURL, nil
}
