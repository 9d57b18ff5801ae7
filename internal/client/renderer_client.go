package client

import (
	"context"

	"github.com/estudioia/timeline-render/internal/config"
	"github.com/estudioia/timeline-render/internal/model"
)

// RendererClient renders frames on the external composition renderer
type RendererClient struct {
	serviceClient
}

// NewRendererClient creates a new frame renderer client
func NewRendererClient(cfg *config.ServiceConfig) *RendererClient {
	return &RendererClient{serviceClient: newServiceClient("renderer service", cfg)}
}

// RenderFrame posts one evaluated frame to /frames
func (c *RendererClient) RenderFrame(ctx context.Context, req model.FrameRequest) (model.FrameResult, error) {
	var result model.FrameResult
	if err := c.post(ctx, "/frames", req, &result); err != nil {
		return model.FrameResult{}, err
	}
	result.Frame = req.Frame
	return result, nil
}
