package client

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/estudioia/timeline-render/internal/model"
)

const (
	defaultShapeSize = 100
	basicFontHeight  = 13
)

// RasterRenderer paints frames locally to PNG files. Media elements are
// drawn from local image files when available and as labelled
// placeholders otherwise; audio has no visual.
type RasterRenderer struct {
	workDir string

	mu     sync.Mutex
	images map[string]image.Image
}

// NewRasterRenderer creates a renderer writing under workDir/<jobID>
func NewRasterRenderer(workDir string) (*RasterRenderer, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return &RasterRenderer{workDir: workDir, images: make(map[string]image.Image)}, nil
}

// JobDir returns the directory frames of a job are written to
func (r *RasterRenderer) JobDir(jobID string) string {
	return filepath.Join(r.workDir, jobID)
}

// RenderFrame paints one frame and saves it as PNG
func (r *RasterRenderer) RenderFrame(ctx context.Context, req model.FrameRequest) (model.FrameResult, error) {
	if err := ctx.Err(); err != nil {
		return model.FrameResult{}, err
	}
	if req.Config.Width <= 0 || req.Config.Height <= 0 {
		return model.FrameResult{}, fmt.Errorf("invalid canvas %dx%d", req.Config.Width, req.Config.Height)
	}

	dc := gg.NewContext(req.Config.Width, req.Config.Height)
	dc.SetColor(parseColor(req.BackgroundColor, color.NRGBA{A: 255}, 1))
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	for i := range req.Elements {
		r.paint(dc, &req.Elements[i], req.Config)
	}

	dir := r.JobDir(req.JobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.FrameResult{}, fmt.Errorf("failed to create frame dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", req.Frame))
	if err := dc.SavePNG(path); err != nil {
		return model.FrameResult{}, fmt.Errorf("failed to save frame: %w", err)
	}

	return model.FrameResult{Frame: req.Frame, Path: path, ContentType: "image/png"}, nil
}

// Cleanup removes the frames of a job
func (r *RasterRenderer) Cleanup(jobID string) error {
	return os.RemoveAll(r.JobDir(jobID))
}

func (r *RasterRenderer) paint(dc *gg.Context, el *model.FrameElement, cfg model.RenderConfig) {
	if el.Type == model.ElementAudio {
		return
	}

	props := el.Properties
	opacity := clamp01(number(props, model.PropOpacity, 1))
	if opacity == 0 {
		return
	}

	x, y := vector(props, model.PropPosition, 0, 0)
	sx, sy := vector(props, model.PropScale, 1, 1)
	rotation := number(props, model.PropRotation, 0)

	w, h := float64(cfg.Width), float64(cfg.Height)
	if el.Type == model.ElementShape || el.Type == model.ElementText {
		w, h = defaultShapeSize, defaultShapeSize
	}
	w = number(props, model.PropWidth, w)
	h = number(props, model.PropHeight, h)

	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	dc.RotateAbout(gg.Radians(rotation), w*sx/2, h*sy/2)
	dc.Scale(sx, sy)

	switch el.Type {
	case model.ElementShape:
		dc.DrawRectangle(0, 0, w, h)
		dc.SetColor(parseColor(str(props, model.PropFill), color.NRGBA{R: 255, G: 255, B: 255, A: 255}, opacity))
		if stroke := str(props, model.PropStroke); stroke != "" {
			dc.FillPreserve()
			dc.SetColor(parseColor(stroke, color.NRGBA{A: 255}, opacity))
			dc.SetLineWidth(number(props, model.PropStrokeWidth, 1))
			dc.Stroke()
		} else {
			dc.Fill()
		}

	case model.ElementText:
		size := number(props, model.PropFontSize, basicFontHeight)
		k := size / basicFontHeight
		ax := 0.0
		switch str(props, model.PropTextAlign) {
		case "center":
			ax = 0.5
		case "right":
			ax = 1
		}
		dc.Scale(k, k)
		dc.SetColor(parseColor(str(props, model.PropColor), color.NRGBA{R: 255, G: 255, B: 255, A: 255}, opacity))
		dc.DrawStringAnchored(el.Text, 0, 0, ax, 1)

	case model.ElementImage, model.ElementVideo:
		if img := r.loadImage(el.Src); img != nil {
			b := img.Bounds()
			dc.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
			dc.DrawImage(img, 0, 0)
			return
		}
		dc.DrawRectangle(0, 0, w, h)
		dc.SetColor(color.NRGBA{R: 40, G: 40, B: 48, A: uint8(255 * opacity)})
		dc.FillPreserve()
		dc.SetColor(color.NRGBA{R: 200, G: 200, B: 200, A: uint8(255 * opacity)})
		dc.SetLineWidth(2)
		dc.Stroke()
		dc.DrawStringAnchored(filepath.Base(el.Src), w/2, h/2, 0.5, 0.5)
	}
}

// loadImage caches decoded local images; remote sources return nil
func (r *RasterRenderer) loadImage(src string) image.Image {
	if src == "" || strings.Contains(src, "://") {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if img, ok := r.images[src]; ok {
		return img
	}
	img, err := gg.LoadImage(src)
	if err != nil {
		img = nil
	}
	r.images[src] = img
	return img
}

func number(props model.Properties, name string, def float64) float64 {
	if v, ok := props[name]; ok && v.IsNumber() {
		return v.Num
	}
	return def
}

func vector(props model.Properties, name string, defX, defY float64) (float64, float64) {
	v, ok := props[name]
	switch {
	case ok && v.IsVector():
		return v.Vec.X, v.Vec.Y
	case ok && v.IsNumber():
		return v.Num, v.Num
	}
	return defX, defY
}

func str(props model.Properties, name string) string {
	if v, ok := props[name]; ok && v.IsString() {
		return v.Str
	}
	return ""
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// parseColor reads #rgb, #rrggbb or #rrggbbaa and scales alpha by opacity
func parseColor(s string, def color.NRGBA, opacity float64) color.NRGBA {
	c, ok := parseHex(s)
	if !ok {
		c = def
	}
	c.A = uint8(math.Round(float64(c.A) * clamp01(opacity)))
	return c
}

func parseHex(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}
