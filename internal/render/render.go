package render

import (
	"context"
	"image"

	"github.com/Brownie44l1/cvae-api/internal/log"
	"github.com/nfnt/resize"
)

// Renderer turns a generated image into a handle for a graphics host.
type Renderer interface {
	Render(ctx context.Context, img image.Image) (any, error)
}

// ScaleRenderer scales generated images to a display size. Generators usually
// emit small images (28x28, 64x64) that are unreadable at native size.
type ScaleRenderer struct {
	Width  uint
	Height uint
	Interp resize.InterpolationFunction
}

func NewScaleRenderer(size uint) *ScaleRenderer {
	return &ScaleRenderer{Width: size, Height: size, Interp: resize.NearestNeighbor}
}

func (s *ScaleRenderer) Render(ctx context.Context, img image.Image) (any, error) {
	log.FromContextOrDiscard(ctx).Debug("scaling image",
		"from_width", img.Bounds().Dx(), "from_height", img.Bounds().Dy(),
		"width", s.Width, "height", s.Height)
	return resize.Resize(s.Width, s.Height, img, s.Interp), nil
}
