package genart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/genart/internal/parallel"
)

// Renderer turns programs into pixmaps.
//
// Rows are split into bands that run on a worker pool; every pixel is
// independent, so bands need no coordination. A Renderer is safe for
// concurrent use and must be closed to stop its workers.
type Renderer struct {
	opts renderOptions
	pool *parallel.WorkerPool
}

// NewRenderer creates a renderer and starts its workers.
func NewRenderer(opts ...RenderOption) *Renderer {
	o := defaultRenderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{
		opts: o,
		pool: parallel.NewWorkerPool(o.workers),
	}
}

// Oversampling returns the configured subsample grid size.
func (r *Renderer) Oversampling() int {
	return r.opts.oversampling
}

// Close stops the worker pool. Render must not be called afterwards.
func (r *Renderer) Close() {
	r.pool.Close()
}

// Render evaluates p over a width x height image.
//
// The registered accelerator, if any, is tried first. If ctx is cancelled
// during the render, bands that have not started are skipped and Render
// returns ctx.Err() with no pixmap.
func (r *Renderer) Render(ctx context.Context, p *Program, width, height int) (*Pixmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := Logger()
	pm := NewPixmap(width, height)

	if r.opts.accelerate {
		if a := RegisteredAccelerator(); a != nil {
			err := a.Render(pm.target(), p, r.opts.oversampling)
			if err == nil {
				log.Debug("genart: accelerated render",
					"accelerator", a.Name(), "width", width, "height", height)
				return pm, nil
			}
			if !errors.Is(err, ErrFallbackToCPU) {
				log.Warn("genart: accelerator failed, rendering on CPU",
					"accelerator", a.Name(), "err", err)
			}
		}
	}

	bands := parallel.SplitRows(height, r.opts.bandHeight)
	log.Debug("genart: cpu render",
		"width", width, "height", height,
		"oversampling", r.opts.oversampling,
		"bands", len(bands), "live_steps", p.live.LiveCount())

	k := r.opts.oversampling
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() {
			if ctx.Err() != nil {
				return
			}
			renderBand(pm, p, b, k)
		}
	}
	r.pool.ExecuteAll(work)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pm, nil
}

// renderBand fills rows [b.Y0, b.Y1) of pm.
func renderBand(pm *Pixmap, p *Program, b parallel.Band, k int) {
	for y := b.Y0; y < b.Y1; y++ {
		for x := range pm.width {
			pm.SetPixel(x, y, RenderPixel(&p.formula, &p.live, x, y, pm.width, pm.height, k))
		}
	}
}

// Render is a convenience wrapper that renders p once with a temporary
// Renderer.
func Render(ctx context.Context, p *Program, width, height int, opts ...RenderOption) (*Pixmap, error) {
	r := NewRenderer(opts...)
	defer r.Close()
	return r.Render(ctx, p, width, height)
}
