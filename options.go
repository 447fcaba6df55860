package genart

// RenderOption configures a Renderer.
//
// Example:
//
//	// Preview quality, single sample per pixel
//	r := genart.NewRenderer()
//
//	// Export quality, 4x4 box filter on 8 workers
//	r := genart.NewRenderer(genart.WithOversampling(4), genart.WithWorkers(8))
type RenderOption func(*renderOptions)

type renderOptions struct {
	oversampling int
	workers      int
	bandHeight   int
	accelerate   bool
}

func defaultRenderOptions() renderOptions {
	return renderOptions{
		oversampling: 1,
		workers:      0, // GOMAXPROCS
		bandHeight:   0, // parallel.DefaultBandHeight
		accelerate:   true,
	}
}

// WithOversampling sets the k of the k x k subsample grid per pixel.
// Values below 1 are treated as 1.
func WithOversampling(k int) RenderOption {
	return func(o *renderOptions) {
		o.oversampling = max(k, 1)
	}
}

// WithWorkers sets the number of render goroutines. Zero or negative uses
// GOMAXPROCS.
func WithWorkers(n int) RenderOption {
	return func(o *renderOptions) {
		o.workers = n
	}
}

// WithBandHeight sets how many rows each unit of parallel work covers.
func WithBandHeight(rows int) RenderOption {
	return func(o *renderOptions) {
		o.bandHeight = rows
	}
}

// WithoutAccelerator forces the CPU kernel even when an accelerator is
// registered. Reference renders and tests use it.
func WithoutAccelerator() RenderOption {
	return func(o *renderOptions) {
		o.accelerate = false
	}
}
