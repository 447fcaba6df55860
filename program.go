package genart

import "image/color"

// Program is a normalized formula bundled with its liveness.
//
// A Program is immutable after Compile and safe for concurrent use; it is
// the unit the renderer, the accelerator and the caches work with.
type Program struct {
	formula     Formula
	live        Liveness
	fingerprint uint64
}

// Compile normalizes a copy of f and analyzes it. f itself is not modified.
// Out-of-range fields of a hand-built f are reduced modulo their domain.
func Compile(f Formula) *Program {
	p := &Program{formula: f}
	p.live = Analyze(&p.formula)
	p.fingerprint = p.formula.Fingerprint()
	return p
}

// Formula returns a copy of the normalized formula.
func (p *Program) Formula() Formula {
	return p.formula
}

// Liveness returns a copy of the liveness result.
func (p *Program) Liveness() Liveness {
	return p.live
}

// Fingerprint returns the fingerprint of the normalized formula.
func (p *Program) Fingerprint() uint64 {
	return p.fingerprint
}

// LiveSteps returns the indices of live steps in execution order.
func (p *Program) LiveSteps() []int {
	steps := make([]int, 0, p.live.LiveCount())
	for i, live := range p.live.Step {
		if live {
			steps = append(steps, i)
		}
	}
	return steps
}

// Sample evaluates the program at normalized coordinates (u, v).
func (p *Program) Sample(u, v float64) Vec3 {
	return EvaluateSample(&p.formula, &p.live, u, v)
}

// Pixel renders pixel (x, y) of a width x height image with k x k
// oversampling.
func (p *Program) Pixel(x, y, width, height, oversampling int) color.RGBA {
	return RenderPixel(&p.formula, &p.live, x, y, width, height, oversampling)
}
