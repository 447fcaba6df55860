package genart

import (
	"image/color"
	"math"
)

// RenderPixel box-filters k*k samples of the kernel over pixel (x, y) of a
// width x height image, where k is the oversampling factor (values below 1
// are treated as 1). Sample (dx, dy) is taken at
//
//	u = (x*k + dx) / (width*k), v = (y*k + dy) / (height*k)
//
// Each averaged component is scaled by 255 and truncated into an 8-bit
// channel; alpha is always opaque.
func RenderPixel(f *Formula, live *Liveness, x, y, width, height, oversampling int) color.RGBA {
	k := max(oversampling, 1)
	uScale := float64(width * k)
	vScale := float64(height * k)

	var sum Vec3
	for dx := range k {
		u := float64(x*k+dx) / uScale
		for dy := range k {
			v := float64(y*k+dy) / vScale
			sum = sum.Add(EvaluateSample(f, live, u, v))
		}
	}
	n := float64(k * k)

	return color.RGBA{R: toChannel(sum.X / n), G: toChannel(sum.Y / n), B: toChannel(sum.Z / n), A: 255}
}

// toChannel converts a component to 8 bits with truncation, clamping into
// [0, 255]. NaN maps to 0.
func toChannel(c float64) uint8 {
	v := math.Floor(c * 255)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
