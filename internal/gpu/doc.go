//go:build !nogpu

// Package gpu renders genart programs with WebGPU compute shaders.
//
// It runs on the gogpu/wgpu Pure Go WebGPU HAL (zero CGO) and compiles
// shaders with gogpu/naga.
//
// # Kernel generation
//
// Each program gets its own WGSL compute shader. GenerateWGSL walks the
// program's live steps and emits one statement block per step, so dead steps
// cost nothing on the GPU and no step table is interpreted at run time:
//
//	Program -> GenerateWGSL -> naga (WGSL -> SPIR-V) -> compute pipeline -> dispatch
//
// The subsample grid is unrolled too. The generated module contains no loops.
//
// # Pipeline cache
//
// KernelAccelerator keeps compiled pipelines in an LRU keyed by program
// fingerprint and oversampling factor. Evicted pipelines are destroyed.
//
// # Precision
//
// The shader computes in float32. Pixels close to a wrap boundary or a
// CONDITIONAL threshold, and SINE steps with large arguments, can differ
// from the float64 CPU kernel.
//
// # Fallback
//
// Without a GPU, or for oversampling above MaxOversampling, Render returns
// genart.ErrFallbackToCPU and the renderer uses the CPU kernel.
package gpu
