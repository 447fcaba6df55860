//go:build !nogpu

package main

import (
	"sync"

	"github.com/gogpu/genart"
	"github.com/gogpu/genart/internal/gpu"
)

// enableGPU registers the compute-kernel accelerator on first use, so
// commands that never render do not open a device.
var enableGPU = sync.OnceValue(func() error {
	return genart.RegisterAccelerator(&gpu.KernelAccelerator{})
})
