//go:build !nogpu

// Package gpu registers the WGSL compute-kernel accelerator.
//
// Import it for its side effect:
//
//	import _ "github.com/gogpu/genart/gpu" // render on the GPU when one is available
//
// If no Vulkan device can be opened, the accelerator stays registered but
// every render falls back to the CPU kernel.
package gpu

import (
	"github.com/gogpu/genart"
	gpuimpl "github.com/gogpu/genart/internal/gpu"
	"github.com/gogpu/gpucontext"
)

func init() {
	if err := genart.RegisterAccelerator(&gpuimpl.KernelAccelerator{}); err != nil {
		genart.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider makes the accelerator use a GPU device owned by the host
// application (for example a gogpu window) instead of its own.
//
// The provider must also expose HalDevice() and HalQueue() for direct HAL
// access.
func SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	return genart.SetAcceleratorDeviceProvider(provider)
}
