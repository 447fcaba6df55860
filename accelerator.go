package genart

import (
	"errors"
	"sync"

	"github.com/gogpu/gpucontext"
)

// ErrFallbackToCPU indicates the accelerator cannot render this request.
// The renderer falls back to the CPU kernel transparently.
var ErrFallbackToCPU = errors.New("genart: falling back to CPU rendering")

// ErrAcceleratorNil is returned by RegisterAccelerator for a nil accelerator.
var ErrAcceleratorNil = errors.New("genart: accelerator must not be nil")

// Target is a pixel buffer an accelerator renders into: RGBA8, 4 bytes per
// pixel, rows Stride bytes apart.
type Target struct {
	Data          []uint8
	Width, Height int
	Stride        int
}

// Accelerator is an optional alternative backend for whole-image rendering.
//
// The CPU kernel is the reference; an accelerator must produce the same image
// up to its arithmetic precision. When it returns ErrFallbackToCPU, or any
// other error, the Renderer renders on the CPU instead.
//
// Implementations live in backend packages and opt in via blank import:
//
//	import _ "github.com/gogpu/genart/gpu"
type Accelerator interface {
	// Name returns a short backend name, e.g. "wgsl-kernel".
	Name() string

	// Init acquires backend resources. Called once by RegisterAccelerator.
	Init() error

	// Close releases backend resources.
	Close()

	// Render evaluates p over every pixel of target with k x k oversampling.
	Render(target Target, p *Program, oversampling int) error
}

// DeviceProviderAware is implemented by accelerators that can reuse a GPU
// device owned by the host application instead of creating their own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider gpucontext.DeviceProvider) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator initializes a and makes it the accelerator every
// Renderer tries first. A previously registered accelerator is closed.
// If Init fails, nothing is registered and the error is returned.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return ErrAcceleratorNil
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())

	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()

	if old != nil && old != a {
		old.Close()
	}
	Logger().Info("genart: accelerator registered", "name", a.Name())
	return nil
}

// UnregisterAccelerator closes and removes the registered accelerator, if any.
func UnregisterAccelerator() {
	accelMu.Lock()
	old := accel
	accel = nil
	accelMu.Unlock()

	if old != nil {
		old.Close()
	}
}

// RegisteredAccelerator returns the registered accelerator, or nil.
func RegisteredAccelerator() Accelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// SetAcceleratorDeviceProvider hands a host GPU device to the registered
// accelerator. It is a no-op without an accelerator, or when the accelerator
// cannot share devices.
func SetAcceleratorDeviceProvider(provider gpucontext.DeviceProvider) error {
	a := RegisteredAccelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
