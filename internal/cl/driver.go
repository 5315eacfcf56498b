// Package cl is a thin host-side binding to an OpenCL driver.
//
// The interfaces in this package cover exactly the capability surface the
// harness needs: platform and device enumeration, contexts, program
// compilation, buffers, kernels and command queues. The cgo implementation
// is compiled with the "gpu" build tag; without it NewDriver returns
// ErrNotBuilt. Tests use the in-memory driver from package cltest.
//
// Every object that owns a driver resource has a Release method. Release is
// idempotent.
package cl

// Driver is the entry point to an OpenCL implementation.
type Driver interface {
	// Platforms returns the installed platforms in discovery order.
	// An installation without platforms yields an empty slice and no error.
	Platforms() ([]Platform, error)
}

// Platform is one vendor ICD.
type Platform interface {
	// Info returns the platform metadata; Devices is left empty.
	Info() PlatformInfo
	// Devices returns the platform's devices matching filter. A platform
	// with no matching device yields an empty slice and no error.
	Devices(filter DeviceType) ([]Device, error)
}

// Device is one compute device under a platform. Devices are safe to share
// between goroutines.
type Device interface {
	Info() DeviceInfo
	// NewContext creates a context bound to this device only.
	NewContext() (Context, error)
}

// Context is a compilation and execution scope bound to one device.
//
// Whether a context tolerates concurrent program builds is up to the driver;
// the binding adds no locking of its own.
type Context interface {
	NewProgram(source string) (Program, error)
	NewBuffer(flags MemFlags, size int) (Buffer, error)
	NewQueue() (Queue, error)
	Release()
}

// Program is the result of compiling kernel source within a context.
type Program interface {
	// Build compiles the program for the context's device. A compile error
	// is reported as *Error with code StatusBuildProgramFailure.
	Build(options string) error
	// BuildLog returns the compiler diagnostics of the last Build.
	BuildLog() (string, error)
	NewKernel(name string) (Kernel, error)
	Release()
}

// Kernel is a named entry point of a built program.
type Kernel interface {
	Name() string
	SetArg(index int, buf Buffer) error
	Release()
}

// Buffer is device memory allocated within a context.
type Buffer interface {
	Size() int
	Release()
}

// Queue orders kernel execution and memory transfers on a device.
type Queue interface {
	// EnqueueTask enqueues a single work-item execution of k.
	EnqueueTask(k Kernel) error
	// ReadBuffer copies len(dst) bytes from buf into dst and blocks until
	// the transfer has completed.
	ReadBuffer(buf Buffer, dst []byte) error
	Finish() error
	Release()
}
