// Package hello runs a single compile, execute and readback cycle as a
// smoke test of a driver.
package hello

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cwbudde/clstress/internal/cl"
)

const (
	DefaultSourcePath   = "hello.cl"
	DefaultBuildOptions = "-cl-std=CL1.2"
	DefaultKernelName   = "Hello"
	DefaultBufferSize   = 16
)

var (
	// ErrNoPlatform is returned when no platform can be selected.
	ErrNoPlatform = errors.New("no OpenCL platform available")
	// ErrNoDevice is returned when the selected platform has no matching device.
	ErrNoDevice = errors.New("no matching OpenCL device")
)

// PlatformSelector picks one platform out of the discovered ones.
type PlatformSelector func(platforms []cl.Platform) (cl.Platform, error)

// DevicePredicate accepts or rejects a candidate device.
type DevicePredicate func(info cl.DeviceInfo) bool

// LastPlatform selects the last discovered platform.
func LastPlatform(platforms []cl.Platform) (cl.Platform, error) {
	if len(platforms) == 0 {
		return nil, ErrNoPlatform
	}
	return platforms[len(platforms)-1], nil
}

// PlatformNamed selects the first platform whose name is name.
func PlatformNamed(name string) PlatformSelector {
	return func(platforms []cl.Platform) (cl.Platform, error) {
		for _, p := range platforms {
			if p.Info().Name == name {
				return p, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrNoPlatform, name)
	}
}

// AnyDevice accepts every device.
func AnyDevice(cl.DeviceInfo) bool { return true }

// AvailableDevice accepts devices that report themselves available.
func AvailableDevice(info cl.DeviceInfo) bool { return info.Available }

// Config controls the smoke test.
type Config struct {
	SourcePath   string
	BuildOptions string
	KernelName   string
	BufferSize   int
	DeviceType   cl.DeviceType

	SelectPlatform PlatformSelector
	AcceptDevice   DevicePredicate
}

// DefaultConfig runs kernel "Hello" from ./hello.cl on the first CPU device
// of the last platform.
func DefaultConfig() Config {
	return Config{
		SourcePath:     DefaultSourcePath,
		BuildOptions:   DefaultBuildOptions,
		KernelName:     DefaultKernelName,
		BufferSize:     DefaultBufferSize,
		DeviceType:     cl.DeviceTypeCPU,
		SelectPlatform: LastPlatform,
		AcceptDevice:   AnyDevice,
	}
}

// Result is what the smoke test observed.
type Result struct {
	Platform string
	Device   string
	// Output holds the bytes read back from the kernel's buffer. They are
	// not checked.
	Output []byte
}

// Run executes the smoke test and prints "hello" to stdout on success.
func Run(drv cl.Driver, cfg Config, stdout io.Writer) (*Result, error) {
	if cfg.SelectPlatform == nil {
		cfg.SelectPlatform = LastPlatform
	}
	if cfg.AcceptDevice == nil {
		cfg.AcceptDevice = AnyDevice
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", cfg.BufferSize)
	}

	platforms, err := drv.Platforms()
	if err != nil {
		return nil, fmt.Errorf("enumerate platforms: %w", err)
	}
	platform, err := cfg.SelectPlatform(platforms)
	if err != nil {
		return nil, err
	}
	device, err := selectDevice(platform, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{Platform: platform.Info().Name, Device: device.Info().Name}
	slog.Debug("Selected device", "platform", res.Platform, "device", res.Device)

	src, err := os.ReadFile(cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel source: %w", err)
	}

	ctx, err := device.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	defer ctx.Release()

	program, err := ctx.NewProgram(string(src))
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}
	defer program.Release()

	if err := program.Build(cfg.BuildOptions); err != nil {
		return nil, &BuildError{Path: cfg.SourcePath, Log: cl.ReadBuildLog(program), Err: err}
	}

	buf, err := ctx.NewBuffer(cl.MemWriteOnly|cl.MemHostReadOnly, cfg.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("allocate output buffer: %w", err)
	}
	defer buf.Release()

	kernel, err := program.NewKernel(cfg.KernelName)
	if err != nil {
		return nil, fmt.Errorf("create kernel %q: %w", cfg.KernelName, err)
	}
	defer kernel.Release()

	if err := kernel.SetArg(0, buf); err != nil {
		return nil, fmt.Errorf("bind output buffer: %w", err)
	}

	queue, err := ctx.NewQueue()
	if err != nil {
		return nil, fmt.Errorf("create command queue: %w", err)
	}
	defer queue.Release()

	if err := queue.EnqueueTask(kernel); err != nil {
		return nil, fmt.Errorf("enqueue kernel %q: %w", cfg.KernelName, err)
	}
	if err := queue.Finish(); err != nil {
		return nil, fmt.Errorf("wait for kernel %q: %w", cfg.KernelName, err)
	}

	res.Output = make([]byte, cfg.BufferSize)
	if err := queue.ReadBuffer(buf, res.Output); err != nil {
		return nil, fmt.Errorf("read output buffer: %w", err)
	}

	fmt.Fprintln(stdout, "hello")
	return res, nil
}

func selectDevice(p cl.Platform, cfg Config) (cl.Device, error) {
	devices, err := p.Devices(cfg.DeviceType)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	for _, d := range devices {
		if cfg.AcceptDevice(d.Info()) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s device on platform %q", ErrNoDevice, cfg.DeviceType, p.Info().Name)
}

// BuildError is a compiler rejection of the smoke-test kernel. Log holds the
// compiler diagnostics.
type BuildError struct {
	Path string
	Log  string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
