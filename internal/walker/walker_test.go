package walker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/cl/cltest"
	"github.com/cwbudde/clstress/internal/stress"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Stress.Threads = 2
	opts.Stress.Iterations = 3
	return opts
}

func TestWalk_NoPlatforms(t *testing.T) {
	var stdout, stderr bytes.Buffer
	summary, err := Walk(cltest.NewDriver(), smallOptions(), &stdout, &stderr)

	assert.ErrorIs(t, err, ErrNoPlatforms)
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
	assert.Zero(t, summary.Checked)
}

func TestWalk_SingleCPUDevice(t *testing.T) {
	dev := cltest.NewDevice("Intel(R) Core(TM) i7", cl.DeviceTypeCPU)
	drv := cltest.NewDriver(cltest.NewPlatform("Intel(R) OpenCL", dev))

	var stdout, stderr bytes.Buffer
	summary, err := Walk(drv, DefaultOptions(), &stdout, &stderr)
	require.NoError(t, err)

	var want strings.Builder
	want.WriteString("Platform: Intel(R) OpenCL\n")
	want.WriteString("    Checking device: Intel(R) Core(TM) i7\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&want, "        Thread %d spawned. Running 200 iterations.\n", i)
	}
	want.WriteString("\nDevices checked: 1\n")

	assert.Equal(t, want.String(), stdout.String())
	assert.Empty(t, stderr.String())
	assert.Equal(t, 1, summary.Checked)
	require.Len(t, summary.Reports, 1)
	assert.True(t, summary.Reports[0].OK())
	assert.NotEmpty(t, summary.RunID)
}

func TestWalk_ReversePlatformOrder(t *testing.T) {
	drv := cltest.NewDriver(
		cltest.NewPlatform("first", cltest.NewDevice("a", cl.DeviceTypeCPU)),
		cltest.NewPlatform("second", cltest.NewDevice("b", cl.DeviceTypeGPU)),
		cltest.NewPlatform("third"),
	)

	var stdout, stderr bytes.Buffer
	summary, err := Walk(drv, smallOptions(), &stdout, &stderr)
	require.NoError(t, err)

	var platforms []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if name, ok := strings.CutPrefix(line, "Platform: "); ok {
			platforms = append(platforms, name)
		}
	}
	assert.Equal(t, []string{"third", "second", "first"}, platforms)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, "b", summary.Reports[0].Device)
	assert.Equal(t, "a", summary.Reports[1].Device)
}

func TestWalk_SkipsUnavailableDevices(t *testing.T) {
	offline := cltest.NewDevice("offline", cl.DeviceTypeGPU)
	offline.Unavailable = true
	online := cltest.NewDevice("online", cl.DeviceTypeCPU)
	drv := cltest.NewDriver(cltest.NewPlatform("p", offline, online))

	var stdout, stderr bytes.Buffer
	summary, err := Walk(drv, smallOptions(), &stdout, &stderr)
	require.NoError(t, err)

	assert.Empty(t, offline.Contexts(), "no context is created for an unavailable device")
	assert.NotContains(t, stdout.String(), "Checking device: offline")
	assert.Contains(t, stdout.String(), "Checking device: online")
	assert.Len(t, online.Contexts(), 1)
	assert.Equal(t, 1, summary.Checked)
	assert.True(t, strings.HasSuffix(stdout.String(), "\nDevices checked: 1\n"))
}

func TestWalk_AllDevicesUnavailable(t *testing.T) {
	dev := cltest.NewDevice("offline", cl.DeviceTypeCPU)
	dev.Unavailable = true
	drv := cltest.NewDriver(cltest.NewPlatform("p", dev))

	var stdout, stderr bytes.Buffer
	summary, err := Walk(drv, smallOptions(), &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "Platform: p\n\nDevices checked: 0\n", stdout.String())
	assert.Zero(t, summary.Checked)
	assert.Empty(t, dev.Contexts())
}

func TestWalk_DevicesAreSequential(t *testing.T) {
	a := cltest.NewDevice("a", cl.DeviceTypeCPU)
	b := cltest.NewDevice("b", cl.DeviceTypeGPU)
	c := cltest.NewDevice("c", cl.DeviceTypeAccelerator)
	drv := cltest.NewDriver(cltest.NewPlatform("p", a, b, c))

	opts := smallOptions()
	opts.Stress.Threads = 6
	opts.Stress.Iterations = 10

	var stdout, stderr bytes.Buffer
	_, err := Walk(drv, opts, &stdout, &stderr)
	require.NoError(t, err)

	var prev *cltest.Context
	for _, dev := range []*cltest.Device{a, b, c} {
		contexts := dev.Contexts()
		require.Len(t, contexts, 1)
		ctx := contexts[0]

		require.True(t, ctx.Released(), "context of %s released", dev.Name)
		total, inFlight := ctx.BuildsAtRelease()
		assert.EqualValues(t, 60, total, "all builds of %s done before release", dev.Name)
		assert.Zero(t, inFlight)
		assert.Zero(t, dev.Live(), "%s leaked driver objects", dev.Name)

		if prev != nil {
			assert.Greater(t, ctx.CreatedSeq, prev.ReleasedSeq, "%s started before the previous device finished", dev.Name)
		}
		prev = ctx
	}
}

func TestWalk_DeviceTypeFilter(t *testing.T) {
	cpu := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
	gpu := cltest.NewDevice("gpu", cl.DeviceTypeGPU)
	drv := cltest.NewDriver(cltest.NewPlatform("p", cpu, gpu))

	opts := smallOptions()
	opts.DeviceType = cl.DeviceTypeGPU

	var stdout, stderr bytes.Buffer
	summary, err := Walk(drv, opts, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Empty(t, cpu.Contexts())
	assert.Len(t, gpu.Contexts(), 1)
}

func TestWalk_MalformedSourceStillCountsDevice(t *testing.T) {
	dev := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
	drv := cltest.NewDriver(cltest.NewPlatform("p", dev))

	opts := smallOptions()
	opts.Stress.Threads = 3
	opts.Stress.Source = "kernel void add() { broken"

	var stdout, stderr bytes.Buffer
	summary, err := Walk(drv, opts, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(stderr.String(), "OpenCL compilation error\n"))
	assert.Equal(t, 1, summary.Checked)
	assert.Contains(t, stdout.String(), "Devices checked: 1")
	assert.Len(t, summary.Reports[0].Failures(), 3)
}

func TestWalk_DriverErrorsAbort(t *testing.T) {
	contextErr := cl.NewError("clCreateContext", cl.StatusOutOfResources)

	tests := []struct {
		name  string
		setup func() *cltest.Driver
		code  int32
	}{
		{
			name: "enumerate platforms",
			setup: func() *cltest.Driver {
				d := cltest.NewDriver()
				d.Err = cl.NewError("clGetPlatformIDs", cl.StatusOutOfHostMemory)
				return d
			},
			code: cl.StatusOutOfHostMemory,
		},
		{
			name: "enumerate devices",
			setup: func() *cltest.Driver {
				p := cltest.NewPlatform("p")
				p.DevicesErr = cl.NewError("clGetDeviceIDs", cl.StatusInvalidPlatform)
				return cltest.NewDriver(p)
			},
			code: cl.StatusInvalidPlatform,
		},
		{
			name: "create context",
			setup: func() *cltest.Driver {
				dev := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
				dev.ContextErr = contextErr
				return cltest.NewDriver(cltest.NewPlatform("p", dev))
			},
			code: cl.StatusOutOfResources,
		},
		{
			name: "create program",
			setup: func() *cltest.Driver {
				dev := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
				dev.ProgramErr = cl.NewError("clCreateProgramWithSource", cl.StatusInvalidContext)
				return cltest.NewDriver(cltest.NewPlatform("p", dev))
			},
			code: cl.StatusInvalidContext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			summary, err := Walk(tt.setup(), smallOptions(), &stdout, &stderr)

			var clErr *cl.Error
			require.True(t, errors.As(err, &clErr), "got %v", err)
			assert.Equal(t, tt.code, clErr.Code)
			assert.NotContains(t, stdout.String(), "Devices checked")
			assert.Zero(t, summary.Checked)
		})
	}
}

func TestWalk_InvalidStressConfig(t *testing.T) {
	dev := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
	drv := cltest.NewDriver(cltest.NewPlatform("p", dev))

	opts := smallOptions()
	opts.Stress.Threads = 0

	var stdout, stderr bytes.Buffer
	_, err := Walk(drv, opts, &stdout, &stderr)
	assert.ErrorIs(t, err, stress.ErrInvalidConfig)
	assert.Zero(t, dev.Live(), "context released on error")
}
