package cl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/cl/cltest"
)

func failedProgram(t *testing.T, dev *cltest.Device) cl.Program {
	t.Helper()
	ctx, err := dev.NewContext()
	require.NoError(t, err)
	t.Cleanup(ctx.Release)

	program, err := ctx.NewProgram("kernel void add( {")
	require.NoError(t, err)
	t.Cleanup(program.Release)
	require.Error(t, program.Build(""))
	return program
}

func TestReadBuildLog(t *testing.T) {
	dev := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
	assert.Equal(t, "<source>: error: expected '}'", cl.ReadBuildLog(failedProgram(t, dev)))
}

func TestReadBuildLog_QueryFails(t *testing.T) {
	dev := cltest.NewDevice("cpu", cl.DeviceTypeCPU)
	dev.BuildLogErr = cl.NewError("clGetProgramBuildInfo", cl.StatusOutOfHostMemory)
	assert.Equal(t, "(build log unavailable: clGetProgramBuildInfo: CL_OUT_OF_HOST_MEMORY)", cl.ReadBuildLog(failedProgram(t, dev)))
}
