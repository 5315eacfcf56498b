package cl_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/cl/cltest"
)

func TestEnumeratePlatforms(t *testing.T) {
	offline := cltest.NewDevice("gpu", cl.DeviceTypeGPU)
	offline.Unavailable = true
	drv := cltest.NewDriver(
		cltest.NewPlatform("a", cltest.NewDevice("cpu", cl.DeviceTypeCPU), offline),
		cltest.NewPlatform("b"),
	)

	platforms, err := cl.EnumeratePlatforms(drv)
	require.NoError(t, err)
	require.Len(t, platforms, 2)

	assert.Equal(t, "a", platforms[0].Name)
	require.Len(t, platforms[0].Devices, 2)
	assert.Equal(t, cl.DeviceTypeCPU, platforms[0].Devices[0].Type)
	assert.True(t, platforms[0].Devices[0].Available)
	assert.False(t, platforms[0].Devices[1].Available)

	assert.Equal(t, "b", platforms[1].Name)
	assert.Empty(t, platforms[1].Devices)
}

func TestEnumeratePlatforms_Errors(t *testing.T) {
	drv := cltest.NewDriver()
	drv.Err = cl.NewError("clGetPlatformIDs", cl.StatusOutOfHostMemory)
	_, err := cl.EnumeratePlatforms(drv)
	assert.True(t, errors.Is(err, drv.Err))

	p := cltest.NewPlatform("p")
	p.DevicesErr = cl.NewError("clGetDeviceIDs", cl.StatusInvalidPlatform)
	_, err = cl.EnumeratePlatforms(cltest.NewDriver(p))
	assert.Equal(t, p.DevicesErr, err)
}
