package cl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := NewError("clBuildProgram", StatusBuildProgramFailure)
	assert.Equal(t, "clBuildProgram: CL_BUILD_PROGRAM_FAILURE", err.Error())

	wrapped := fmt.Errorf("worker 3: %w", err)
	var clErr *Error
	assert.True(t, errors.As(wrapped, &clErr))
	assert.Equal(t, StatusBuildProgramFailure, clErr.Code)
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		code int32
		want string
	}{
		{StatusSuccess, "CL_SUCCESS"},
		{StatusDeviceNotFound, "CL_DEVICE_NOT_FOUND"},
		{StatusInvalidKernelName, "CL_INVALID_KERNEL_NAME"},
		{StatusPlatformNotFoundKHR, "CL_PLATFORM_NOT_FOUND_KHR"},
		{-52, "CL_INVALID_KERNEL_ARGS"},
		{-9999, "CL_UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusText(tt.code), "code %d", tt.code)
	}
}

func TestIsBuildFailure(t *testing.T) {
	assert.True(t, IsBuildFailure(NewError("clBuildProgram", StatusBuildProgramFailure)))
	assert.True(t, IsBuildFailure(fmt.Errorf("wrapped: %w", NewError("clBuildProgram", StatusBuildProgramFailure))))
	assert.False(t, IsBuildFailure(NewError("clBuildProgram", StatusInvalidBuildOptions)))
	assert.False(t, IsBuildFailure(errors.New("clBuildProgram failed")))
	assert.False(t, IsBuildFailure(nil))
}
