package cl

import (
	"errors"
	"fmt"
)

// ErrNotBuilt indicates the binary was built without OpenCL support.
var ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")

// OpenCL status codes used by the harness.
const (
	StatusSuccess                  int32 = 0
	StatusDeviceNotFound           int32 = -1
	StatusDeviceNotAvailable       int32 = -2
	StatusCompilerNotAvailable     int32 = -3
	StatusMemObjectAllocFailure    int32 = -4
	StatusOutOfResources           int32 = -5
	StatusOutOfHostMemory          int32 = -6
	StatusBuildProgramFailure      int32 = -11
	StatusInvalidValue             int32 = -30
	StatusInvalidDeviceType        int32 = -31
	StatusInvalidPlatform          int32 = -32
	StatusInvalidDevice            int32 = -33
	StatusInvalidContext           int32 = -34
	StatusInvalidCommandQueue      int32 = -36
	StatusInvalidMemObject         int32 = -38
	StatusInvalidBuildOptions      int32 = -43
	StatusInvalidProgram           int32 = -44
	StatusInvalidProgramExecutable int32 = -45
	StatusInvalidKernelName        int32 = -46
	StatusInvalidKernel            int32 = -48
	StatusInvalidArgIndex          int32 = -49
	StatusInvalidArgValue          int32 = -50
	StatusInvalidOperation         int32 = -59
	StatusInvalidBufferSize        int32 = -61
	StatusPlatformNotFoundKHR      int32 = -1001
)

var statusNames = map[int32]string{
	StatusSuccess:                  "CL_SUCCESS",
	StatusDeviceNotFound:           "CL_DEVICE_NOT_FOUND",
	StatusDeviceNotAvailable:       "CL_DEVICE_NOT_AVAILABLE",
	StatusCompilerNotAvailable:     "CL_COMPILER_NOT_AVAILABLE",
	StatusMemObjectAllocFailure:    "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	StatusOutOfResources:           "CL_OUT_OF_RESOURCES",
	StatusOutOfHostMemory:          "CL_OUT_OF_HOST_MEMORY",
	-7:                             "CL_PROFILING_INFO_NOT_AVAILABLE",
	-8:                             "CL_MEM_COPY_OVERLAP",
	-9:                             "CL_IMAGE_FORMAT_MISMATCH",
	-10:                            "CL_IMAGE_FORMAT_NOT_SUPPORTED",
	StatusBuildProgramFailure:      "CL_BUILD_PROGRAM_FAILURE",
	-12:                            "CL_MAP_FAILURE",
	StatusInvalidValue:             "CL_INVALID_VALUE",
	StatusInvalidDeviceType:        "CL_INVALID_DEVICE_TYPE",
	StatusInvalidPlatform:          "CL_INVALID_PLATFORM",
	StatusInvalidDevice:            "CL_INVALID_DEVICE",
	StatusInvalidContext:           "CL_INVALID_CONTEXT",
	-35:                            "CL_INVALID_QUEUE_PROPERTIES",
	StatusInvalidCommandQueue:      "CL_INVALID_COMMAND_QUEUE",
	-37:                            "CL_INVALID_HOST_PTR",
	StatusInvalidMemObject:         "CL_INVALID_MEM_OBJECT",
	-42:                            "CL_INVALID_BINARY",
	StatusInvalidBuildOptions:      "CL_INVALID_BUILD_OPTIONS",
	StatusInvalidProgram:           "CL_INVALID_PROGRAM",
	StatusInvalidProgramExecutable: "CL_INVALID_PROGRAM_EXECUTABLE",
	StatusInvalidKernelName:        "CL_INVALID_KERNEL_NAME",
	-47:                            "CL_INVALID_KERNEL_DEFINITION",
	StatusInvalidKernel:            "CL_INVALID_KERNEL",
	StatusInvalidArgIndex:          "CL_INVALID_ARG_INDEX",
	StatusInvalidArgValue:          "CL_INVALID_ARG_VALUE",
	-51:                            "CL_INVALID_ARG_SIZE",
	-52:                            "CL_INVALID_KERNEL_ARGS",
	-53:                            "CL_INVALID_WORK_DIMENSION",
	-54:                            "CL_INVALID_WORK_GROUP_SIZE",
	-55:                            "CL_INVALID_WORK_ITEM_SIZE",
	-56:                            "CL_INVALID_GLOBAL_OFFSET",
	-57:                            "CL_INVALID_EVENT_WAIT_LIST",
	-58:                            "CL_INVALID_EVENT",
	StatusInvalidOperation:         "CL_INVALID_OPERATION",
	StatusInvalidBufferSize:        "CL_INVALID_BUFFER_SIZE",
	StatusPlatformNotFoundKHR:      "CL_PLATFORM_NOT_FOUND_KHR",
}

// StatusText returns the symbolic name of an OpenCL status code.
func StatusText(code int32) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "CL_UNKNOWN_ERROR"
}

// Error is a failed driver call.
type Error struct {
	// Op is the driver entry point that failed, e.g. "clBuildProgram".
	Op   string
	Code int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, StatusText(e.Code))
}

// NewError returns an *Error for a failed call to op.
func NewError(op string, code int32) *Error {
	return &Error{Op: op, Code: code}
}

// IsBuildFailure reports whether err is a compiler rejection of the source
// as opposed to some other driver failure.
func IsBuildFailure(err error) bool {
	var clErr *Error
	return errors.As(err, &clErr) && clErr.Code == StatusBuildProgramFailure
}
