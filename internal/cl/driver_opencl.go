//go:build gpu

package cl

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>
*/
import "C"

import (
	"strings"
	"unsafe"
)

// NewDriver returns the system OpenCL driver reached through the ICD loader.
func NewDriver() (Driver, error) {
	return openCLDriver{}, nil
}

type openCLDriver struct{}

func (openCLDriver) Platforms() ([]Platform, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if int32(status) == StatusPlatformNotFoundKHR {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs", status)
	}

	platforms := make([]Platform, 0, len(ids))
	for _, id := range ids {
		p, err := newPlatform(id)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

type openCLPlatform struct {
	id   C.cl_platform_id
	info PlatformInfo
}

func newPlatform(id C.cl_platform_id) (*openCLPlatform, error) {
	name, err := platformString(id, C.CL_PLATFORM_NAME, "CL_PLATFORM_NAME")
	if err != nil {
		return nil, err
	}
	vendor, err := platformString(id, C.CL_PLATFORM_VENDOR, "CL_PLATFORM_VENDOR")
	if err != nil {
		return nil, err
	}
	version, err := platformString(id, C.CL_PLATFORM_VERSION, "CL_PLATFORM_VERSION")
	if err != nil {
		return nil, err
	}
	return &openCLPlatform{
		id:   id,
		info: PlatformInfo{Name: name, Vendor: vendor, Version: version},
	}, nil
}

func (p *openCLPlatform) Info() PlatformInfo { return p.info }

func (p *openCLPlatform) Devices(filter DeviceType) ([]Device, error) {
	kind := deviceTypeMask(filter)

	var count C.cl_uint
	status := C.clGetDeviceIDs(p.id, kind, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(p.id, kind, count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs", status)
	}

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &openCLDevice{id: id, info: info})
	}
	return devices, nil
}

type openCLDevice struct {
	id   C.cl_device_id
	info DeviceInfo
}

func (d *openCLDevice) Info() DeviceInfo { return d.info }

func (d *openCLDevice) NewContext() (Context, error) {
	var status C.cl_int
	ctx := C.clCreateContext(nil, 1, &d.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}
	return &openCLContext{ctx: ctx, device: d}, nil
}

type openCLContext struct {
	ctx    C.cl_context
	device *openCLDevice
}

func (c *openCLContext) NewProgram(source string) (Program, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	var status C.cl_int
	program := C.clCreateProgramWithSource(c.ctx, 1, &src, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}
	return &openCLProgram{program: program, device: c.device.id}, nil
}

func (c *openCLContext) NewBuffer(flags MemFlags, size int) (Buffer, error) {
	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, C.cl_mem_flags(flags), C.size_t(size), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &openCLBuffer{mem: mem, size: size}, nil
}

func (c *openCLContext) NewQueue() (Queue, error) {
	var status C.cl_int
	queue := C.clCreateCommandQueue(c.ctx, c.device.id, 0, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", status)
	}
	return &openCLQueue{queue: queue}, nil
}

func (c *openCLContext) Release() {
	if c.ctx != nil {
		C.clReleaseContext(c.ctx)
		c.ctx = nil
	}
}

type openCLProgram struct {
	program C.cl_program
	device  C.cl_device_id
}

func (p *openCLProgram) Build(options string) error {
	opts := C.CString(options)
	defer C.free(unsafe.Pointer(opts))

	status := C.clBuildProgram(p.program, 1, &p.device, opts, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clBuildProgram", status)
	}
	return nil
}

func (p *openCLProgram) BuildLog() (string, error) {
	return queryString("clGetProgramBuildInfo(CL_PROGRAM_BUILD_LOG)", func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int {
		return C.clGetProgramBuildInfo(p.program, p.device, C.CL_PROGRAM_BUILD_LOG, size, value, ret)
	})
}

func (p *openCLProgram) NewKernel(name string) (Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	kernel := C.clCreateKernel(p.program, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel", status)
	}
	return &openCLKernel{kernel: kernel, name: name}, nil
}

func (p *openCLProgram) Release() {
	if p.program != nil {
		C.clReleaseProgram(p.program)
		p.program = nil
	}
}

type openCLKernel struct {
	kernel C.cl_kernel
	name   string
}

func (k *openCLKernel) Name() string { return k.name }

func (k *openCLKernel) SetArg(index int, buf Buffer) error {
	b, ok := buf.(*openCLBuffer)
	if !ok || b.mem == nil {
		return NewError("clSetKernelArg", StatusInvalidMemObject)
	}
	mem := b.mem
	status := C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	if status != C.CL_SUCCESS {
		return statusError("clSetKernelArg", status)
	}
	return nil
}

func (k *openCLKernel) Release() {
	if k.kernel != nil {
		C.clReleaseKernel(k.kernel)
		k.kernel = nil
	}
}

type openCLBuffer struct {
	mem  C.cl_mem
	size int
}

func (b *openCLBuffer) Size() int { return b.size }

func (b *openCLBuffer) Release() {
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

type openCLQueue struct {
	queue C.cl_command_queue
}

func (q *openCLQueue) EnqueueTask(k Kernel) error {
	kernel, ok := k.(*openCLKernel)
	if !ok || kernel.kernel == nil {
		return NewError("clEnqueueTask", StatusInvalidKernel)
	}
	status := C.clEnqueueTask(q.queue, kernel.kernel, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueTask", status)
	}
	return nil
}

func (q *openCLQueue) ReadBuffer(buf Buffer, dst []byte) error {
	b, ok := buf.(*openCLBuffer)
	if !ok || b.mem == nil {
		return NewError("clEnqueueReadBuffer", StatusInvalidMemObject)
	}
	if len(dst) == 0 {
		return nil
	}
	if len(dst) > b.size {
		return NewError("clEnqueueReadBuffer", StatusInvalidValue)
	}
	status := C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	return nil
}

func (q *openCLQueue) Finish() error {
	status := C.clFinish(q.queue)
	if status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	return nil
}

func (q *openCLQueue) Release() {
	if q.queue != nil {
		C.clReleaseCommandQueue(q.queue)
		q.queue = nil
	}
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	var info DeviceInfo
	var err error
	if info.Name, err = deviceString(id, C.CL_DEVICE_NAME, "CL_DEVICE_NAME"); err != nil {
		return DeviceInfo{}, err
	}
	if info.Vendor, err = deviceString(id, C.CL_DEVICE_VENDOR, "CL_DEVICE_VENDOR"); err != nil {
		return DeviceInfo{}, err
	}
	if info.Version, err = deviceString(id, C.CL_DEVICE_VERSION, "CL_DEVICE_VERSION"); err != nil {
		return DeviceInfo{}, err
	}

	var (
		rawType      C.cl_device_type
		computeUnits C.cl_uint
		available    C.cl_bool
	)
	scalars := []struct {
		param C.cl_device_info
		label string
		size  uintptr
		value unsafe.Pointer
	}{
		{C.CL_DEVICE_TYPE, "CL_DEVICE_TYPE", unsafe.Sizeof(rawType), unsafe.Pointer(&rawType)},
		{C.CL_DEVICE_MAX_COMPUTE_UNITS, "CL_DEVICE_MAX_COMPUTE_UNITS", unsafe.Sizeof(computeUnits), unsafe.Pointer(&computeUnits)},
		{C.CL_DEVICE_AVAILABLE, "CL_DEVICE_AVAILABLE", unsafe.Sizeof(available), unsafe.Pointer(&available)},
	}
	for _, q := range scalars {
		if status := C.clGetDeviceInfo(id, q.param, C.size_t(q.size), q.value, nil); status != C.CL_SUCCESS {
			return DeviceInfo{}, statusError("clGetDeviceInfo("+q.label+")", status)
		}
	}

	info.Type = mapDeviceType(rawType)
	info.MaxComputeUnits = uint32(computeUnits)
	info.Available = available != C.CL_FALSE
	return info, nil
}

func platformString(id C.cl_platform_id, param C.cl_platform_info, label string) (string, error) {
	return queryString("clGetPlatformInfo("+label+")", func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int {
		return C.clGetPlatformInfo(id, param, size, value, ret)
	})
}

func deviceString(id C.cl_device_id, param C.cl_device_info, label string) (string, error) {
	return queryString("clGetDeviceInfo("+label+")", func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int {
		return C.clGetDeviceInfo(id, param, size, value, ret)
	})
}

// queryString runs the two-step size-then-value protocol shared by the
// clGet*Info calls and strips the trailing NUL.
func queryString(op string, query func(size C.size_t, value unsafe.Pointer, ret *C.size_t) C.cl_int) (string, error) {
	var size C.size_t
	if status := query(0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError(op, status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	if status := query(size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError(op, status)
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

func deviceTypeMask(filter DeviceType) C.cl_device_type {
	switch filter {
	case DeviceTypeGPU:
		return C.CL_DEVICE_TYPE_GPU
	case DeviceTypeCPU:
		return C.CL_DEVICE_TYPE_CPU
	case DeviceTypeAccelerator:
		return C.CL_DEVICE_TYPE_ACCELERATOR
	case DeviceTypeDefault:
		return C.CL_DEVICE_TYPE_DEFAULT
	default:
		return C.CL_DEVICE_TYPE_ALL
	}
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(op string, status C.cl_int) error {
	return NewError(op, int32(status))
}
