package cl

import (
	"fmt"
	"strings"
)

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"

	// DeviceTypeAll is only meaningful as an enumeration filter.
	DeviceTypeAll DeviceType = "All"
)

// ParseDeviceType maps user input such as "cpu" or "gpu" to a DeviceType.
func ParseDeviceType(name string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return DeviceTypeAll, nil
	case "gpu":
		return DeviceTypeGPU, nil
	case "cpu":
		return DeviceTypeCPU, nil
	case "accelerator", "acc":
		return DeviceTypeAccelerator, nil
	case "default":
		return DeviceTypeDefault, nil
	default:
		return "", fmt.Errorf("unknown device type: %q", name)
	}
}

// Matches reports whether a device of type dt passes the filter.
func (filter DeviceType) Matches(dt DeviceType) bool {
	return filter == DeviceTypeAll || filter == dt
}

// DeviceInfo captures metadata about an OpenCL device.
type DeviceInfo struct {
	Name            string
	Vendor          string
	Version         string
	Type            DeviceType
	MaxComputeUnits uint32
	Available       bool
}

// PlatformInfo captures metadata about an OpenCL platform and its devices.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// MemFlags selects buffer access modes.
type MemFlags uint64

// Values match the cl_mem_flags bits of the OpenCL headers.
const (
	MemReadWrite     MemFlags = 1 << 0
	MemWriteOnly     MemFlags = 1 << 1
	MemReadOnly      MemFlags = 1 << 2
	MemHostWriteOnly MemFlags = 1 << 7
	MemHostReadOnly  MemFlags = 1 << 8
	MemHostNoAccess  MemFlags = 1 << 9
)
