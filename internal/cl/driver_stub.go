//go:build !gpu

package cl

// NewDriver returns ErrNotBuilt when OpenCL support is not compiled in.
func NewDriver() (Driver, error) {
	return nil, ErrNotBuilt
}
