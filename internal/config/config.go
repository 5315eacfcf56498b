// Package config loads optional harness settings from an HCL file.
//
// Every attribute is optional; unset values keep the built-in defaults.
//
//	threads       = 20
//	iterations    = 200
//	build_options = "-cl-std=CL1.1"
//	source_file   = "kernels/add.cl"
//	device_type   = "all"
//
//	hello {
//	  source_path   = "hello.cl"
//	  build_options = "-cl-std=CL1.2"
//	  kernel_name   = "Hello"
//	  buffer_size   = 16
//	  device_type   = "cpu"
//	}
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/hello"
	"github.com/cwbudde/clstress/internal/walker"
)

// File is the decoded content of a config file.
type File struct {
	Threads      *int    `hcl:"threads,optional"`
	Iterations   *int    `hcl:"iterations,optional"`
	BuildOptions *string `hcl:"build_options,optional"`
	SourceFile   *string `hcl:"source_file,optional"`
	DeviceType   *string `hcl:"device_type,optional"`

	Hello *Hello `hcl:"hello,block"`

	// dir is the directory of the file; relative paths resolve against it.
	dir string
}

// Hello holds the smoke-test settings.
type Hello struct {
	SourcePath   *string `hcl:"source_path,optional"`
	BuildOptions *string `hcl:"build_options,optional"`
	KernelName   *string `hcl:"kernel_name,optional"`
	BufferSize   *int    `hcl:"buffer_size,optional"`
	DeviceType   *string `hcl:"device_type,optional"`
}

// Load parses and decodes the HCL file at path.
func Load(path string) (*File, error) {
	slog.Debug("Decoding config file", "path", path)
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %s", path, diags.Error())
	}

	var f File
	diags = gohcl.DecodeBody(hclFile.Body, nil, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %s", path, diags.Error())
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// ApplyWalk overlays the file's stress settings onto opts. A source_file is
// read and replaces the kernel source.
func (f *File) ApplyWalk(opts *walker.Options) error {
	if f.Threads != nil {
		opts.Stress.Threads = *f.Threads
	}
	if f.Iterations != nil {
		opts.Stress.Iterations = *f.Iterations
	}
	if f.BuildOptions != nil {
		opts.Stress.BuildOptions = *f.BuildOptions
	}
	if f.SourceFile != nil {
		src, err := os.ReadFile(f.resolve(*f.SourceFile))
		if err != nil {
			return fmt.Errorf("failed to read kernel source: %w", err)
		}
		opts.Stress.Source = string(src)
	}
	if f.DeviceType != nil {
		dt, err := cl.ParseDeviceType(*f.DeviceType)
		if err != nil {
			return fmt.Errorf("device_type: %w", err)
		}
		opts.DeviceType = dt
	}
	return nil
}

// ApplyHello overlays the file's hello block onto cfg.
func (f *File) ApplyHello(cfg *hello.Config) error {
	h := f.Hello
	if h == nil {
		return nil
	}
	if h.SourcePath != nil {
		cfg.SourcePath = f.resolve(*h.SourcePath)
	}
	if h.BuildOptions != nil {
		cfg.BuildOptions = *h.BuildOptions
	}
	if h.KernelName != nil {
		cfg.KernelName = *h.KernelName
	}
	if h.BufferSize != nil {
		if *h.BufferSize <= 0 {
			return fmt.Errorf("hello.buffer_size must be positive, got %d", *h.BufferSize)
		}
		cfg.BufferSize = *h.BufferSize
	}
	if h.DeviceType != nil {
		dt, err := cl.ParseDeviceType(*h.DeviceType)
		if err != nil {
			return fmt.Errorf("hello.device_type: %w", err)
		}
		cfg.DeviceType = dt
	}
	return nil
}

func (f *File) resolve(path string) string {
	if filepath.IsAbs(path) || f.dir == "" {
		return path
	}
	return filepath.Join(f.dir, path)
}
