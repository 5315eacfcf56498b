// Package cltest provides an in-memory cl.Driver for tests.
//
// The fake compiler accepts any source with balanced braces and at least one
// kernel function, and rejects everything else with a build log. Every
// object it hands out is tracked so tests can assert that callers released
// what they acquired.
package cltest

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/clstress/internal/cl"
)

// CompileFunc decides whether source compiles with options. A non-nil error
// is returned from Program.Build; log becomes the program's build log.
type CompileFunc func(source, options string) (log string, err error)

// Driver is a fake cl.Driver.
type Driver struct {
	PlatformList []*Platform
	// Err is returned by Platforms when set.
	Err error

	seq atomic.Int64
}

// NewDriver returns a driver exposing platforms in the given order.
func NewDriver(platforms ...*Platform) *Driver {
	return &Driver{PlatformList: platforms}
}

// Platforms implements cl.Driver.
func (d *Driver) Platforms() ([]cl.Platform, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]cl.Platform, len(d.PlatformList))
	for i, p := range d.PlatformList {
		p.driver = d
		for _, dev := range p.DeviceList {
			dev.driver = d
		}
		out[i] = p
	}
	return out, nil
}

func (d *Driver) tick() int64 {
	if d == nil {
		return 0
	}
	return d.seq.Add(1)
}

// Platform is a fake cl.Platform.
type Platform struct {
	Name       string
	Vendor     string
	Version    string
	DeviceList []*Device
	// DevicesErr is returned by Devices when set.
	DevicesErr error

	driver *Driver
}

// NewPlatform returns a platform named name holding devices.
func NewPlatform(name string, devices ...*Device) *Platform {
	return &Platform{Name: name, Vendor: "cltest", Version: "OpenCL 1.2 cltest", DeviceList: devices}
}

// Info implements cl.Platform.
func (p *Platform) Info() cl.PlatformInfo {
	return cl.PlatformInfo{Name: p.Name, Vendor: p.Vendor, Version: p.Version}
}

// Devices implements cl.Platform.
func (p *Platform) Devices(filter cl.DeviceType) ([]cl.Device, error) {
	if p.DevicesErr != nil {
		return nil, p.DevicesErr
	}
	var out []cl.Device
	for _, d := range p.DeviceList {
		if filter.Matches(d.Type) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Device is a fake cl.Device.
type Device struct {
	Name        string
	Type        cl.DeviceType
	Unavailable bool

	// ContextErr is returned by NewContext when set.
	ContextErr error
	// ProgramErr is returned by Context.NewProgram when set.
	ProgramErr error
	// Compile overrides DefaultCompile.
	Compile CompileFunc
	// BuildLogErr is returned by Program.BuildLog when set.
	BuildLogErr error
	// FinishErr is returned by Queue.Finish when set.
	FinishErr error
	// KernelOutput is copied into the buffer bound as argument 0 when a
	// task is executed.
	KernelOutput []byte

	driver *Driver
	live   atomic.Int64

	mu       sync.Mutex
	contexts []*Context
}

// NewDevice returns an available device.
func NewDevice(name string, kind cl.DeviceType) *Device {
	return &Device{Name: name, Type: kind}
}

// Info implements cl.Device.
func (d *Device) Info() cl.DeviceInfo {
	return cl.DeviceInfo{
		Name:            d.Name,
		Vendor:          "cltest",
		Version:         "OpenCL 1.2",
		Type:            d.Type,
		MaxComputeUnits: 4,
		Available:       !d.Unavailable,
	}
}

// NewContext implements cl.Device.
func (d *Device) NewContext() (cl.Context, error) {
	if d.ContextErr != nil {
		return nil, d.ContextErr
	}
	if d.Unavailable {
		return nil, cl.NewError("clCreateContext", cl.StatusDeviceNotAvailable)
	}
	c := &Context{device: d, CreatedSeq: d.driver.tick()}
	d.live.Add(1)

	d.mu.Lock()
	d.contexts = append(d.contexts, c)
	d.mu.Unlock()
	return c, nil
}

// Contexts returns every context created for the device.
func (d *Device) Contexts() []*Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Context(nil), d.contexts...)
}

// Live returns the number of objects created under the device that have not
// been released yet.
func (d *Device) Live() int64 {
	return d.live.Load()
}

func (d *Device) compile(source, options string) (string, error) {
	if d.Compile != nil {
		return d.Compile(source, options)
	}
	return DefaultCompile(source, options)
}

var kernelDecl = regexp.MustCompile(`\b(?:__)?kernel\s+void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// DefaultCompile accepts source with balanced braces and at least one
// kernel function.
func DefaultCompile(source, _ string) (string, error) {
	depth := 0
	for i, line := range strings.Split(source, "\n") {
		for _, r := range line {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth < 0 {
				return fmt.Sprintf("<source>:%d: error: extraneous closing brace ('}')", i+1), buildFailure()
			}
		}
	}
	if depth != 0 {
		return "<source>: error: expected '}'", buildFailure()
	}
	if !kernelDecl.MatchString(source) {
		return "<source>: error: no kernel function found", buildFailure()
	}
	return "", nil
}

// RejectAll is a CompileFunc that fails every build with log.
func RejectAll(log string) CompileFunc {
	return func(string, string) (string, error) {
		return log, buildFailure()
	}
}

func buildFailure() error {
	return cl.NewError("clBuildProgram", cl.StatusBuildProgramFailure)
}

// Context is a fake cl.Context. It counts builds and records how many were
// in flight at any moment.
type Context struct {
	device *Device

	// CreatedSeq and ReleasedSeq order context lifetimes across the driver.
	CreatedSeq  int64
	ReleasedSeq int64

	builds    atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64

	mu                sync.Mutex
	queues            []*Queue
	released          bool
	buildsAtRelease   int64
	inFlightAtRelease int64
}

// NewProgram implements cl.Context.
func (c *Context) NewProgram(source string) (cl.Program, error) {
	if c.isReleased() {
		return nil, cl.NewError("clCreateProgramWithSource", cl.StatusInvalidContext)
	}
	if c.device.ProgramErr != nil {
		return nil, c.device.ProgramErr
	}
	c.device.live.Add(1)
	return &Program{ctx: c, source: source}, nil
}

// NewBuffer implements cl.Context.
func (c *Context) NewBuffer(flags cl.MemFlags, size int) (cl.Buffer, error) {
	if size <= 0 {
		return nil, cl.NewError("clCreateBuffer", cl.StatusInvalidBufferSize)
	}
	c.device.live.Add(1)
	return &Buffer{ctx: c, Flags: flags, data: make([]byte, size)}, nil
}

// NewQueue implements cl.Context.
func (c *Context) NewQueue() (cl.Queue, error) {
	c.device.live.Add(1)
	q := &Queue{ctx: c}
	c.mu.Lock()
	c.queues = append(c.queues, q)
	c.mu.Unlock()
	return q, nil
}

// Queues returns the queues created on the context, in creation order.
func (c *Context) Queues() []*Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Queue(nil), c.queues...)
}

// Release implements cl.Context.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.buildsAtRelease = c.builds.Load()
	c.inFlightAtRelease = c.active.Load()
	c.ReleasedSeq = c.device.driver.tick()
	c.device.live.Add(-1)
}

func (c *Context) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Released reports whether Release was called.
func (c *Context) Released() bool { return c.isReleased() }

// Builds returns the number of Build calls made against the context.
func (c *Context) Builds() int64 { return c.builds.Load() }

// MaxConcurrentBuilds returns the largest number of builds observed in
// flight at the same time.
func (c *Context) MaxConcurrentBuilds() int64 { return c.maxActive.Load() }

// BuildsAtRelease returns the total and in-flight build counts captured
// when the context was released.
func (c *Context) BuildsAtRelease() (total, inFlight int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildsAtRelease, c.inFlightAtRelease
}

func (c *Context) enterBuild() {
	n := c.active.Add(1)
	for {
		cur := c.maxActive.Load()
		if n <= cur || c.maxActive.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Program is a fake cl.Program.
type Program struct {
	ctx      *Context
	source   string
	built    bool
	log      string
	released bool
}

// Build implements cl.Program.
func (p *Program) Build(options string) error {
	p.ctx.builds.Add(1)
	p.ctx.enterBuild()
	defer p.ctx.active.Add(-1)

	log, err := p.ctx.device.compile(p.source, options)
	p.log = log
	p.built = err == nil
	return err
}

// BuildLog implements cl.Program.
func (p *Program) BuildLog() (string, error) {
	if err := p.ctx.device.BuildLogErr; err != nil {
		return "", err
	}
	return p.log, nil
}

// NewKernel implements cl.Program.
func (p *Program) NewKernel(name string) (cl.Kernel, error) {
	if !p.built {
		return nil, cl.NewError("clCreateKernel", cl.StatusInvalidProgramExecutable)
	}
	for _, m := range kernelDecl.FindAllStringSubmatch(p.source, -1) {
		if m[1] == name {
			p.ctx.device.live.Add(1)
			return &Kernel{ctx: p.ctx, name: name, args: map[int]*Buffer{}}, nil
		}
	}
	return nil, cl.NewError("clCreateKernel", cl.StatusInvalidKernelName)
}

// Release implements cl.Program.
func (p *Program) Release() {
	if !p.released {
		p.released = true
		p.ctx.device.live.Add(-1)
	}
}

// Kernel is a fake cl.Kernel.
type Kernel struct {
	ctx      *Context
	name     string
	args     map[int]*Buffer
	released bool
}

// Name implements cl.Kernel.
func (k *Kernel) Name() string { return k.name }

// SetArg implements cl.Kernel.
func (k *Kernel) SetArg(index int, buf cl.Buffer) error {
	b, ok := buf.(*Buffer)
	if !ok || b.released {
		return cl.NewError("clSetKernelArg", cl.StatusInvalidMemObject)
	}
	if index < 0 {
		return cl.NewError("clSetKernelArg", cl.StatusInvalidArgIndex)
	}
	k.args[index] = b
	return nil
}

// Release implements cl.Kernel.
func (k *Kernel) Release() {
	if !k.released {
		k.released = true
		k.ctx.device.live.Add(-1)
	}
}

// Buffer is a fake cl.Buffer backed by host memory.
type Buffer struct {
	ctx      *Context
	Flags    cl.MemFlags
	data     []byte
	released bool
}

// Size implements cl.Buffer.
func (b *Buffer) Size() int { return len(b.data) }

// Release implements cl.Buffer.
func (b *Buffer) Release() {
	if !b.released {
		b.released = true
		b.ctx.device.live.Add(-1)
	}
}

// Queue is a fake cl.Queue. Commands execute synchronously.
type Queue struct {
	ctx      *Context
	Tasks    []string
	Reads    int
	Finishes int
	released bool
}

// EnqueueTask implements cl.Queue.
func (q *Queue) EnqueueTask(k cl.Kernel) error {
	kernel, ok := k.(*Kernel)
	if !ok || kernel.released {
		return cl.NewError("clEnqueueTask", cl.StatusInvalidKernel)
	}
	out, ok := kernel.args[0]
	if !ok {
		return cl.NewError("clEnqueueTask", -52) // CL_INVALID_KERNEL_ARGS
	}
	copy(out.data, q.ctx.device.KernelOutput)
	q.Tasks = append(q.Tasks, kernel.name)
	return nil
}

// ReadBuffer implements cl.Queue.
func (q *Queue) ReadBuffer(buf cl.Buffer, dst []byte) error {
	b, ok := buf.(*Buffer)
	if !ok || b.released {
		return cl.NewError("clEnqueueReadBuffer", cl.StatusInvalidMemObject)
	}
	if len(dst) > len(b.data) {
		return cl.NewError("clEnqueueReadBuffer", cl.StatusInvalidValue)
	}
	copy(dst, b.data)
	q.Reads++
	return nil
}

// Finish implements cl.Queue.
func (q *Queue) Finish() error {
	if err := q.ctx.device.FinishErr; err != nil {
		return err
	}
	q.Finishes++
	return nil
}

// Release implements cl.Queue.
func (q *Queue) Release() {
	if !q.released {
		q.released = true
		q.ctx.device.live.Add(-1)
	}
}
