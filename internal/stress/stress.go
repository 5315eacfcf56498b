// Package stress repeatedly compiles one kernel source from many goroutines
// against a single shared context, to expose races in a driver's compiler.
package stress

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/clstress/internal/cl"
)

// AddKernelSource is the kernel compiled by default.
const AddKernelSource = `kernel void add(
       __global const float *a,
       __global const float *b,
       __global float *c)
{
    size_t i = get_global_id(0);
    c[i] = a[i] + b[i];
}
`

const (
	DefaultThreads      = 20
	DefaultIterations   = 200
	DefaultBuildOptions = "-cl-std=CL1.1 -DCL_CONFIG_CPU_VECTORIZER_MODE=1"
)

// ErrInvalidConfig is returned by Run for a config it cannot execute.
var ErrInvalidConfig = errors.New("invalid stress config")

// Config controls one stress pass over a device.
type Config struct {
	Threads      int
	Iterations   int
	Source       string
	BuildOptions string
}

// DefaultConfig returns 20 workers of 200 iterations compiling AddKernelSource.
func DefaultConfig() Config {
	return Config{
		Threads:      DefaultThreads,
		Iterations:   DefaultIterations,
		Source:       AddKernelSource,
		BuildOptions: DefaultBuildOptions,
	}
}

// Validate reports whether c can be run.
func (c Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("%w: threads must be at least 1, got %d", ErrInvalidConfig, c.Threads)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.Source == "" {
		return fmt.Errorf("%w: empty kernel source", ErrInvalidConfig)
	}
	return nil
}

// WorkerResult is the outcome of one worker.
type WorkerResult struct {
	Worker int
	// Completed counts iterations whose build succeeded.
	Completed int
	// BuildLog holds the compiler diagnostics of the failed build, if any.
	BuildLog string
	// Err is the build error that stopped the worker, or a driver error
	// that prevented it from creating a program.
	Err error
}

// Failed reports whether the worker stopped before finishing its iterations.
func (r WorkerResult) Failed() bool { return r.Err != nil }

// Report summarizes a stress pass over one device.
type Report struct {
	Device  string
	Config  Config
	Workers []WorkerResult
}

// Failures returns the workers that stopped on a build failure.
func (r *Report) Failures() []WorkerResult {
	var out []WorkerResult
	for _, w := range r.Workers {
		if cl.IsBuildFailure(w.Err) {
			out = append(out, w)
		}
	}
	return out
}

// OK reports whether every worker completed all its iterations.
func (r *Report) OK() bool {
	for _, w := range r.Workers {
		if w.Failed() {
			return false
		}
	}
	return true
}

// Run spawns cfg.Threads workers that each compile cfg.Source
// cfg.Iterations times against ctx, and blocks until all have returned.
//
// One line per spawned worker is written to stdout. A build failure writes
// the build log to stderr and stops only the worker that hit it. A driver
// error creating a program object also stops only that worker; it is
// returned once every worker has finished.
func Run(device cl.Device, ctx cl.Context, cfg Config, stdout, stderr io.Writer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := device.Info().Name
	logger := slog.With("device", name)
	diag := &syncWriter{w: stderr}

	results := newCollector(cfg.Threads)

	var g errgroup.Group
	for i := 0; i < cfg.Threads; i++ {
		worker := i
		g.Go(func() error {
			res := buildLoop(ctx, cfg, worker, diag)
			results.set(res)
			logger.Debug("Worker finished", "worker", worker, "completed", res.Completed, "failed", res.Failed())
			if res.Err != nil && !cl.IsBuildFailure(res.Err) {
				return res.Err
			}
			return nil
		})
		fmt.Fprintf(stdout, "        Thread %d spawned. Running %d iterations.\n", worker, cfg.Iterations)
	}

	err := g.Wait()

	report := &Report{Device: name, Config: cfg, Workers: results.all()}
	if failures := len(report.Failures()); failures > 0 {
		logger.Info("Compilation failures", "workers", cfg.Threads, "failed", failures)
	}
	return report, err
}

func buildLoop(ctx cl.Context, cfg Config, worker int, diag io.Writer) WorkerResult {
	res := WorkerResult{Worker: worker}
	for i := 0; i < cfg.Iterations; i++ {
		program, err := ctx.NewProgram(cfg.Source)
		if err != nil {
			res.Err = err
			return res
		}

		if err := program.Build(cfg.BuildOptions); err != nil {
			log := cl.ReadBuildLog(program)
			program.Release()

			fmt.Fprintf(diag, "OpenCL compilation error\n%s\n", log)
			res.BuildLog = log
			res.Err = err
			return res
		}

		program.Release()
		res.Completed++
	}
	return res
}

type collector struct {
	mu      sync.Mutex
	results []WorkerResult
}

func newCollector(n int) *collector {
	return &collector{results: make([]WorkerResult, n)}
}

func (c *collector) set(r WorkerResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.Worker] = r
}

func (c *collector) all() []WorkerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WorkerResult(nil), c.results...)
}

// syncWriter serializes writes so each diagnostic stays contiguous.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
