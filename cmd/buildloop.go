package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/walker"
)

func newBuildloopCmd(root *rootOptions) *cobra.Command {
	var (
		threads      int
		iterations   int
		buildOptions string
		sourcePath   string
		deviceType   string
	)

	cmd := &cobra.Command{
		Use:   "buildloop",
		Short: "Compile a kernel concurrently and repeatedly on every available device",
		Long: `For each available device of each platform (last platform first), creates a
context and spawns worker goroutines that each compile the kernel source
repeatedly against it. A worker stops at its first build failure and prints
the build log to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := root.loadConfig()
			if err != nil {
				return err
			}
			opts := walker.DefaultOptions()
			if err := file.ApplyWalk(&opts); err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("threads") {
				opts.Stress.Threads = threads
			}
			if flags.Changed("iterations") {
				opts.Stress.Iterations = iterations
			}
			if flags.Changed("build-options") {
				opts.Stress.BuildOptions = buildOptions
			}
			if flags.Changed("source") {
				src, err := os.ReadFile(sourcePath)
				if err != nil {
					return fmt.Errorf("failed to read kernel source: %w", err)
				}
				opts.Stress.Source = string(src)
			}
			if flags.Changed("device-type") {
				dt, err := cl.ParseDeviceType(deviceType)
				if err != nil {
					return err
				}
				opts.DeviceType = dt
			}
			if err := opts.Stress.Validate(); err != nil {
				return err
			}

			drv, err := newDriver()
			if err != nil {
				return err
			}

			slog.Debug("Starting build loop", "threads", opts.Stress.Threads, "iterations", opts.Stress.Iterations, "device_type", opts.DeviceType)
			summary, err := walker.Walk(drv, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.Info("Build loop complete", "run_id", summary.RunID, "devices_checked", summary.Checked)
			return nil
		},
	}

	cmd.Flags().IntVar(&threads, "threads", 20, "Concurrent workers per device")
	cmd.Flags().IntVar(&iterations, "iterations", 200, "Compilations per worker")
	cmd.Flags().StringVar(&buildOptions, "build-options", "", "Compiler options (default \"-cl-std=CL1.1 -DCL_CONFIG_CPU_VECTORIZER_MODE=1\")")
	cmd.Flags().StringVar(&sourcePath, "source", "", "Kernel source file to compile instead of the built-in add kernel")
	cmd.Flags().StringVar(&deviceType, "device-type", "all", "Device type to check (all, cpu, gpu, accelerator, default)")
	return cmd
}
