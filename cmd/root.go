package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clstress/internal/config"
)

type rootOptions struct {
	logLevel   string
	logFormat  string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "clstress",
		Short: "Stress-test an OpenCL driver's kernel compiler",
		Long: `clstress compiles the same kernel from many goroutines at once against
a shared context on every available OpenCL device, and runs a single
compile/execute/readback smoke test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			switch opts.logLevel {
			case "debug":
				level = slog.LevelDebug
			case "info":
				level = slog.LevelInfo
			case "warn":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			default:
				return fmt.Errorf("unknown log level: %s", opts.logLevel)
			}

			// stdout carries the progress lines, so logs go to stderr.
			handlerOpts := &slog.HandlerOptions{Level: level}
			var handler slog.Handler
			switch opts.logFormat {
			case "json":
				handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
			case "text":
				handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
			default:
				return fmt.Errorf("unknown log format: %s", opts.logFormat)
			}
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "Log format (json, text)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to an HCL config file")

	cmd.AddCommand(
		newBuildloopCmd(opts),
		newHelloCmd(opts),
		newDevicesCmd(),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig returns an empty config when no file was given.
func (o *rootOptions) loadConfig() (*config.File, error) {
	if o.configPath == "" {
		return &config.File{}, nil
	}
	return config.Load(o.configPath)
}
