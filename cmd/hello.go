package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/hello"
)

func newHelloCmd(root *rootOptions) *cobra.Command {
	var (
		sourcePath string
		platform   string
		deviceType string
	)

	cmd := &cobra.Command{
		Use:   "hello",
		Short: "Compile, run and read back a single kernel",
		Long: `Builds the "Hello" kernel from hello.cl for the first CPU device of the
last platform, runs it once, reads its output buffer back and prints "hello".
The output buffer content is not checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := root.loadConfig()
			if err != nil {
				return err
			}
			cfg := hello.DefaultConfig()
			if err := file.ApplyHello(&cfg); err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.SourcePath = sourcePath
			}
			if flags.Changed("platform") {
				cfg.SelectPlatform = hello.PlatformNamed(platform)
			}
			if flags.Changed("device-type") {
				dt, err := cl.ParseDeviceType(deviceType)
				if err != nil {
					return err
				}
				cfg.DeviceType = dt
			}

			drv, err := newDriver()
			if err != nil {
				return err
			}
			_, err = hello.Run(drv, cfg, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&sourcePath, "source", hello.DefaultSourcePath, "Kernel source file")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform name (default: last platform)")
	cmd.Flags().StringVar(&deviceType, "device-type", "cpu", "Device type to run on")
	return cmd
}
