package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/walker"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List OpenCL platforms and devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := newDriver()
			if err != nil {
				return err
			}
			platforms, err := cl.EnumeratePlatforms(drv)
			if err != nil {
				return err
			}
			if len(platforms) == 0 {
				return walker.ErrNoPlatforms
			}

			out := cmd.OutOrStdout()
			for i, p := range platforms {
				fmt.Fprintf(out, "Platform %d: %s\n", i, p.Name)
				fmt.Fprintf(out, "  Vendor:  %s\n", p.Vendor)
				fmt.Fprintf(out, "  Version: %s\n", p.Version)
				for j, d := range p.Devices {
					status := ""
					if !d.Available {
						status = ", unavailable"
					}
					fmt.Fprintf(out, "  Device %d: %s [%s, %d compute units%s]\n", j, d.Name, d.Type, d.MaxComputeUnits, status)
				}
			}
			return nil
		},
	}
}
