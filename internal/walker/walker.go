// Package walker runs the compile stress test against every available
// device of every installed platform, one device at a time.
package walker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/stress"
)

// ErrNoPlatforms is returned when the driver reports no platforms.
var ErrNoPlatforms = errors.New("no platforms found")

// Options configures a walk.
type Options struct {
	Stress stress.Config
	// DeviceType restricts which devices are enumerated. Empty means all.
	DeviceType cl.DeviceType
}

// DefaultOptions walks every device type with the default stress config.
func DefaultOptions() Options {
	return Options{Stress: stress.DefaultConfig(), DeviceType: cl.DeviceTypeAll}
}

// Summary is the outcome of a walk.
type Summary struct {
	RunID   string
	Checked int
	Reports []*stress.Report
}

// Walk enumerates platforms in reverse discovery order and, for each
// available device, creates a context and runs the stress driver on it.
// Devices are processed strictly one after another.
//
// The first driver error aborts the walk; the returned Summary holds what
// was checked up to that point.
func Walk(drv cl.Driver, opts Options, stdout, stderr io.Writer) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	logger := slog.With("run_id", summary.RunID)

	platforms, err := drv.Platforms()
	if err != nil {
		return summary, err
	}
	if len(platforms) == 0 {
		return summary, ErrNoPlatforms
	}

	filter := opts.DeviceType
	if filter == "" {
		filter = cl.DeviceTypeAll
	}

	for i := len(platforms) - 1; i >= 0; i-- {
		p := platforms[i]
		fmt.Fprintf(stdout, "Platform: %s\n", p.Info().Name)

		devices, err := p.Devices(filter)
		if err != nil {
			return summary, err
		}

		for _, d := range devices {
			info := d.Info()
			if !info.Available {
				logger.Debug("Skipping unavailable device", "platform", p.Info().Name, "device", info.Name)
				continue
			}

			fmt.Fprintf(stdout, "    Checking device: %s\n", info.Name)
			report, err := checkDevice(d, opts.Stress, stdout, stderr)
			if report != nil {
				summary.Reports = append(summary.Reports, report)
			}
			if err != nil {
				return summary, err
			}
			summary.Checked++
			logger.Info("Device checked", "device", info.Name, "failed_workers", len(report.Failures()))
		}
	}

	fmt.Fprintf(stdout, "\nDevices checked: %d\n", summary.Checked)
	return summary, nil
}

func checkDevice(d cl.Device, cfg stress.Config, stdout, stderr io.Writer) (*stress.Report, error) {
	ctx, err := d.NewContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Release()

	return stress.Run(d, ctx, cfg, stdout, stderr)
}
