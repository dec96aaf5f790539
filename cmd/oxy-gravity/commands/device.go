package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/software_backend"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-gravity/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// probe opens one backend and reports its device.
type probe struct {
	name string
	open func(cfg *config.Config) (gpu.Device, error)
}

var probes = []probe{
	{name: "webgpu", open: func(cfg *config.Config) (gpu.Device, error) {
		return wgpu_backend.NewDevice(
			wgpu_backend.WithForceFallbackAdapter(cfg.Device.ForceFallback),
			wgpu_backend.WithLogger(zap.NewNop()),
		)
	}},
	{name: "software", open: func(cfg *config.Config) (gpu.Device, error) {
		opts := []software_backend.DeviceBuilderOption{software_backend.WithLogger(zap.NewNop())}
		if cfg.Device.Workers > 0 {
			opts = append(opts, software_backend.WithWorkers(cfg.Device.Workers))
		}
		return software_backend.NewDevice(opts...), nil
	}},
}

func newDeviceCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Show which compute devices are available",
		Long: `Try each device backend and show the adapter it selects.

With --backend auto every backend is probed; otherwise only the named one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), cfg)
		},
	}
}

func printDevices(w io.Writer, cfg *config.Config) error {
	header := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	fail := color.New(color.FgRed)

	header.Fprintln(w, "oxy-gravity devices")
	found := 0
	for _, pr := range probes {
		if cfg.Device.Backend != "auto" && cfg.Device.Backend != pr.name {
			continue
		}
		dev, err := openProbe(pr, cfg)
		if err != nil {
			fail.Fprintf(w, "  x %-9s %v\n", pr.name, err)
			continue
		}
		found++
		ok.Fprintf(w, "  + %-9s %s\n", pr.name, dev.Name())
		dev.Release()
	}

	fmt.Fprintln(w)
	header.Fprintln(w, "system")
	fmt.Fprintf(w, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  cpus:     %d\n", runtime.NumCPU())

	if found == 0 {
		return fmt.Errorf("no usable device for backend %q", cfg.Device.Backend)
	}
	return nil
}

// openProbe opens a backend, turning a fatal device panic into an error.
func openProbe(pr probe, cfg *config.Config) (dev gpu.Device, err error) {
	if cerr := gpu.Catch(func() { dev, err = pr.open(cfg) }); cerr != nil {
		return nil, cerr
	}
	return dev, err
}
