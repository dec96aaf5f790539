// Package commands implements the oxy-gravity command line.
package commands

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	cfgFile string
	verbose bool
}

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	"device.backend":             "backend",
	"device.workers":             "workers",
	"simulation.particles":       "particles",
	"simulation.generator":       "generator",
	"simulation.seed":            "seed",
	"simulation.steps_per_frame": "steps-per-frame",
	"simulation.field_width":     "field-width",
	"simulation.field_height":    "field-height",
	"metrics.enabled":            "metrics",
	"metrics.addr":               "metrics-addr",
}

// NewRootCommand builds the oxy-gravity command tree.
//
// Returns:
//   - *cobra.Command: the root command with every subcommand attached
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oxy-gravity",
		Short: "An interactive N-body gravity simulation",
		Long: `oxy-gravity simulates thousands of mutually attracting particles on the GPU
and shows them as a glowing density field.

It runs on any WebGPU adapter and falls back to a multi-threaded CPU device
when no adapter is available.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is ./oxy-gravity.yaml or $HOME/.oxy-gravity/oxy-gravity.yaml)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	flags.String("backend", "auto", "device backend: auto, webgpu or software")
	flags.Int("workers", 0, "software device worker count (0 = one per CPU)")
	flags.Int("particles", 2048, "number of particles")
	flags.String("generator", "ring", "initial distribution: ring or arc")
	flags.Uint64("seed", 1, "generator seed")
	flags.Int("steps-per-frame", 10, "physics steps per rendered frame")
	flags.Int("field-width", 0, "density field width (0 = window width)")
	flags.Int("field-height", 0, "density field height (0 = window height)")
	flags.Bool("metrics", false, "serve Prometheus metrics")
	flags.String("metrics-addr", ":9090", "metrics listen address")

	cmd.AddCommand(newRunCommand(o), newBenchCommand(o), newDeviceCommand(o))
	return cmd
}

// Execute runs the root command. Fatal device errors raised while a command runs are reported and
// returned like any other error.
func Execute() error {
	var err error
	if fatal := gpu.Catch(func() { err = NewRootCommand().Execute() }); fatal != nil {
		err = fatal
	}
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

// loadConfig reads the config file and environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command, o *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile, func(v *viper.Viper) error {
		for key, name := range flagBindings {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
