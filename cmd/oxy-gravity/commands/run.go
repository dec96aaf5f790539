package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Carmen-Shannon/oxy-gravity/engine"
	"github.com/Carmen-Shannon/oxy-gravity/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
	"github.com/Carmen-Shannon/oxy-gravity/internal/config"
	"github.com/Carmen-Shannon/oxy-gravity/internal/logging"
	"github.com/Carmen-Shannon/oxy-gravity/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open a window and run the simulation interactively",
		Long: `Open a window and run the simulation interactively.

Controls:
  mouse wheel     zoom in and out
  = / keypad +    zoom in 2x
  - / keypad -    zoom out 2x
  r               reset zoom
  left button     push particles away from the cursor
  right button    pull particles towards the cursor
  space           pause
  esc             quit

When --config names a file, edits to its time step, steps per frame, decay,
gain and log level are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd, o)
		},
	}
}

func runInteractive(cmd *cobra.Command, o *rootOptions) error {
	cfg, err := loadConfig(cmd, o)
	if err != nil {
		return err
	}
	logger, level, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithResizable(cfg.Window.Resizable),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	r, err := openRenderer(cfg, win, win.Width(), win.Height(), logger)
	if err != nil {
		return err
	}
	defer r.Release()

	rec := metrics.New()
	p, err := newPipeline(cfg, r.Device(), rec, logger)
	if err != nil {
		return err
	}
	defer p.Release()

	eng, err := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithPipeline(p),
		engine.WithTitle(cfg.Window.Title),
		engine.WithRedrawInterval(cfg.Window.RedrawInterval),
		engine.WithProfiling(cfg.Window.Profiling),
		engine.WithStatsCallback(func(s profiler.Stats) { rec.SetFPS(s.FPS) }),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	bg := startBackground(ctx, cfg, rec, logger)
	if o.cfgFile != "" {
		bg.Go(func(ctx context.Context) error {
			return config.Watch(ctx, o.cfgFile, func(c *config.Config) {
				level.SetLevel(logging.ParseLevel(c.Logging.Level))
				eng.ApplyTunables(tunablesFrom(c))
			}, func(err error) {
				logger.Warn("config reload failed", zap.Error(err))
			})
		})
	}
	bg.Go(func(ctx context.Context) error {
		<-ctx.Done()
		eng.Quit()
		return nil
	})

	runErr := eng.Run()
	if err := bg.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("simulation stopped", zap.Uint64("steps", p.StepCount()))
	return runErr
}

// tunablesFrom picks the live-adjustable parameters out of a reloaded config.
func tunablesFrom(c *config.Config) engine.Tunables {
	return engine.Tunables{
		TimeStep:      c.Simulation.TimeStep,
		StepsPerFrame: c.Simulation.StepsPerFrame,
		Decay:         c.Simulation.Decay,
		Gain:          c.Simulation.Gain,
	}
}
