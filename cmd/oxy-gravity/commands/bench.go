package commands

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation"
	"github.com/Carmen-Shannon/oxy-gravity/internal/logging"
	"github.com/Carmen-Shannon/oxy-gravity/internal/metrics"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type benchOptions struct {
	steps          int
	snapshot       string
	snapshotWidth  int
	snapshotHeight int
}

// benchResult summarizes one headless run.
type benchResult struct {
	Backend   string
	Device    string
	Particles int
	Steps     int
	Elapsed   time.Duration
}

// StepsPerSecond is the physics step rate of the run.
func (b benchResult) StepsPerSecond() float64 {
	if b.Elapsed <= 0 {
		return 0
	}
	return float64(b.Steps) / b.Elapsed.Seconds()
}

// InteractionsPerSecond counts pairwise force evaluations, N*N per step.
func (b benchResult) InteractionsPerSecond() float64 {
	n := float64(b.Particles)
	return b.StepsPerSecond() * n * n
}

func newBenchCommand(o *rootOptions) *cobra.Command {
	bo := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the simulation headless and report the step rate",
		Long: `Run a fixed number of physics steps without a window and report how fast they ran.

With --snapshot the density field after the last step is written as a PNG,
scaled to --snapshot-width x --snapshot-height when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, o, bo)
		},
	}
	cmd.Flags().IntVar(&bo.steps, "steps", 100, "physics steps to run")
	cmd.Flags().StringVar(&bo.snapshot, "snapshot", "", "write the final density field to this PNG file")
	cmd.Flags().IntVar(&bo.snapshotWidth, "snapshot-width", 0, "snapshot width (0 = field width)")
	cmd.Flags().IntVar(&bo.snapshotHeight, "snapshot-height", 0, "snapshot height (0 = field height)")
	return cmd
}

func runBench(cmd *cobra.Command, o *rootOptions, bo *benchOptions) error {
	if bo.steps < 1 {
		return fmt.Errorf("--steps must be at least 1, got %d", bo.steps)
	}
	cfg, err := loadConfig(cmd, o)
	if err != nil {
		return err
	}
	logger, _, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	fw, fh := cfg.FieldSize()
	r, err := openRenderer(cfg, nil, fw, fh, logger)
	if err != nil {
		return err
	}
	defer r.Release()

	rec := metrics.New()
	bg := startBackground(cmd.Context(), cfg, rec, logger)

	p, err := newPipeline(cfg, r.Device(), rec, logger)
	if err != nil {
		_ = bg.Stop()
		return err
	}
	defer p.Release()

	start := time.Now()
	for range bo.steps {
		p.Step()
	}
	// Step blocks on every dispatch, so the clock stops after the last step has completed.
	elapsed := time.Since(start)
	p.RenderPrep()

	res := benchResult{
		Backend:   r.BackendType().String(),
		Device:    r.Device().Name(),
		Particles: p.Count(),
		Steps:     bo.steps,
		Elapsed:   elapsed,
	}
	logger.Info("bench finished",
		zap.String("backend", res.Backend),
		zap.Int("particles", res.Particles),
		zap.Int("steps", res.Steps),
		zap.Duration("elapsed", res.Elapsed))
	printBench(cmd.OutOrStdout(), res)

	if bo.snapshot != "" {
		if err := writeSnapshot(r, p, bo); err != nil {
			_ = bg.Stop()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot written to %s\n", bo.snapshot)
	}
	return bg.Stop()
}

func printBench(w io.Writer, res benchResult) {
	title := color.New(color.FgCyan, color.Bold)
	value := color.New(color.FgGreen)

	title.Fprintln(w, "oxy-gravity bench")
	fmt.Fprintf(w, "  backend:      %s (%s)\n", res.Backend, res.Device)
	fmt.Fprintf(w, "  particles:    %d\n", res.Particles)
	fmt.Fprintf(w, "  steps:        %d in %s\n", res.Steps, res.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "  steps/s:      %s\n", value.Sprintf("%.1f", res.StepsPerSecond()))
	fmt.Fprintf(w, "  interactions: %s\n", value.Sprintf("%.3g/s", res.InteractionsPerSecond()))
}

func writeSnapshot(r renderer.Renderer, p *simulation.Pipeline, bo *benchOptions) error {
	fw, fh := p.FieldSize()
	w, h := bo.snapshotWidth, bo.snapshotHeight
	if w <= 0 {
		w = int(fw)
	}
	if h <= 0 {
		h = int(fh)
	}
	img := r.Snapshot(p.ColorTexture(), w, h)

	f, err := os.Create(bo.snapshot)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return f.Close()
}
