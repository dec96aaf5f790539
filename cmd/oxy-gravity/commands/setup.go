package commands

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gravity/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation"
	"github.com/Carmen-Shannon/oxy-gravity/engine/window"
	"github.com/Carmen-Shannon/oxy-gravity/internal/config"
	"github.com/Carmen-Shannon/oxy-gravity/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// openRenderer creates the renderer for the configured backend. In auto mode a failed WebGPU adapter
// request falls back to the software device.
func openRenderer(cfg *config.Config, win window.Window, width, height int, logger *zap.Logger) (renderer.Renderer, error) {
	opts := []renderer.RendererBuilderOption{
		renderer.WithSize(width, height),
		renderer.WithWorkers(cfg.Device.Workers),
		renderer.WithForceSoftwareRenderer(cfg.Device.ForceFallback),
		renderer.WithLinearFiltering(cfg.Device.LinearFilter),
		renderer.WithLogger(logger),
	}
	if !cfg.Device.VSync {
		opts = append(opts, renderer.WithPresentMode(renderer.PresentModeUncapped))
	}

	if cfg.Device.Backend == "auto" {
		r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win, opts...)
		if err == nil {
			return r, nil
		}
		logger.Warn("webgpu unavailable, using the software device", zap.Error(err))
		return renderer.NewRenderer(renderer.BackendTypeSoftware, win, opts...)
	}

	backend, err := renderer.ParseBackendType(cfg.Device.Backend)
	if err != nil {
		return nil, err
	}
	return renderer.NewRenderer(backend, win, opts...)
}

// newPipeline builds and initializes the simulation described by the simulation config section.
func newPipeline(cfg *config.Config, dev gpu.Device, rec simulation.Recorder, logger *zap.Logger) (*simulation.Pipeline, error) {
	s := cfg.Simulation
	gen, ok := simulation.ParseGenerator(s.Generator, s.Seed)
	if !ok {
		return nil, fmt.Errorf("unknown generator %q", s.Generator)
	}
	fw, fh := cfg.FieldSize()

	p := simulation.New(dev,
		simulation.WithParticleCount(s.Particles),
		simulation.WithGenerator(gen),
		simulation.WithTimeStep(s.TimeStep),
		simulation.WithGravitationalConstant(s.Gravity),
		simulation.WithSoftening(s.Softening),
		simulation.WithField(uint32(fw), uint32(fh)),
		simulation.WithScale(s.Scale),
		simulation.WithDecay(s.Decay),
		simulation.WithGain(s.Gain),
		simulation.WithStepsPerFrame(s.StepsPerFrame),
		simulation.WithDisturbRadius(s.DisturbRadius),
		simulation.WithRecorder(rec),
		simulation.WithLogger(logger),
	)
	if err := gpu.Catch(p.Init); err != nil {
		return nil, err
	}
	return p, nil
}

// background supervises the goroutines that run next to a command: the metrics server and any
// extra tasks. The first failure cancels the others.
type background struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func startBackground(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger *zap.Logger) *background {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	b := &background{group: g, ctx: gctx, cancel: cancel}
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr, rec)
		g.Go(func() error {
			return metrics.Serve(gctx, srv, logger)
		})
	}
	return b
}

// Go runs fn under the group.
func (b *background) Go(fn func(ctx context.Context) error) {
	b.group.Go(func() error {
		return fn(b.ctx)
	})
}

// Done is closed when the first task fails or the command finishes.
func (b *background) Done() <-chan struct{} {
	return b.ctx.Done()
}

// Stop cancels every task and waits for them to return.
func (b *background) Stop() error {
	b.cancel()
	return b.group.Wait()
}
