package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "oxy-gravity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2048, cfg.Simulation.Particles)
	assert.Equal(t, float32(0.001), cfg.Simulation.TimeStep)
	assert.Equal(t, 10, cfg.Simulation.StepsPerFrame)
	assert.Equal(t, "auto", cfg.Device.Backend)
	assert.Equal(t, 6*time.Millisecond, cfg.Window.RedrawInterval)
	assert.True(t, cfg.Window.Resizable)

	w, h := cfg.FieldSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
simulation:
  particles: 512
  time_step: 0.002
  field_width: 320
device:
  backend: software
  workers: 3
window:
  redraw_interval: 10ms
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Simulation.Particles)
	assert.Equal(t, float32(0.002), cfg.Simulation.TimeStep)
	assert.Equal(t, "software", cfg.Device.Backend)
	assert.Equal(t, 3, cfg.Device.Workers)
	assert.Equal(t, 10*time.Millisecond, cfg.Window.RedrawInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, float32(0.9), cfg.Simulation.Decay)

	w, h := cfg.FieldSize()
	assert.Equal(t, 320, w)
	assert.Equal(t, 600, h)
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "simulation:\n  particles: 512\n")
	t.Setenv("OXY_SIMULATION_PARTICLES", "4096")
	t.Setenv("OXY_DEVICE_BACKEND", "webgpu")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Simulation.Particles)
	assert.Equal(t, "webgpu", cfg.Device.Backend)
}

func TestLoadOptionOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "simulation:\n  particles: 512\n")
	cfg, err := Load(path, func(v *viper.Viper) error {
		v.Set("simulation.particles", 64)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Simulation.Particles)

	_, err = Load(path, func(*viper.Viper) error { return errors.New("bad flag") })
	assert.ErrorContains(t, err, "bad flag")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"no particles":   func(c *Config) { c.Simulation.Particles = 0 },
		"generator":      func(c *Config) { c.Simulation.Generator = "spiral" },
		"time step":      func(c *Config) { c.Simulation.TimeStep = 0 },
		"decay":          func(c *Config) { c.Simulation.Decay = 1.5 },
		"steps":          func(c *Config) { c.Simulation.StepsPerFrame = 0 },
		"backend":        func(c *Config) { c.Device.Backend = "vulkan" },
		"window":         func(c *Config) { c.Window.Width = 0 },
		"redraw":         func(c *Config) { c.Window.RedrawInterval = 0 },
		"level":          func(c *Config) { c.Logging.Level = "trace" },
		"format":         func(c *Config) { c.Logging.Format = "xml" },
		"negative field": func(c *Config) { c.Simulation.FieldHeight = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// startWatch runs watchFile with a short settle delay and returns once the watch is registered.
func startWatch(t *testing.T, path string) (<-chan *Config, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 8)
	errs := make(chan error, 8)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 20*time.Millisecond, func() { close(ready) },
			func(c *Config) { changes <- c },
			func(err error) { errs <- err })
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch not registered")
	}
	return changes, errs
}

func nextChange(t *testing.T, changes <-chan *Config) *Config {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
		return nil
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "simulation:\n  steps_per_frame: 10\n")
	changes, _ := startWatch(t, path)

	writeConfig(t, dir, "simulation:\n  steps_per_frame: 25\n")
	assert.Equal(t, 25, nextChange(t, changes).Simulation.StepsPerFrame)
}

func TestWatchSkipsEmptyAndUnchangedSaves(t *testing.T) {
	dir := t.TempDir()
	original := "simulation:\n  steps_per_frame: 10\n"
	path := writeConfig(t, dir, original)
	changes, _ := startWatch(t, path)

	writeConfig(t, dir, "")
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, original)
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "simulation:\n  steps_per_frame: 30\n")

	assert.Equal(t, 30, nextChange(t, changes).Simulation.StepsPerFrame, "empty and unchanged saves are not delivered")
	select {
	case c := <-changes:
		t.Fatalf("unexpected reload with steps_per_frame %d", c.Simulation.StepsPerFrame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchReportsInvalidEdits(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "simulation:\n  steps_per_frame: 10\n")
	changes, errs := startWatch(t, path)

	writeConfig(t, dir, "simulation:\n  steps_per_frame: -1\n")
	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "validating config")
	case c := <-changes:
		t.Fatalf("invalid edit delivered with steps_per_frame %d", c.Simulation.StepsPerFrame)
	case <-time.After(5 * time.Second):
		t.Fatal("invalid edit not reported")
	}
}
