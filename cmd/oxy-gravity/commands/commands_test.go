package commands

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gravity/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBenchSoftware(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "field.png")
	out, err := execute(t, "bench",
		"--backend", "software",
		"--workers", "2",
		"--particles", "64",
		"--field-width", "32",
		"--field-height", "16",
		"--steps", "3",
		"--snapshot", snap,
		"--snapshot-width", "64",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "software")
	assert.Contains(t, out, "particles:    64")
	assert.Contains(t, out, "steps:        3")
	assert.Contains(t, out, "snapshot written")

	f, err := os.Open(snap)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestBenchRejectsBadInput(t *testing.T) {
	_, err := execute(t, "bench", "--backend", "software", "--steps", "0")
	assert.ErrorContains(t, err, "--steps")

	_, err = execute(t, "bench", "--backend", "quantum", "--steps", "1")
	assert.ErrorContains(t, err, "device.backend")

	_, err = execute(t, "bench", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDeviceSoftware(t *testing.T) {
	out, err := execute(t, "device", "--backend", "software")
	require.NoError(t, err)
	assert.Contains(t, out, "+ software")
	assert.NotContains(t, out, "webgpu")
	assert.Contains(t, out, "cpus:")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oxy-gravity.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  particles: 512\n  decay: 0.5\n  steps_per_frame: 4\n"), 0o644))

	var cfg *config.Config
	o := &rootOptions{}
	root := newRootCommand(o)
	root.AddCommand(&cobra.Command{
		Use: "inspect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = loadConfig(cmd, o)
			return err
		},
	})
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"inspect", "--config", path, "--particles", "32", "-v"})
	require.NoError(t, root.Execute())

	require.NotNil(t, cfg)
	assert.Equal(t, 32, cfg.Simulation.Particles, "flag wins over file")
	assert.Equal(t, float32(0.5), cfg.Simulation.Decay, "file wins over default")
	assert.Equal(t, 4, cfg.Simulation.StepsPerFrame, "an unset flag does not override the file")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestTunablesFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Simulation.TimeStep = 0.004
	cfg.Simulation.StepsPerFrame = 7
	tn := tunablesFrom(cfg)
	assert.Equal(t, float32(0.004), tn.TimeStep)
	assert.Equal(t, 7, tn.StepsPerFrame)
	assert.Equal(t, cfg.Simulation.Decay, tn.Decay)
	assert.Equal(t, cfg.Simulation.Gain, tn.Gain)
}

func TestBenchResultRates(t *testing.T) {
	res := benchResult{Particles: 10, Steps: 50, Elapsed: 500 * time.Millisecond}
	assert.InDelta(t, 100, res.StepsPerSecond(), 1e-9)
	assert.InDelta(t, 10000, res.InteractionsPerSecond(), 1e-6)
	assert.Zero(t, benchResult{}.StepsPerSecond())
}
