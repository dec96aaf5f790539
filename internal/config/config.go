// Package config loads oxy-gravity settings from a YAML file, OXY_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. OXY_SIMULATION_PARTICLES.
const EnvPrefix = "OXY"

// Config represents the application configuration
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Device     DeviceConfig     `mapstructure:"device"`
	Window     WindowConfig     `mapstructure:"window"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// SimulationConfig holds the initial simulation parameters. A Gravity of 0 selects 1/Particles, and a
// FieldWidth or FieldHeight of 0 follows the window size.
type SimulationConfig struct {
	Particles     int     `mapstructure:"particles"`
	Generator     string  `mapstructure:"generator"`
	Seed          uint64  `mapstructure:"seed"`
	TimeStep      float32 `mapstructure:"time_step"`
	Softening     float32 `mapstructure:"softening"`
	Gravity       float32 `mapstructure:"gravity"`
	Scale         float32 `mapstructure:"scale"`
	Decay         float32 `mapstructure:"decay"`
	Gain          float32 `mapstructure:"gain"`
	StepsPerFrame int     `mapstructure:"steps_per_frame"`
	DisturbRadius float32 `mapstructure:"disturb_radius"`
	FieldWidth    int     `mapstructure:"field_width"`
	FieldHeight   int     `mapstructure:"field_height"`
}

type DeviceConfig struct {
	// Backend is "auto", "webgpu" or "software". Auto tries WebGPU and falls back to software.
	Backend       string `mapstructure:"backend"`
	ForceFallback bool   `mapstructure:"force_fallback"`
	Workers       int    `mapstructure:"workers"`
	VSync         bool   `mapstructure:"vsync"`
	LinearFilter  bool   `mapstructure:"linear_filter"`
}

type WindowConfig struct {
	Title          string        `mapstructure:"title"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	RedrawInterval time.Duration `mapstructure:"redraw_interval"`
	Resizable      bool          `mapstructure:"resizable"`
	Profiling      bool          `mapstructure:"profiling"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoadOption customizes the viper instance used by Load.
type LoadOption func(v *viper.Viper) error

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Particles:     2048,
			Generator:     "ring",
			Seed:          1,
			TimeStep:      0.001,
			Softening:     0.01,
			Gravity:       0,
			Scale:         200,
			Decay:         0.9,
			Gain:          0.05,
			StepsPerFrame: 10,
			DisturbRadius: 50,
		},
		Device: DeviceConfig{
			Backend: "auto",
			VSync:   true,
		},
		Window: WindowConfig{
			Title:          "oxy-gravity",
			Width:          800,
			Height:         600,
			RedrawInterval: 6 * time.Millisecond,
			Resizable:      true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Load loads configuration from file, environment, and defaults. A missing file is only an error when
// cfgFile names it explicitly.
//
// Parameters:
//   - cfgFile: the config file path, or "" to search ./oxy-gravity.yaml and $HOME/.oxy-gravity/oxy-gravity.yaml
//   - opts: hooks run on the viper instance before reading, e.g. to bind command line flags
//
// Returns:
//   - *Config: the validated configuration
//   - error: an error if the file cannot be read or the values are invalid
func Load(cfgFile string, opts ...LoadOption) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".oxy-gravity"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("oxy-gravity")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("configuring loader: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Particles < 1 {
		return errors.New("simulation.particles must be at least 1")
	}
	if !slices.Contains([]string{"ring", "arc"}, s.Generator) {
		return fmt.Errorf("simulation.generator must be one of: %v", []string{"ring", "arc"})
	}
	if s.TimeStep <= 0 {
		return errors.New("simulation.time_step must be positive")
	}
	if s.Softening < 0 || s.Gravity < 0 {
		return errors.New("simulation.softening and simulation.gravity must not be negative")
	}
	if s.Scale <= 0 {
		return errors.New("simulation.scale must be positive")
	}
	if s.Decay < 0 || s.Decay > 1 {
		return errors.New("simulation.decay must be between 0 and 1")
	}
	if s.StepsPerFrame < 1 {
		return errors.New("simulation.steps_per_frame must be at least 1")
	}
	if s.FieldWidth < 0 || s.FieldHeight < 0 {
		return errors.New("simulation.field_width and simulation.field_height must not be negative")
	}

	validBackends := []string{"auto", "webgpu", "software"}
	if !slices.Contains(validBackends, c.Device.Backend) {
		return fmt.Errorf("device.backend must be one of: %v", validBackends)
	}
	if c.Window.Width < 1 || c.Window.Height < 1 {
		return errors.New("window.width and window.height must be positive")
	}
	if c.Window.RedrawInterval <= 0 {
		return errors.New("window.redraw_interval must be positive")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	validFormats := []string{"json", "console"}
	if !slices.Contains(validFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}
	return nil
}

// FieldSize returns the density field size, following the window when unset.
func (c *Config) FieldSize() (int, int) {
	w, h := c.Simulation.FieldWidth, c.Simulation.FieldHeight
	if w == 0 {
		w = c.Window.Width
	}
	if h == 0 {
		h = c.Window.Height
	}
	return w, h
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("simulation.particles", cfg.Simulation.Particles)
	v.SetDefault("simulation.generator", cfg.Simulation.Generator)
	v.SetDefault("simulation.seed", cfg.Simulation.Seed)
	v.SetDefault("simulation.time_step", cfg.Simulation.TimeStep)
	v.SetDefault("simulation.softening", cfg.Simulation.Softening)
	v.SetDefault("simulation.gravity", cfg.Simulation.Gravity)
	v.SetDefault("simulation.scale", cfg.Simulation.Scale)
	v.SetDefault("simulation.decay", cfg.Simulation.Decay)
	v.SetDefault("simulation.gain", cfg.Simulation.Gain)
	v.SetDefault("simulation.steps_per_frame", cfg.Simulation.StepsPerFrame)
	v.SetDefault("simulation.disturb_radius", cfg.Simulation.DisturbRadius)
	v.SetDefault("simulation.field_width", cfg.Simulation.FieldWidth)
	v.SetDefault("simulation.field_height", cfg.Simulation.FieldHeight)

	v.SetDefault("device.backend", cfg.Device.Backend)
	v.SetDefault("device.force_fallback", cfg.Device.ForceFallback)
	v.SetDefault("device.workers", cfg.Device.Workers)
	v.SetDefault("device.vsync", cfg.Device.VSync)
	v.SetDefault("device.linear_filter", cfg.Device.LinearFilter)

	v.SetDefault("window.title", cfg.Window.Title)
	v.SetDefault("window.width", cfg.Window.Width)
	v.SetDefault("window.height", cfg.Window.Height)
	v.SetDefault("window.redraw_interval", cfg.Window.RedrawInterval)
	v.SetDefault("window.resizable", cfg.Window.Resizable)
	v.SetDefault("window.profiling", cfg.Window.Profiling)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}
