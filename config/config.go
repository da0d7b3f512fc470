// Package config reads pcgen configuration files.
package config

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/pcgen/generator"
	"go.viam.com/pcgen/logging"
)

// Environment variables overriding file settings.
const (
	// EnvRenderingTimeout is the asset load timeout in seconds.
	EnvRenderingTimeout = "RENDERING_TIMEOUT"
	// EnvOldMDLSupport enables the legacy material schema while capturing.
	EnvOldMDLSupport = "OMNI_RENDER_OLD_MDL_SUPPORT"
)

// Config is the top level pcgen configuration.
type Config struct {
	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`

	Generator GeneratorConfig `json:"generator"`
	Log       LogConfig       `json:"log"`
}

// LogConfig controls the level and, optionally, a rotating log file.
type LogConfig struct {
	Level logging.Level `json:"level"`
	logging.FileAppenderConfig
}

// Duration is a time.Duration read from either a duration string like "1.5s" or a number
// of seconds.
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return errors.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// GeneratorConfig is the file form of generator.Config. Omitted fields keep their defaults.
type GeneratorConfig struct {
	Height int `json:"height"`
	Width  int `json:"width"`

	Azimuths   []float64 `json:"azimuths"`
	Elevations []float64 `json:"elevations"`

	FOVMultiplier      float64 `json:"fov_multiplier"`
	DistanceMultiplier float64 `json:"distance_multiplier"`
	DepthScale         float64 `json:"depth_scale"`
	NormalsToWorld     bool    `json:"normals_to_world"`

	ErrorLimit         int      `json:"error_limit"`
	RenderPasses       int      `json:"render_passes"`
	SensorWarmupFrames int      `json:"sensor_warmup_frames"`
	SensorTimeout      Duration `json:"sensor_timeout"`

	LoadWaitMode       generator.LoadWaitMode `json:"load_wait_mode"`
	RequiredLoadEvents int                    `json:"required_load_events"`
	LoadTimeout        Duration               `json:"load_timeout"`
	PollInterval       Duration               `json:"poll_interval"`
	MaterialSettle     Duration               `json:"material_settle"`

	SettleUpdates   int      `json:"settle_updates"`
	SettleSleep     Duration `json:"settle_sleep"`
	RecreateUpdates int      `json:"recreate_updates"`

	DomeLightIntensity float64 `json:"dome_light_intensity"`
	DomeLightTexture   string  `json:"dome_light_texture,omitempty"`

	OldMDLSupport bool `json:"old_mdl_support"`
}

// NewGeneratorConfig returns the file form of cfg.
func NewGeneratorConfig(cfg generator.Config) GeneratorConfig {
	return GeneratorConfig{
		Height:             cfg.Height,
		Width:              cfg.Width,
		Azimuths:           cfg.Azimuths,
		Elevations:         cfg.Elevations,
		FOVMultiplier:      cfg.FOVMultiplier,
		DistanceMultiplier: cfg.DistanceMultiplier,
		DepthScale:         cfg.DepthScale,
		NormalsToWorld:     cfg.NormalsToWorld,
		ErrorLimit:         cfg.ErrorLimit,
		RenderPasses:       cfg.RenderPasses,
		SensorWarmupFrames: cfg.SensorWarmupFrames,
		SensorTimeout:      Duration(cfg.SensorTimeout),
		LoadWaitMode:       cfg.LoadWaitMode,
		RequiredLoadEvents: cfg.RequiredLoadEvents,
		LoadTimeout:        Duration(cfg.LoadTimeout),
		PollInterval:       Duration(cfg.PollInterval),
		MaterialSettle:     Duration(cfg.MaterialSettle),
		SettleUpdates:      cfg.SettleUpdates,
		SettleSleep:        Duration(cfg.SettleSleep),
		RecreateUpdates:    cfg.RecreateUpdates,
		DomeLightIntensity: cfg.DomeLightIntensity,
		DomeLightTexture:   cfg.DomeLightTexture,
		OldMDLSupport:      cfg.OldMDLSupport,
	}
}

// ToGenerator converts the file form back into a generator.Config.
func (gc GeneratorConfig) ToGenerator() generator.Config {
	return generator.Config{
		Height:             gc.Height,
		Width:              gc.Width,
		Azimuths:           gc.Azimuths,
		Elevations:         gc.Elevations,
		FOVMultiplier:      gc.FOVMultiplier,
		DistanceMultiplier: gc.DistanceMultiplier,
		DepthScale:         gc.DepthScale,
		NormalsToWorld:     gc.NormalsToWorld,
		ErrorLimit:         gc.ErrorLimit,
		RenderPasses:       gc.RenderPasses,
		SensorWarmupFrames: gc.SensorWarmupFrames,
		SensorTimeout:      time.Duration(gc.SensorTimeout),
		LoadWaitMode:       generator.LoadWaitMode(strings.ToLower(string(gc.LoadWaitMode))),
		RequiredLoadEvents: gc.RequiredLoadEvents,
		LoadTimeout:        time.Duration(gc.LoadTimeout),
		PollInterval:       time.Duration(gc.PollInterval),
		MaterialSettle:     time.Duration(gc.MaterialSettle),
		SettleUpdates:      gc.SettleUpdates,
		SettleSleep:        time.Duration(gc.SettleSleep),
		RecreateUpdates:    gc.RecreateUpdates,
		DomeLightIntensity: gc.DomeLightIntensity,
		DomeLightTexture:   gc.DomeLightTexture,
		OldMDLSupport:      gc.OldMDLSupport,
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Generator: NewGeneratorConfig(generator.DefaultConfig()),
		Log:       LogConfig{Level: logging.INFO},
	}
}

// Validate checks the whole config.
func (c *Config) Validate() error {
	return c.Generator.ToGenerator().Validate("generator")
}

// ApplyEnv applies environment overrides. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRenderingTimeout); ok && v != "" {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvRenderingTimeout)
		}
		c.Generator.LoadTimeout = Duration(seconds * float64(time.Second))
	}
	// only "true" and "1" enable it, anything else disables it
	if v, ok := lookup(EnvOldMDLSupport); ok && v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		c.Generator.OldMDLSupport = v == "true" || v == "1"
	}
	return nil
}

// ConfigureLogger sets the logger's level and attaches the configured log file, if any.
// The returned closer must be closed once logging is done.
func (lc LogConfig) ConfigureLogger(logger logging.Logger) io.Closer {
	logger.SetLevel(lc.Level)
	if lc.Filename == "" {
		return io.NopCloser(nil)
	}
	appender, closer := logging.NewFileAppender(lc.FileAppenderConfig)
	logger.AddAppender(appender)
	return closer
}
