package generator

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/pcgen/camerarig"
	"go.viam.com/pcgen/reconstruct"
	"go.viam.com/pcgen/viewplan"
)

// LoadWaitMode selects how InitializeStage waits for the asset.
type LoadWaitMode string

// Load wait modes.
const (
	// LoadWaitEvent counts AssetsLoaded stage events.
	LoadWaitEvent LoadWaitMode = "event"
	// LoadWaitPoll polls the loader's loading status.
	LoadWaitPoll LoadWaitMode = "poll"
)

// Config holds every tunable of a Generator.
type Config struct {
	Height int
	Width  int

	Azimuths   []float64
	Elevations []float64

	FOVMultiplier      float64
	DistanceMultiplier float64
	DepthScale         float64
	NormalsToWorld     bool

	// ErrorLimit bounds consecutive transient failures of one sensor fetch.
	ErrorLimit int
	// RenderPasses is how many times each viewpoint is rendered. Only the last capture is used.
	RenderPasses       int
	SensorWarmupFrames int
	// SensorTimeout bounds each wait for a render. Zero waits forever.
	SensorTimeout time.Duration

	LoadWaitMode       LoadWaitMode
	RequiredLoadEvents int
	LoadTimeout        time.Duration
	PollInterval       time.Duration
	MaterialSettle     time.Duration

	SettleUpdates   int
	SettleSleep     time.Duration
	RecreateUpdates int

	DomeLightIntensity float64
	DomeLightTexture   string

	OldMDLSupport bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Height:             448,
		Width:              448,
		Azimuths:           append([]float64(nil), viewplan.DefaultAzimuths...),
		Elevations:         append([]float64(nil), viewplan.DefaultElevations...),
		FOVMultiplier:      camerarig.DefaultFOVMultiplier,
		DistanceMultiplier: camerarig.DefaultDistanceMultiplier,
		DepthScale:         reconstruct.DefaultDepthScale,
		ErrorLimit:         10,
		RenderPasses:       2,
		SensorWarmupFrames: 2,
		LoadWaitMode:       LoadWaitEvent,
		RequiredLoadEvents: 1,
		LoadTimeout:        600 * time.Second,
		PollInterval:       time.Second,
		MaterialSettle:     200 * time.Millisecond,
		SettleUpdates:      10,
		SettleSleep:        time.Second,
		RecreateUpdates:    2,
		DomeLightIntensity: 1500,
	}
}

// Validate checks the config, naming offending fields relative to path.
func (cfg Config) Validate(path string) error {
	if cfg.Height <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "height")
	}
	if cfg.Width <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "width")
	}
	if cfg.FOVMultiplier <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("fov_multiplier must be positive, got %g", cfg.FOVMultiplier))
	}
	if cfg.DistanceMultiplier <= 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("distance_multiplier must be positive, got %g", cfg.DistanceMultiplier))
	}
	if cfg.DepthScale < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("depth_scale cannot be negative, got %g", cfg.DepthScale))
	}
	if cfg.ErrorLimit < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("error_limit must be at least 1, got %d", cfg.ErrorLimit))
	}
	if cfg.RenderPasses < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("render_passes must be at least 1, got %d", cfg.RenderPasses))
	}
	switch cfg.LoadWaitMode {
	case LoadWaitEvent, LoadWaitPoll:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown load_wait_mode %q", cfg.LoadWaitMode))
	}
	if cfg.LoadTimeout <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "load_timeout")
	}
	if cfg.LoadWaitMode == LoadWaitPoll && cfg.PollInterval <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "poll_interval")
	}
	for _, v := range []struct {
		name  string
		value int
	}{
		{"required_load_events", cfg.RequiredLoadEvents},
		{"sensor_warmup_frames", cfg.SensorWarmupFrames},
		{"settle_updates", cfg.SettleUpdates},
		{"recreate_updates", cfg.RecreateUpdates},
	} {
		if v.value < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative, got %d", v.name, v.value))
		}
	}
	return nil
}
