package fake

import (
	"image/color"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"

	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/logging"
	"go.viam.com/pcgen/spatialmath"
)

// BoxAsset is the built-in asset path of a 2 x 1 x 0.5 orange box centered at the origin.
const BoxAsset = BuiltinPrefix + "box"

// Options configure a simulated host.
type Options struct {
	UpAxis        spatialmath.Axis
	FrameInterval time.Duration
	Renderer      RendererOptions
	Loader        LoaderOptions
	Settings      map[string]interface{}
}

// Host is a complete simulated host.
type Host struct {
	Scene     *Scene
	Renderer  *Renderer
	Loader    *Loader
	Scheduler *Scheduler
	Settings  *Settings
}

// New returns a simulated host whose frames run on clk. The box asset is pre-registered.
func New(clk clock.Clock, opts Options, logger logging.Logger) *Host {
	if opts.UpAxis != spatialmath.AxisZ {
		opts.UpAxis = spatialmath.AxisY
	}
	scene := NewScene(opts.UpAxis)
	renderer := NewRenderer(scene, opts.Renderer, logger.Sublogger("renderer"))
	loader := NewLoader(scene, opts.Loader, logger.Sublogger("loader"))
	loader.Register("box", spatialmath.NewBoxMesh(
		spatialmath.NewBox(r3.Vector{X: -1, Y: -0.5, Z: -0.25}, r3.Vector{X: 1, Y: 0.5, Z: 0.25}),
		color.NRGBA{R: 230, G: 120, B: 30, A: 255},
	))
	return &Host{
		Scene:     scene,
		Renderer:  renderer,
		Loader:    loader,
		Scheduler: NewScheduler(clk, opts.FrameInterval, loader, renderer),
		Settings:  NewSettings(opts.Settings),
	}
}

// Services returns the host as a capability bundle.
func (h *Host) Services() host.Services {
	return host.Services{
		Scene:     h.Scene,
		Sensors:   h.Renderer,
		Loader:    h.Loader,
		Scheduler: h.Scheduler,
		Settings:  h.Settings,
	}
}
