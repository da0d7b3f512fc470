// Package generator turns a mesh asset into a colored point cloud by rendering it from a
// ring of viewpoints and back-projecting each capture's ground-truth depth.
package generator

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/pcgen/camerarig"
	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/logging"
	"go.viam.com/pcgen/pointcloud"
	"go.viam.com/pcgen/spatialmath"
	"go.viam.com/pcgen/viewplan"
)

// Generator runs reconstructions against a host. Only one run may be in progress at a time.
type Generator struct {
	services host.Services
	clk      clock.Clock
	logger   logging.Logger
	rig      camerarig.Rig

	running sync.Mutex

	mu     sync.Mutex
	cfg    Config
	upAxis spatialmath.Axis
}

// New returns a generator using the given host services.
func New(services host.Services, cfg Config, clk clock.Clock, logger logging.Logger) (*Generator, error) {
	if err := cfg.Validate("generator"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Generator{
		services: services,
		clk:      clk,
		logger:   logger,
		rig:      camerarig.DefaultRig(),
		cfg:      cfg,
		upAxis:   spatialmath.AxisY,
	}, nil
}

func (g *Generator) config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// SetResolution changes the capture resolution of subsequent runs.
func (g *Generator) SetResolution(height, width int) error {
	if height <= 0 || width <= 0 {
		return errors.Errorf("invalid resolution %dx%d", width, height)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Height = height
	g.cfg.Width = width
	return nil
}

func (g *Generator) setUpAxis(axis spatialmath.Axis) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upAxis = axis
}

func (g *Generator) stageUpAxis() spatialmath.Axis {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upAxis
}

// Reconstruct loads the asset at assetPath, captures it from every configured viewpoint
// and replaces the stage with the resulting point cloud, which is also returned. Nothing is
// committed to the stage when any viewpoint fails.
func (g *Generator) Reconstruct(ctx context.Context, assetPath string) (*pointcloud.PointCloud, error) {
	if !g.running.TryLock() {
		return nil, ErrBusy
	}
	defer g.running.Unlock()
	return g.run(ctx, assetPath)
}

// Task is a reconstruction running in the background.
type Task struct {
	done  chan struct{}
	cloud *pointcloud.PointCloud
	err   error
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (*pointcloud.PointCloud, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.cloud, t.err
	}
}

// StartReconstruction runs Reconstruct in the background. If a run is already in progress
// the returned task is finished and fails with ErrBusy.
func (g *Generator) StartReconstruction(ctx context.Context, assetPath string) *Task {
	task := &Task{done: make(chan struct{})}
	if !g.running.TryLock() {
		task.err = ErrBusy
		close(task.done)
		return task
	}
	finish := func(cloud *pointcloud.PointCloud, err error) {
		task.cloud, task.err = cloud, err
		g.running.Unlock()
		close(task.done)
	}
	utils.PanicCapturingGoWithCallback(func() {
		finish(g.run(ctx, assetPath))
	}, func(p interface{}) {
		finish(nil, errors.Errorf("reconstruction panicked: %v", p))
	})
	return task
}

func (g *Generator) run(ctx context.Context, assetPath string) (cloud *pointcloud.PointCloud, err error) {
	cfg := g.config()
	start := g.clk.Now()

	guard, err := OverrideSettings(g.services.Settings, RenderSettings(cfg.OldMDLSupport))
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(guard.Restore))

	if _, err := g.initializeStage(ctx, cfg, assetPath); err != nil {
		return nil, err
	}
	cloud, err = g.captureAll(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := g.commit(ctx, cfg, cloud); err != nil {
		return nil, errors.Wrap(err, "committing point cloud")
	}
	g.logger.CInfof(ctx, "reconstructed %s: %d points in %s", assetPath, cloud.Size(), g.clk.Since(start))
	return cloud, nil
}

func (g *Generator) captureAll(ctx context.Context, cfg Config) (*pointcloud.PointCloud, error) {
	viewpoints := viewplan.Plan(cfg.Azimuths, cfg.Elevations)
	if len(viewpoints) == 0 {
		g.logger.Warnw("no viewpoints configured, point cloud will be empty",
			"azimuths", len(cfg.Azimuths), "elevations", len(cfg.Elevations))
		return pointcloud.New(), nil
	}

	scene := g.services.Scene
	in, err := camerarig.SetupCamera(scene, g.rig.CameraPath, cfg.Width, cfg.Height, cfg.FOVMultiplier)
	if err != nil {
		return nil, err
	}
	bounds, err := scene.ComputeWorldBounds(ObjectPath)
	if err != nil {
		return nil, errors.Wrap(err, "computing asset bounds")
	}
	if bounds.IsDegenerate() {
		g.logger.Warnw("asset bounds are degenerate, camera will sit at the asset center", "bounds", bounds)
	}

	view := host.View{CameraPath: g.rig.CameraPath, Width: cfg.Width, Height: cfg.Height}
	c := &capturer{g: g, cfg: cfg, view: view, intrinsics: in, bounds: bounds, upAxis: g.stageUpAxis()}
	clouds := make([]*pointcloud.PointCloud, 0, len(viewpoints))
	for i, vp := range viewpoints {
		pc, err := c.capture(ctx, vp)
		if err != nil {
			return nil, errors.Wrapf(err, "viewpoint %d (%s)", i, vp)
		}
		g.logger.CDebugw(ctx, "captured viewpoint", "index", i, "viewpoint", vp.String(), "points", pc.Size())
		clouds = append(clouds, pc)
	}
	return pointcloud.Concat(clouds...), nil
}
