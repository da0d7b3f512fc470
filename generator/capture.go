package generator

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/pcgen/camerarig"
	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/pointcloud"
	"go.viam.com/pcgen/reconstruct"
	"go.viam.com/pcgen/spatialmath"
	"go.viam.com/pcgen/viewplan"
)

// capturer runs the per-viewpoint state machine of one reconstruction.
type capturer struct {
	g          *Generator
	cfg        Config
	view       host.View
	intrinsics camerarig.Intrinsics
	bounds     spatialmath.Box
	upAxis     spatialmath.Axis
}

func (c *capturer) enter(ctx context.Context, vp viewplan.Viewpoint, s State, keysAndValues ...interface{}) {
	c.g.logger.CDebugw(ctx, "viewpoint state", append([]interface{}{"viewpoint", vp.String(), "state", s.String()}, keysAndValues...)...)
}

func (c *capturer) capture(ctx context.Context, vp viewplan.Viewpoint) (*pointcloud.PointCloud, error) {
	c.enter(ctx, vp, StatePositioning)
	pose := camerarig.PoseFor(c.bounds, vp, c.upAxis, c.cfg.DistanceMultiplier)
	if err := c.g.rig.Apply(c.g.services.Scene, pose); err != nil {
		return nil, err
	}

	for pass := 1; pass <= c.cfg.RenderPasses; pass++ {
		c.enter(ctx, vp, StateRendering, "pass", pass)
		if err := c.enableSensors(ctx); err != nil {
			return nil, err
		}
		done, err := c.g.services.Sensors.Render(ctx, c.view)
		if err != nil {
			return nil, errors.Wrap(err, "requesting render")
		}
		c.enter(ctx, vp, StateAwaitingSensors, "pass", pass)
		if err := c.awaitRender(ctx, done); err != nil {
			return nil, err
		}
	}

	outputs := make(map[host.Sensor]*host.SensorOutput, len(host.RequiredSensors))
	for _, sensor := range host.RequiredSensors {
		out, err := c.fetch(ctx, vp, sensor)
		if err != nil {
			return nil, err
		}
		outputs[sensor] = out
	}

	c.enter(ctx, vp, StateReconstructing)
	fb, err := reconstruct.FromSensorOutputs(outputs)
	if err != nil {
		return nil, reconstructionFailed(err, "reading buffers for %s", vp)
	}
	camToWorld, err := camerarig.ReadExtrinsics(c.g.services.Scene, c.view.CameraPath)
	if err != nil {
		return nil, err
	}
	cloud, err := reconstruct.Reconstruct(fb, c.intrinsics, camToWorld, reconstruct.Options{
		DepthScale:     c.cfg.DepthScale,
		NormalsToWorld: c.cfg.NormalsToWorld,
	})
	if err != nil {
		return nil, reconstructionFailed(err, "reconstructing %s", vp)
	}
	c.enter(ctx, vp, StateDone, "points", cloud.Size())
	return cloud, nil
}

// enableSensors turns the required sensors on and lets them warm up.
func (c *capturer) enableSensors(ctx context.Context) error {
	if err := c.g.services.Sensors.EnableSensors(ctx, c.view, host.RequiredSensors); err != nil {
		return errors.Wrap(err, "enabling sensors")
	}
	return c.g.updates(ctx, c.cfg.SensorWarmupFrames)
}

// awaitRender advances frames until done is closed.
func (c *capturer) awaitRender(ctx context.Context, done <-chan struct{}) error {
	var deadline time.Time
	if c.cfg.SensorTimeout > 0 {
		deadline = c.g.clk.Now().Add(c.cfg.SensorTimeout)
	}
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !deadline.IsZero() && !c.g.clk.Now().Before(deadline) {
			return errors.Wrapf(ErrReconstructionFailed, "render did not finish within %s", c.cfg.SensorTimeout)
		}
		if err := c.g.services.Scheduler.NextUpdate(ctx); err != nil {
			return err
		}
	}
}

// fetch reads one sensor, re-enabling the sensors after each transient failure. ErrorLimit
// consecutive transient failures fail the viewpoint.
func (c *capturer) fetch(ctx context.Context, vp viewplan.Viewpoint, sensor host.Sensor) (*host.SensorOutput, error) {
	for failures := 0; ; {
		out, err := c.g.services.Sensors.Fetch(ctx, c.view, sensor)
		if err == nil {
			return out, nil
		}
		if !host.IsTransient(err) {
			return nil, errors.Wrapf(err, "fetching %s", sensor)
		}
		failures++
		if failures >= c.cfg.ErrorLimit {
			return nil, reconstructionFailed(err, "%s failed %d times in a row", sensor, failures)
		}
		c.enter(ctx, vp, StateRetrying, "sensor", sensor.String(), "failures", failures, "error", err)
		if err := c.enableSensors(ctx); err != nil {
			return nil, err
		}
	}
}
