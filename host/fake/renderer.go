package fake

import (
	"context"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/pcgen/camerarig"
	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/logging"
	"go.viam.com/pcgen/reconstruct"
	"go.viam.com/pcgen/spatialmath"
)

// RendererOptions shape how the simulated renderer behaves.
type RendererOptions struct {
	// LatencyFrames is how many frames pass between a render request and its completion.
	LatencyFrames int
	// StaleFirstFrame makes the first capture after a camera move use the camera's previous
	// transform, like a host that applies transform edits one frame late.
	StaleFirstFrame bool
	// DepthScale divides hit distances before they are stored as depth. Zero means
	// reconstruct.DefaultDepthScale.
	DepthScale float64
}

type capture struct {
	view    host.View
	outputs map[host.Sensor]*host.SensorOutput
	done    chan struct{}
	frames  int
}

// Renderer ray casts the scene's meshes to produce ground-truth buffers.
type Renderer struct {
	scene  *Scene
	opts   RendererOptions
	logger logging.Logger

	mu        sync.Mutex
	enabled   map[string]map[host.Sensor]bool
	pending   []*capture
	latest    map[string]*capture
	lastSeen  map[string]mgl64.Mat4
	transient int
	fetchErr  error
	renders   int
}

// NewRenderer returns a renderer for scene.
func NewRenderer(scene *Scene, opts RendererOptions, logger logging.Logger) *Renderer {
	if opts.DepthScale == 0 {
		opts.DepthScale = reconstruct.DefaultDepthScale
	}
	return &Renderer{
		scene:    scene,
		opts:     opts,
		logger:   logger,
		enabled:  map[string]map[host.Sensor]bool{},
		latest:   map[string]*capture{},
		lastSeen: map[string]mgl64.Mat4{},
	}
}

// FailFetches makes the next n fetches return a transient error.
func (r *Renderer) FailFetches(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transient = n
}

// FailFetchesWith makes every fetch fail with err until cleared with nil.
func (r *Renderer) FailFetchesWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchErr = err
}

// Renders returns the number of render requests served.
func (r *Renderer) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// EnableSensors turns on sensors for a view.
func (r *Renderer) EnableSensors(ctx context.Context, view host.View, sensors []host.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.enabled[view.CameraPath]
	if !ok {
		set = map[host.Sensor]bool{}
		r.enabled[view.CameraPath] = set
	}
	for _, s := range sensors {
		set[s] = true
	}
	return nil
}

// Render captures the view. The capture is traced immediately and published after
// LatencyFrames frames.
func (r *Renderer) Render(ctx context.Context, view host.View) (<-chan struct{}, error) {
	if view.Width <= 0 || view.Height <= 0 {
		return nil, errors.Errorf("invalid view size %dx%d", view.Width, view.Height)
	}
	in, err := camerarig.ReadIntrinsics(r.scene, view.CameraPath)
	if err != nil {
		return nil, err
	}
	current, err := camerarig.ReadExtrinsics(r.scene, view.CameraPath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.enabled[view.CameraPath]) == 0 {
		r.mu.Unlock()
		return nil, errors.Errorf("no sensors enabled for %s", view.CameraPath)
	}
	pose := current
	stale := false
	if prev, ok := r.lastSeen[view.CameraPath]; ok && r.opts.StaleFirstFrame && !prev.ApproxEqual(current) {
		pose = prev
		stale = true
	}
	r.lastSeen[view.CameraPath] = current
	r.renders++
	r.mu.Unlock()
	r.logger.CDebugw(ctx, "render", "camera", view.CameraPath, "width", view.Width, "height", view.Height, "stale", stale)

	outputs, err := r.trace(ctx, view, in, pose)
	if err != nil {
		return nil, err
	}
	c := &capture{view: view, outputs: outputs, done: make(chan struct{}), frames: r.opts.LatencyFrames}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c.frames <= 0 {
		r.publishLocked(c)
	} else {
		r.pending = append(r.pending, c)
	}
	return c.done, nil
}

func (r *Renderer) publishLocked(c *capture) {
	r.latest[c.view.CameraPath] = c
	close(c.done)
}

// Tick publishes captures whose latency has elapsed.
func (r *Renderer) Tick(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.pending[:0]
	for _, c := range r.pending {
		c.frames--
		if c.frames > 0 {
			remaining = append(remaining, c)
			continue
		}
		r.publishLocked(c)
	}
	r.pending = remaining
}

// Fetch returns a sensor buffer of the latest published capture of the view.
func (r *Renderer) Fetch(ctx context.Context, view host.View, sensor host.Sensor) (*host.SensorOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if r.transient > 0 {
		r.transient--
		return nil, host.NewTransientSensorError(sensor, errors.New("injected failure"))
	}
	if !r.enabled[view.CameraPath][sensor] {
		return nil, host.NewTransientSensorError(sensor, errors.New("sensor not enabled"))
	}
	c, ok := r.latest[view.CameraPath]
	if !ok || c.view != view {
		return nil, host.NewTransientSensorError(sensor, errors.New("no capture"))
	}
	out, ok := c.outputs[sensor]
	if !ok {
		return nil, host.NewTransientSensorError(sensor, errors.New("sensor not captured"))
	}
	return out, nil
}

// trace casts one ray per pixel, rows in parallel.
func (r *Renderer) trace(
	ctx context.Context,
	view host.View,
	in camerarig.Intrinsics,
	camToWorld mgl64.Mat4,
) (map[host.Sensor]*host.SensorOutput, error) {
	meshes, err := r.scene.worldMeshes()
	if err != nil {
		return nil, err
	}
	w, h := view.Width, view.Height
	n := w * h
	depth := make([]float32, n)
	normals := make([]float32, 3*n)
	colors := make([]uint8, 4*n)
	instances := make([]uint32, n)

	origin := spatialmath.Translation(camToWorld)
	worldToCam := camToWorld.Inv()
	near, far := in.ClippingRange[0], in.ClippingRange[1]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for row := 0; row < h; row++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for col := 0; col < w; col++ {
				ray := reconstruct.PixelRay(in, w, h, col, row)
				dir := spatialmath.TransformDirection(camToWorld, ray)
				hit, ok := castRay(meshes, origin, dir, near, far)
				if !ok {
					continue
				}
				idx := row*w + col
				depth[idx] = float32(hit.t / r.opts.DepthScale)

				facing := hit.normal
				if facing.Dot(dir) > 0 {
					facing = facing.Mul(-1)
				}
				camN := spatialmath.TransformDirection(worldToCam, facing)
				normals[3*idx] = float32(camN.X)
				normals[3*idx+1] = float32(camN.Y)
				normals[3*idx+2] = float32(camN.Z)

				c := shade(hit.color, facing, dir)
				colors[4*idx] = c.R
				colors[4*idx+1] = c.G
				colors[4*idx+2] = c.B
				colors[4*idx+3] = c.A
				instances[idx] = hit.instance
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[host.Sensor]*host.SensorOutput{
		host.SensorDepthLinear:          {Sensor: host.SensorDepthLinear, Width: w, Height: h, Float32: depth},
		host.SensorNormal:               {Sensor: host.SensorNormal, Width: w, Height: h, Float32: normals},
		host.SensorColor:                {Sensor: host.SensorColor, Width: w, Height: h, Uint8: colors},
		host.SensorInstanceSegmentation: {Sensor: host.SensorInstanceSegmentation, Width: w, Height: h, Instance: instances},
	}, nil
}

type rayHit struct {
	t        float64
	normal   r3.Vector
	color    color.NRGBA
	instance uint32
}

// castRay returns the closest hit along origin + t*dir with near < t < far.
func castRay(meshes []worldMesh, origin, dir r3.Vector, near, far float64) (rayHit, bool) {
	best := rayHit{t: far}
	found := false
	for _, wm := range meshes {
		if _, ok := wm.bounds.IntersectRay(origin, dir, near, best.t); !ok {
			continue
		}
		for i, tri := range wm.mesh.Triangles() {
			t, ok := tri.IntersectRay(origin, dir, near, best.t)
			if !ok {
				continue
			}
			best = rayHit{t: t, normal: tri.Normal(), color: wm.mesh.ColorAt(i), instance: wm.instance}
			found = true
		}
	}
	return best, found
}

// shade applies a headlight: full color facing the camera, 30% at grazing angles.
func shade(c color.NRGBA, normal, dir r3.Vector) color.NRGBA {
	lambert := math.Abs(normal.Dot(dir.Normalize()))
	k := 0.3 + 0.7*lambert
	return color.NRGBA{
		R: uint8(math.Round(float64(c.R) * k)),
		G: uint8(math.Round(float64(c.G) * k)),
		B: uint8(math.Round(float64(c.B) * k)),
		A: 255,
	}
}
