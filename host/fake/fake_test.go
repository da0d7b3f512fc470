package fake

import (
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/pcgen/camerarig"
	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/logging"
	"go.viam.com/pcgen/reconstruct"
	"go.viam.com/pcgen/spatialmath"
)

const trianglePLY = `ply
format ascii 1.0
comment two triangles
element vertex 4
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
element face 1
property list uchar int vertex_indices
end_header
0 0 0 255 0 0
1 0 0 255 0 0
1 1 0 0 0 255
0 1 0 0 0 255
4 0 1 2 3
`

func TestReadPLY(t *testing.T) {
	mesh, err := ReadPLY(strings.NewReader(trianglePLY))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mesh.Triangles(), test.ShouldHaveLength, 2)
	test.That(t, mesh.Bounds(), test.ShouldResemble, spatialmath.NewBox(r3.Vector{}, r3.Vector{X: 1, Y: 1}))
	test.That(t, mesh.ColorAt(0).R, test.ShouldEqual, uint8(170))
	test.That(t, mesh.ColorAt(0).B, test.ShouldEqual, uint8(85))

	_, err = ReadPLY(strings.NewReader("not a ply\n"))
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(t.TempDir(), "quad.ply")
	test.That(t, os.WriteFile(path, []byte(trianglePLY), 0o600), test.ShouldBeNil)
	mesh, err = ReadPLYFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mesh.Triangles(), test.ShouldHaveLength, 2)
}

func TestSceneTransforms(t *testing.T) {
	s := NewScene(spatialmath.AxisY)
	test.That(t, s.DefinePrim("/World/A/B", host.PrimXform), test.ShouldBeNil)
	test.That(t, s.HasPrim("/World/A"), test.ShouldBeTrue)
	test.That(t, s.DefinePrim("bad", ""), test.ShouldNotBeNil)

	test.That(t, s.SetXformOps("/World/A", []spatialmath.XformOp{
		spatialmath.Translate(r3.Vector{X: 10}),
		spatialmath.RotateAbout(spatialmath.AxisZ, 90),
	}), test.ShouldBeNil)
	test.That(t, s.SetXformOps("/World/A/B", []spatialmath.XformOp{spatialmath.Translate(r3.Vector{X: 1})}), test.ShouldBeNil)

	m, err := s.LocalToWorld("/World/A/B", 0)
	test.That(t, err, test.ShouldBeNil)
	got := spatialmath.Translation(m)
	test.That(t, got.Sub(r3.Vector{X: 10, Y: 1}).Norm(), test.ShouldBeLessThan, 1e-9)

	// replacing, not appending
	test.That(t, s.SetXformOps("/World/A", []spatialmath.XformOp{spatialmath.Translate(r3.Vector{Z: 2})}), test.ShouldBeNil)
	ops, err := s.XformOps("/World/A")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ops, test.ShouldHaveLength, 1)

	test.That(t, s.SetMesh("/World/A/B", spatialmath.NewBoxMesh(
		spatialmath.NewBox(r3.Vector{X: -1, Y: -1, Z: -1}, r3.Vector{X: 1, Y: 1, Z: 1}), color.NRGBA{R: 200, A: 255})), test.ShouldBeNil)
	bounds, err := s.ComputeWorldBounds("/World")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bounds.Midpoint().Sub(r3.Vector{X: 1, Z: 2}).Norm(), test.ShouldBeLessThan, 1e-9)

	test.That(t, s.RemovePrim("/World/A"), test.ShouldBeNil)
	test.That(t, s.HasPrim("/World/A/B"), test.ShouldBeFalse)
	_, err = s.LocalToWorld("/World/A/B", 0)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, s.SetUpAxis(spatialmath.AxisZ), test.ShouldBeNil)
	test.That(t, s.SetUpAxis(spatialmath.AxisX), test.ShouldNotBeNil)
	test.That(t, s.NewStage(), test.ShouldBeNil)
	test.That(t, s.UpAxis(), test.ShouldEqual, spatialmath.AxisY)
	test.That(t, s.HasPrim("/World"), test.ShouldBeFalse)
	test.That(t, s.Stages(), test.ShouldEqual, 1)
}

func TestCameraDefaults(t *testing.T) {
	s := NewScene(spatialmath.AxisY)
	test.That(t, s.DefinePrim(camerarig.DefaultCameraPath, host.PrimCamera), test.ShouldBeNil)
	in, err := camerarig.ReadIntrinsics(s, camerarig.DefaultCameraPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, in.FocalLength, test.ShouldEqual, 50.0)
	test.That(t, in.HorizontalAperture, test.ShouldEqual, 20.955)
}

func TestSchedulerMockClock(t *testing.T) {
	clk := clock.NewMock()
	h := New(clk, Options{FrameInterval: 10 * time.Millisecond}, logging.NewTestLogger(t))
	start := clk.Now()
	ctx := context.Background()

	test.That(t, h.Scheduler.NextUpdate(ctx), test.ShouldBeNil)
	test.That(t, clk.Since(start), test.ShouldEqual, 10*time.Millisecond)
	test.That(t, h.Scheduler.Sleep(ctx, 25*time.Millisecond), test.ShouldBeNil)
	test.That(t, clk.Since(start), test.ShouldEqual, 35*time.Millisecond)
	test.That(t, h.Scheduler.Frame(), test.ShouldEqual, 4)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	test.That(t, h.Scheduler.NextUpdate(cancelled), test.ShouldEqual, context.Canceled)
}

func TestLoaderEvents(t *testing.T) {
	ctx := context.Background()
	h := New(clock.NewMock(), Options{Loader: LoaderOptions{LoadFrames: 2}}, logging.NewTestLogger(t))
	test.That(t, h.Scene.DefinePrim("/World/Object", ""), test.ShouldBeNil)

	events, unsubscribe := h.Loader.SubscribeStageEvents()
	defer unsubscribe()
	test.That(t, h.Loader.AddReference(ctx, "/World/Object", BoxAsset), test.ShouldBeNil)
	loaded, total := h.Loader.LoadingStatus()
	test.That(t, loaded, test.ShouldEqual, 0)
	test.That(t, total, test.ShouldEqual, 1)

	test.That(t, h.Scheduler.NextUpdate(ctx), test.ShouldBeNil)
	test.That(t, events, test.ShouldHaveLength, 0)
	test.That(t, h.Scheduler.NextUpdate(ctx), test.ShouldBeNil)
	test.That(t, <-events, test.ShouldEqual, host.StageAssetsLoaded)
	loaded, _ = h.Loader.LoadingStatus()
	test.That(t, loaded, test.ShouldEqual, 1)

	bounds, err := h.Scene.ComputeWorldBounds("/World/Object")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bounds.Size(), test.ShouldResemble, r3.Vector{X: 2, Y: 1, Z: 0.5})

	// unknown assets fail to open
	test.That(t, h.Loader.AddReference(ctx, "/World/Object", BuiltinPrefix+"teapot"), test.ShouldBeNil)
	test.That(t, h.Scheduler.Sleep(ctx, time.Second), test.ShouldBeNil)
	test.That(t, <-events, test.ShouldEqual, host.StageOpenFailed)

	test.That(t, h.Loader.AddReference(ctx, "/World/Missing", BoxAsset), test.ShouldNotBeNil)
}

// cameraAbove puts a camera 5 units above the origin looking down -Z.
func cameraAbove(t *testing.T, h *Host, width, height int) (host.View, camerarig.Intrinsics) {
	t.Helper()
	test.That(t, h.Scene.DefinePrim("/World/Cam", host.PrimCamera), test.ShouldBeNil)
	test.That(t, h.Scene.SetXformOps("/World/Cam", []spatialmath.XformOp{spatialmath.Translate(r3.Vector{Z: 5})}), test.ShouldBeNil)
	in, err := camerarig.SetupCamera(h.Scene, "/World/Cam", width, height, camerarig.DefaultFOVMultiplier)
	test.That(t, err, test.ShouldBeNil)
	return host.View{CameraPath: "/World/Cam", Width: width, Height: height}, in
}

func loadLabeledBox(t *testing.T, h *Host) {
	t.Helper()
	ctx := context.Background()
	test.That(t, h.Scene.DefinePrim("/World/Object", ""), test.ShouldBeNil)
	test.That(t, h.Scene.SetAttribute("/World/Object", host.AttrSemanticData, "Target"), test.ShouldBeNil)
	test.That(t, h.Loader.AddReference(ctx, "/World/Object", BoxAsset), test.ShouldBeNil)
	test.That(t, h.Scheduler.Sleep(ctx, time.Second), test.ShouldBeNil)
}

func fetchAll(t *testing.T, h *Host, view host.View) map[host.Sensor]*host.SensorOutput {
	t.Helper()
	out := map[host.Sensor]*host.SensorOutput{}
	for _, s := range host.RequiredSensors {
		o, err := h.Renderer.Fetch(context.Background(), view, s)
		test.That(t, err, test.ShouldBeNil)
		out[s] = o
	}
	return out
}

func TestRendererMatchesReconstruction(t *testing.T) {
	ctx := context.Background()
	h := New(clock.NewMock(), Options{}, logging.NewTestLogger(t))
	loadLabeledBox(t, h)
	view, in := cameraAbove(t, h, 16, 12)

	test.That(t, h.Renderer.EnableSensors(ctx, view, host.RequiredSensors), test.ShouldBeNil)
	done, err := h.Renderer.Render(ctx, view)
	test.That(t, err, test.ShouldBeNil)
	<-done

	fb, err := reconstruct.FromSensorOutputs(fetchAll(t, h, view))
	test.That(t, err, test.ShouldBeNil)
	tf, err := camerarig.ReadExtrinsics(h.Scene, "/World/Cam")
	test.That(t, err, test.ShouldBeNil)
	cloud, err := reconstruct.Reconstruct(fb, in, tf, reconstruct.Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldBeGreaterThan, 0)
	test.That(t, cloud.Size(), test.ShouldBeLessThan, 16*12)

	// looking straight down, only the top face is visible
	for _, p := range cloud.Points() {
		test.That(t, p.Position.Z, test.ShouldAlmostEqual, 0.25, 1e-4)
		test.That(t, math.Abs(p.Position.X), test.ShouldBeLessThanOrEqualTo, 1+1e-4)
		test.That(t, math.Abs(p.Position.Y), test.ShouldBeLessThanOrEqualTo, 0.5+1e-4)
		test.That(t, p.Normal.Sub(r3.Vector{Z: 1}).Norm(), test.ShouldBeLessThan, 1e-6)
		test.That(t, p.Color.R, test.ShouldBeLessThanOrEqualTo, uint8(230))
		test.That(t, p.Color.R, test.ShouldBeGreaterThan, uint8(200))
	}
}

func TestRendererUnlabeledIsBackground(t *testing.T) {
	ctx := context.Background()
	h := New(clock.NewMock(), Options{}, logging.NewTestLogger(t))
	test.That(t, h.Scene.DefinePrim("/World/Object", ""), test.ShouldBeNil)
	test.That(t, h.Loader.AddReference(ctx, "/World/Object", BoxAsset), test.ShouldBeNil)
	test.That(t, h.Scheduler.Sleep(ctx, time.Second), test.ShouldBeNil)
	view, _ := cameraAbove(t, h, 8, 6)

	test.That(t, h.Renderer.EnableSensors(ctx, view, host.RequiredSensors), test.ShouldBeNil)
	done, err := h.Renderer.Render(ctx, view)
	test.That(t, err, test.ShouldBeNil)
	<-done
	outputs := fetchAll(t, h, view)

	hits := 0
	for i, id := range outputs[host.SensorInstanceSegmentation].Instance {
		test.That(t, id, test.ShouldEqual, uint32(0))
		if outputs[host.SensorDepthLinear].Float32[i] > 0 {
			hits++
		}
	}
	test.That(t, hits, test.ShouldBeGreaterThan, 0)
}

func TestRendererLatencyAndFailures(t *testing.T) {
	ctx := context.Background()
	h := New(clock.NewMock(), Options{Renderer: RendererOptions{LatencyFrames: 2}}, logging.NewTestLogger(t))
	loadLabeledBox(t, h)
	view, _ := cameraAbove(t, h, 4, 4)

	_, err := h.Renderer.Render(ctx, view)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, h.Renderer.EnableSensors(ctx, view, host.RequiredSensors), test.ShouldBeNil)
	done, err := h.Renderer.Render(ctx, view)
	test.That(t, err, test.ShouldBeNil)

	_, err = h.Renderer.Fetch(ctx, view, host.SensorDepthLinear)
	test.That(t, host.IsTransient(err), test.ShouldBeTrue)

	test.That(t, h.Scheduler.NextUpdate(ctx), test.ShouldBeNil)
	select {
	case <-done:
		t.Fatal("capture published too early")
	default:
	}
	test.That(t, h.Scheduler.NextUpdate(ctx), test.ShouldBeNil)
	<-done

	h.Renderer.FailFetches(2)
	for i := 0; i < 2; i++ {
		_, err = h.Renderer.Fetch(ctx, view, host.SensorColor)
		test.That(t, host.IsTransient(err), test.ShouldBeTrue)
	}
	out, err := h.Renderer.Fetch(ctx, view, host.SensorColor)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Uint8, test.ShouldHaveLength, 4*4*4)
	test.That(t, h.Renderer.Renders(), test.ShouldEqual, 1)
}

func TestRendererStaleFirstFrame(t *testing.T) {
	ctx := context.Background()
	h := New(clock.NewMock(), Options{Renderer: RendererOptions{StaleFirstFrame: true}}, logging.NewTestLogger(t))
	loadLabeledBox(t, h)
	view, _ := cameraAbove(t, h, 8, 8)
	test.That(t, h.Renderer.EnableSensors(ctx, view, host.RequiredSensors), test.ShouldBeNil)

	depthAt := func() []float32 {
		done, err := h.Renderer.Render(ctx, view)
		test.That(t, err, test.ShouldBeNil)
		<-done
		out, err := h.Renderer.Fetch(ctx, view, host.SensorDepthLinear)
		test.That(t, err, test.ShouldBeNil)
		return out.Float32
	}
	near := depthAt()

	test.That(t, h.Scene.SetXformOps("/World/Cam", []spatialmath.XformOp{spatialmath.Translate(r3.Vector{Z: 8})}), test.ShouldBeNil)
	stale := depthAt()
	fresh := depthAt()
	test.That(t, stale, test.ShouldResemble, near)
	test.That(t, fresh, test.ShouldNotResemble, near)
}

func TestSettingsStore(t *testing.T) {
	s := NewSettings(map[string]interface{}{"/a": 1})
	v, ok := s.Get("/a")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 1)

	test.That(t, s.Set("/b", "x"), test.ShouldBeNil)
	test.That(t, s.Unset("/a"), test.ShouldBeNil)
	_, ok = s.Get("/a")
	test.That(t, ok, test.ShouldBeFalse)

	s.FailOn("/b", context.DeadlineExceeded)
	test.That(t, s.Set("/b", "y"), test.ShouldEqual, context.DeadlineExceeded)
	s.FailOn("/b", nil)
	test.That(t, s.Set("/b", "y"), test.ShouldBeNil)
	test.That(t, s.Snapshot(), test.ShouldResemble, map[string]interface{}{"/b": "y"})
}
