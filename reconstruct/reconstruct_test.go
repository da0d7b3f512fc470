package reconstruct

import (
	"image/color"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/pcgen/camerarig"
)

func squareIntrinsics() camerarig.Intrinsics {
	h := 20.955
	return camerarig.Intrinsics{
		HorizontalAperture: h,
		VerticalAperture:   h,
		FocalLength:        h / math.Tan(math.Pi/6) * camerarig.DefaultFOVMultiplier,
		ClippingRange:      camerarig.DefaultClippingRange,
	}
}

// uniformFrame returns a w x h frame where every pixel has the given depth, is in the mask
// and has a color encoding its index.
func uniformFrame(w, h int, depth float32) FrameBuffers {
	n := w * h
	fb := FrameBuffers{
		Width:  w,
		Height: h,
		Depth:  make([]float32, n),
		Normal: make([]float32, 3*n),
		Color:  make([]uint8, 4*n),
		Mask:   make([]bool, n),
	}
	for i := 0; i < n; i++ {
		fb.Depth[i] = depth
		fb.Normal[3*i+2] = 1
		fb.Color[4*i] = uint8(i)
		fb.Color[4*i+3] = 255
		fb.Mask[i] = true
	}
	return fb
}

func TestSinglePixelClosedForm(t *testing.T) {
	in := squareIntrinsics()
	cloud, err := Reconstruct(uniformFrame(1, 1, 1), in, mgl64.Ident4(), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 1)

	fovH := 2 * math.Atan(in.HorizontalAperture/in.FocalLength/2)
	fovW := 2 * math.Atan(in.VerticalAperture/in.FocalLength/2)
	wantX := 1 / math.Tan((math.Pi-fovH)/2) * 100
	wantY := -math.Tan(2*math.Pi-fovW/2) * 100

	p := cloud.At(0)
	test.That(t, p.Position.X, test.ShouldAlmostEqual, wantX, 1e-9)
	test.That(t, p.Position.Y, test.ShouldAlmostEqual, wantY, 1e-9)
	test.That(t, p.Position.Z, test.ShouldAlmostEqual, -100.0, 1e-9)
	test.That(t, p.Normal, test.ShouldResemble, r3.Vector{Z: 1})
	test.That(t, p.Color, test.ShouldResemble, color.NRGBA{A: 255})
}

func TestDepthScaleAndTransform(t *testing.T) {
	in := squareIntrinsics()
	fb := uniformFrame(1, 1, 2)
	tf := mgl64.Translate3D(1, 2, 30)

	cloud, err := Reconstruct(fb, in, tf, Options{DepthScale: 10})
	test.That(t, err, test.ShouldBeNil)
	ray := PixelRay(in, 1, 1, 0, 0)
	want := ray.Mul(20).Add(r3.Vector{X: 1, Y: 2, Z: 30})
	test.That(t, cloud.At(0).Position.Sub(want).Norm(), test.ShouldBeLessThan, 1e-9)
	test.That(t, cloud.At(0).Position.Z, test.ShouldAlmostEqual, 10.0, 1e-9)
}

func TestMasking(t *testing.T) {
	in := squareIntrinsics()
	fb := uniformFrame(3, 2, 1.5)
	fb.Mask[1] = false
	fb.Mask[4] = false
	// in the mask but with no depth
	fb.Depth[5] = 0

	cloud, err := Reconstruct(fb, in, mgl64.Ident4(), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 3)

	// row-major order of surviving pixels 0, 2, 3
	for k, idx := range []int{0, 2, 3} {
		p := cloud.At(k)
		test.That(t, int(p.Color.R), test.ShouldEqual, idx)
		col, row := idx%3, idx/3
		want := PixelRay(in, 3, 2, col, row).Mul(150)
		test.That(t, p.Position.Sub(want).Norm(), test.ShouldBeLessThan, 1e-9)
	}
}

func TestAllMasked(t *testing.T) {
	fb := uniformFrame(4, 4, 1)
	for i := range fb.Mask {
		fb.Mask[i] = false
	}
	cloud, err := Reconstruct(fb, squareIntrinsics(), mgl64.Ident4(), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 0)
}

func TestIdempotent(t *testing.T) {
	fb := uniformFrame(5, 4, 0.7)
	fb.Mask[7] = false
	tf := mgl64.HomogRotate3DY(0.3).Mul4(mgl64.Translate3D(0, 0, 12))

	first, err := Reconstruct(fb, squareIntrinsics(), tf, Options{})
	test.That(t, err, test.ShouldBeNil)
	second, err := Reconstruct(fb, squareIntrinsics(), tf, Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.Points(), test.ShouldResemble, first.Points())
	test.That(t, fb.Depth[7], test.ShouldEqual, float32(0.7))
}

func TestNormalsToWorld(t *testing.T) {
	fb := uniformFrame(1, 1, 1)
	fb.Normal = []float32{1, 0, 0}
	tf := mgl64.HomogRotate3DZ(math.Pi / 2)

	raw, err := Reconstruct(fb, squareIntrinsics(), tf, Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.At(0).Normal, test.ShouldResemble, r3.Vector{X: 1})

	rotated, err := Reconstruct(fb, squareIntrinsics(), tf, Options{NormalsToWorld: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rotated.At(0).Normal.Sub(r3.Vector{Y: 1}).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestPixelRay(t *testing.T) {
	in := squareIntrinsics()
	right := PixelRay(in, 4, 4, 3, 0)
	left := PixelRay(in, 4, 4, 0, 0)
	test.That(t, right.Z, test.ShouldEqual, -1.0)
	test.That(t, right.X, test.ShouldAlmostEqual, math.Tan(in.HorizontalFOV()/2), 1e-12)
	test.That(t, left.X, test.ShouldBeLessThan, 0.0)

	top := PixelRay(in, 4, 4, 0, 0)
	bottom := PixelRay(in, 4, 4, 0, 3)
	test.That(t, top.Y, test.ShouldBeGreaterThan, 0.0)
	test.That(t, bottom.Y, test.ShouldBeLessThan, 0.0)
}

func TestShapeErrors(t *testing.T) {
	in := squareIntrinsics()
	for name, mutate := range map[string]func(fb *FrameBuffers){
		"depth":  func(fb *FrameBuffers) { fb.Depth = fb.Depth[1:] },
		"normal": func(fb *FrameBuffers) { fb.Normal = append(fb.Normal, 0) },
		"color":  func(fb *FrameBuffers) { fb.Color = nil },
		"mask":   func(fb *FrameBuffers) { fb.Mask = fb.Mask[:3] },
		"width":  func(fb *FrameBuffers) { fb.Width = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			fb := uniformFrame(2, 2, 1)
			mutate(&fb)
			_, err := Reconstruct(fb, in, mgl64.Ident4(), Options{})
			test.That(t, errors.Is(err, ErrBufferShape), test.ShouldBeTrue)
		})
	}
}

func TestInvalidIntrinsics(t *testing.T) {
	in := squareIntrinsics()
	in.FocalLength = 0
	_, err := Reconstruct(uniformFrame(1, 1, 1), in, mgl64.Ident4(), Options{})
	test.That(t, errors.Is(err, ErrInvalidIntrinsics), test.ShouldBeTrue)

	in = squareIntrinsics()
	in.VerticalAperture = -1
	_, err = Reconstruct(uniformFrame(1, 1, 1), in, mgl64.Ident4(), Options{})
	test.That(t, errors.Is(err, ErrInvalidIntrinsics), test.ShouldBeTrue)
}
