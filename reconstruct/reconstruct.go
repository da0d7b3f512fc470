// Package reconstruct back-projects rendered ground-truth buffers into world-space points.
package reconstruct

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pcgen/camerarig"
	"go.viam.com/pcgen/pointcloud"
	"go.viam.com/pcgen/spatialmath"
)

// DefaultDepthScale converts linear depth to scene units.
const DefaultDepthScale = 100.0

var (
	// ErrBufferShape is returned when buffer lengths disagree with the frame dimensions.
	ErrBufferShape = errors.New("buffer shape mismatch")
	// ErrInvalidIntrinsics is returned for intrinsics that cannot define a pinhole camera.
	ErrInvalidIntrinsics = errors.New("invalid camera intrinsics")
)

// FrameBuffers holds one capture in row-major order. Depth and Mask have one value per
// pixel, Normal three and Color four (RGBA).
type FrameBuffers struct {
	Width  int
	Height int
	Depth  []float32
	Normal []float32
	Color  []uint8
	Mask   []bool
}

// Validate checks that every buffer matches the frame dimensions.
func (fb FrameBuffers) Validate() error {
	n := fb.Width * fb.Height
	switch {
	case fb.Width <= 0 || fb.Height <= 0:
		return errors.Wrapf(ErrBufferShape, "frame is %dx%d", fb.Width, fb.Height)
	case len(fb.Depth) != n:
		return errors.Wrapf(ErrBufferShape, "depth has %d values, want %d", len(fb.Depth), n)
	case len(fb.Normal) != 3*n:
		return errors.Wrapf(ErrBufferShape, "normal has %d values, want %d", len(fb.Normal), 3*n)
	case len(fb.Color) != 4*n:
		return errors.Wrapf(ErrBufferShape, "color has %d values, want %d", len(fb.Color), 4*n)
	case len(fb.Mask) != n:
		return errors.Wrapf(ErrBufferShape, "mask has %d values, want %d", len(fb.Mask), n)
	}
	return nil
}

// Options tune the back-projection.
type Options struct {
	// DepthScale multiplies camera-space coordinates. Zero means DefaultDepthScale.
	DepthScale float64
	// NormalsToWorld rotates normals into world space. By default normals are emitted as
	// the renderer produced them.
	NormalsToWorld bool
}

func validateIntrinsics(in camerarig.Intrinsics) error {
	if in.FocalLength <= 0 || math.IsNaN(in.FocalLength) {
		return errors.Wrapf(ErrInvalidIntrinsics, "focal length %g", in.FocalLength)
	}
	if in.HorizontalAperture <= 0 || in.VerticalAperture <= 0 {
		return errors.Wrapf(ErrInvalidIntrinsics, "apertures %gx%g", in.HorizontalAperture, in.VerticalAperture)
	}
	return nil
}

// PixelRay returns the camera-space point seen at depth 1 through the pixel at (col, row).
// The camera looks down -Z, so the returned vector always has Z == -1. Columns are measured
// from the right edge of the image.
func PixelRay(in camerarig.Intrinsics, width, height, col, row int) r3.Vector {
	fovH := in.HorizontalFOV()
	i := width - 1 - col
	gammaH := (math.Pi-fovH)/2 + float64(i)*fovH/float64(width)

	fovW := in.VerticalFOV()
	gammaW := 2*math.Pi - fovW/2 + float64(row)*fovW/float64(height)

	return r3.Vector{
		X: 1 / math.Tan(gammaH),
		Y: -math.Tan(gammaW),
		Z: -1,
	}
}

// Reconstruct turns a capture into points. Pixels outside the mask or with zero depth are
// skipped; the rest produce one point each in row-major scan order. Positions are moved to
// world space with cameraToWorld. An all-background frame yields an empty cloud.
func Reconstruct(
	fb FrameBuffers,
	in camerarig.Intrinsics,
	cameraToWorld mgl64.Mat4,
	opts Options,
) (*pointcloud.PointCloud, error) {
	if err := fb.Validate(); err != nil {
		return nil, err
	}
	if err := validateIntrinsics(in); err != nil {
		return nil, err
	}
	scale := opts.DepthScale
	if scale == 0 {
		scale = DefaultDepthScale
	}

	var pixels []int
	var camPoints []float64
	for row := 0; row < fb.Height; row++ {
		for col := 0; col < fb.Width; col++ {
			idx := row*fb.Width + col
			if !fb.Mask[idx] || fb.Depth[idx] == 0 {
				continue
			}
			p := PixelRay(in, fb.Width, fb.Height, col, row).Mul(float64(fb.Depth[idx]) * scale)
			camPoints = append(camPoints, p.X, p.Y, p.Z, 1)
			pixels = append(pixels, idx)
		}
	}
	if len(pixels) == 0 {
		return pointcloud.New(), nil
	}

	// [x y z 1] * T for every point at once.
	homog := mat.NewDense(len(pixels), 4, camPoints)
	tf := mat.NewDense(4, 4, spatialmath.RowVectorForm(cameraToWorld))
	var world mat.Dense
	world.Mul(homog, tf)

	normalTf := spatialmath.NormalMatrix(cameraToWorld)
	cloud := pointcloud.NewWithPrealloc(len(pixels))
	for k, idx := range pixels {
		normal := r3.Vector{
			X: float64(fb.Normal[3*idx]),
			Y: float64(fb.Normal[3*idx+1]),
			Z: float64(fb.Normal[3*idx+2]),
		}
		if opts.NormalsToWorld {
			normal = rotateNormal(normalTf, normal)
		}
		cloud.Append(pointcloud.Point{
			Position: r3.Vector{X: world.At(k, 0), Y: world.At(k, 1), Z: world.At(k, 2)},
			Normal:   normal,
			Color:    color.NRGBA{R: fb.Color[4*idx], G: fb.Color[4*idx+1], B: fb.Color[4*idx+2], A: 255},
		})
	}
	return cloud, nil
}

func rotateNormal(m mgl64.Mat3, n r3.Vector) r3.Vector {
	v := m.Mul3x1(mgl64.Vec3{n.X, n.Y, n.Z})
	out := r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	if norm := out.Norm(); norm > 0 {
		return out.Mul(1 / norm)
	}
	return out
}
