// Package pointcloud defines an ordered, oriented and colored point cloud.
//
// Points keep the order they were appended in. Downstream consumers treat the cloud as a
// multiset, but reproducible ordering matters for tests and for diffing outputs across runs.
package pointcloud

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/pcgen/spatialmath"
)

// Point is a single world-space sample with its surface normal and color.
type Point struct {
	Position r3.Vector
	Normal   r3.Vector
	Color    color.NRGBA
}

// RGB255 returns the color components of the point.
func (p Point) RGB255() (uint8, uint8, uint8) {
	return p.Color.R, p.Color.G, p.Color.B
}

// PointCloud is an ordered sequence of points.
type PointCloud struct {
	points []Point
}

// New returns an empty point cloud.
func New() *PointCloud {
	return &PointCloud{}
}

// NewWithPrealloc returns an empty point cloud with room for size points.
func NewWithPrealloc(size int) *PointCloud {
	return &PointCloud{points: make([]Point, 0, size)}
}

// NewFromPoints returns a point cloud holding a copy of pts.
func NewFromPoints(pts []Point) *PointCloud {
	return &PointCloud{points: append([]Point(nil), pts...)}
}

// Concat returns a new cloud holding the points of every cloud in order. Nil clouds are
// skipped.
func Concat(clouds ...*PointCloud) *PointCloud {
	total := 0
	for _, c := range clouds {
		total += c.Size()
	}
	out := NewWithPrealloc(total)
	for _, c := range clouds {
		if c != nil {
			out.points = append(out.points, c.points...)
		}
	}
	return out
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	if pc == nil {
		return 0
	}
	return len(pc.points)
}

// Append adds a point at the end of the cloud.
func (pc *PointCloud) Append(p Point) {
	pc.points = append(pc.points, p)
}

// At returns the i-th point.
func (pc *PointCloud) At(i int) Point {
	return pc.points[i]
}

// Points returns a copy of the points.
func (pc *PointCloud) Points() []Point {
	if pc == nil {
		return nil
	}
	return append([]Point(nil), pc.points...)
}

// Iterate calls fn for each point in order until fn returns false.
func (pc *PointCloud) Iterate(fn func(i int, p Point) bool) {
	if pc == nil {
		return
	}
	for i, p := range pc.points {
		if !fn(i, p) {
			return
		}
	}
}

// Bounds returns the axis-aligned box around all point positions.
func (pc *PointCloud) Bounds() spatialmath.Box {
	b := spatialmath.NewEmptyBox()
	pc.Iterate(func(_ int, p Point) bool {
		b = b.Extend(p.Position)
		return true
	})
	return b
}

// PointWidth returns the uniform display width for the points: the bounds diagonal divided
// by the cube root of the point count. An empty cloud has width 0.
func (pc *PointCloud) PointWidth() float64 {
	n := pc.Size()
	if n == 0 {
		return 0
	}
	return pc.Bounds().Diagonal() / math.Cbrt(float64(n))
}

// Positions returns the point positions in order.
func (pc *PointCloud) Positions() []r3.Vector {
	out := make([]r3.Vector, 0, pc.Size())
	pc.Iterate(func(_ int, p Point) bool {
		out = append(out, p.Position)
		return true
	})
	return out
}

// Normals returns the point normals in order.
func (pc *PointCloud) Normals() []r3.Vector {
	out := make([]r3.Vector, 0, pc.Size())
	pc.Iterate(func(_ int, p Point) bool {
		out = append(out, p.Normal)
		return true
	})
	return out
}

// DisplayColors returns the point colors scaled to [0,1], in order.
func (pc *PointCloud) DisplayColors() []r3.Vector {
	out := make([]r3.Vector, 0, pc.Size())
	pc.Iterate(func(_ int, p Point) bool {
		r, g, b := p.RGB255()
		out = append(out, r3.Vector{X: float64(r) / 255, Y: float64(g) / 255, Z: float64(b) / 255})
		return true
	})
	return out
}
