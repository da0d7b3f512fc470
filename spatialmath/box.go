// Package spatialmath defines the small amount of 3D math needed to frame, position and
// back-project cameras: axis-aligned bounding boxes, transform operations and helpers on
// 4x4 homogeneous matrices.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Ordered list of box corner signs.
var boxCorners = [8]r3.Vector{
	{1, 1, 1},
	{1, 1, -1},
	{1, -1, 1},
	{1, -1, -1},
	{-1, 1, 1},
	{-1, 1, -1},
	{-1, -1, 1},
	{-1, -1, -1},
}

// Box is an axis-aligned bounding box. The zero value is a degenerate box at the origin;
// use NewEmptyBox for a box that grows from nothing.
type Box struct {
	Min r3.Vector
	Max r3.Vector

	empty bool
}

// NewEmptyBox returns a box containing no points.
func NewEmptyBox() Box {
	return Box{
		Min:   r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max:   r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
		empty: true,
	}
}

// NewBox returns the box spanned by two corners given in any order.
func NewBox(a, b r3.Vector) Box {
	return Box{
		Min: r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		Max: r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

// BoxFromPoints returns the tightest box around pts.
func BoxFromPoints(pts ...r3.Vector) Box {
	b := NewEmptyBox()
	for _, pt := range pts {
		b = b.Extend(pt)
	}
	return b
}

// IsEmpty reports whether the box contains no points at all.
func (b Box) IsEmpty() bool {
	return b.empty
}

// IsDegenerate reports whether the box is empty or has zero extent along every axis.
func (b Box) IsDegenerate() bool {
	return b.empty || b.Size().Norm() == 0
}

// Extend returns a box that also contains pt.
func (b Box) Extend(pt r3.Vector) Box {
	if b.empty {
		return Box{Min: pt, Max: pt}
	}
	return Box{
		Min: r3.Vector{X: math.Min(b.Min.X, pt.X), Y: math.Min(b.Min.Y, pt.Y), Z: math.Min(b.Min.Z, pt.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, pt.X), Y: math.Max(b.Max.Y, pt.Y), Z: math.Max(b.Max.Z, pt.Z)},
	}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	switch {
	case other.empty:
		return b
	case b.empty:
		return other
	}
	return b.Extend(other.Min).Extend(other.Max)
}

// Midpoint returns the center of the box. An empty box has its center at the origin.
func (b Box) Midpoint() r3.Vector {
	if b.empty {
		return r3.Vector{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extents of the box along each axis.
func (b Box) Size() r3.Vector {
	if b.empty {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}

// Diagonal returns the length of the box diagonal.
func (b Box) Diagonal() float64 {
	return b.Size().Norm()
}

// Corners returns the eight corners of the box.
func (b Box) Corners() [8]r3.Vector {
	var out [8]r3.Vector
	mid := b.Midpoint()
	half := b.Size().Mul(0.5)
	for i, sign := range boxCorners {
		out[i] = mid.Add(r3.Vector{X: sign.X * half.X, Y: sign.Y * half.Y, Z: sign.Z * half.Z})
	}
	return out
}

// Transform returns the axis-aligned box enclosing this box after applying m.
func (b Box) Transform(m mgl64.Mat4) Box {
	if b.empty {
		return b
	}
	out := NewEmptyBox()
	for _, c := range b.Corners() {
		out = out.Extend(TransformPoint(m, c))
	}
	return out
}

// Contains reports whether pt lies inside or on the box.
func (b Box) Contains(pt r3.Vector) bool {
	if b.empty {
		return false
	}
	return pt.X >= b.Min.X && pt.X <= b.Max.X &&
		pt.Y >= b.Min.Y && pt.Y <= b.Max.Y &&
		pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}

// IntersectRay returns the entry distance of the ray origin+t*dir into the box, and
// whether it hits at all for some t in [tMin, tMax].
func (b Box) IntersectRay(origin, dir r3.Vector, tMin, tMax float64) (float64, bool) {
	if b.empty {
		return 0, false
	}
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}
	for axis := 0; axis < 3; axis++ {
		if d[axis] == 0 {
			if o[axis] < lo[axis] || o[axis] > hi[axis] {
				return 0, false
			}
			continue
		}
		inv := 1 / d[axis]
		t0 := (lo[axis] - o[axis]) * inv
		t1 := (hi[axis] - o[axis]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = math.Max(tMin, t0)
		tMax = math.Min(tMax, t1)
		if tMax < tMin {
			return 0, false
		}
	}
	return tMin, true
}

func (b Box) String() string {
	if b.empty {
		return "Box{empty}"
	}
	return fmt.Sprintf("Box{min: %v, max: %v}", b.Min, b.Max)
}
