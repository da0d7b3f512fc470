package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Triangle is a single mesh face with its precomputed unit normal. Winding is
// counter-clockwise about the normal.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle returns the triangle p0, p1, p2.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// PlaneNormal returns the unit normal of the plane through three points, or the zero
// vector when they are collinear.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if norm := n.Norm(); norm > 0 {
		return n.Mul(1 / norm)
	}
	return r3.Vector{}
}

// Points returns the triangle corners.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Transform returns the triangle moved by m.
func (t *Triangle) Transform(m mgl64.Mat4) *Triangle {
	return NewTriangle(TransformPoint(m, t.p0), TransformPoint(m, t.p1), TransformPoint(m, t.p2))
}

// IntersectRay returns the ray parameter of the closest hit of origin + s*dir with the
// triangle, for s in (tMin, tMax). Both faces are hit.
func (t *Triangle) IntersectRay(origin, dir r3.Vector, tMin, tMax float64) (float64, bool) {
	const eps = 1e-12
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	p := dir.Cross(e1)
	det := e0.Dot(p)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	s := origin.Sub(t.p0)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e0)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	hit := e1.Dot(q) * inv
	if hit <= tMin || hit >= tMax {
		return 0, false
	}
	return hit, true
}
