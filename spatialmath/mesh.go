package spatialmath

import (
	"image/color"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Mesh is a triangle soup with an optional color per triangle.
type Mesh struct {
	triangles []*Triangle
	colors    []color.NRGBA
}

// NewMesh returns a mesh of the given triangles. colors is either empty or has one entry
// per triangle.
func NewMesh(triangles []*Triangle, colors []color.NRGBA) *Mesh {
	if len(colors) != len(triangles) {
		colors = nil
	}
	return &Mesh{triangles: triangles, colors: colors}
}

// Triangles returns the triangles of the mesh.
func (m *Mesh) Triangles() []*Triangle {
	return m.triangles
}

// ColorAt returns the color of the i-th triangle, or mid grey for an uncolored mesh.
func (m *Mesh) ColorAt(i int) color.NRGBA {
	if m.colors == nil {
		return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	}
	return m.colors[i]
}

// Transform returns a copy of the mesh with every triangle moved by tf.
func (m *Mesh) Transform(tf mgl64.Mat4) *Mesh {
	tris := make([]*Triangle, 0, len(m.triangles))
	for _, t := range m.triangles {
		tris = append(tris, t.Transform(tf))
	}
	return &Mesh{triangles: tris, colors: m.colors}
}

// Bounds returns the box around all triangle corners.
func (m *Mesh) Bounds() Box {
	b := NewEmptyBox()
	for _, t := range m.triangles {
		b = b.Extend(t.p0).Extend(t.p1).Extend(t.p2)
	}
	return b
}

// NewBoxMesh returns the 12 triangle mesh of an axis-aligned box with outward facing
// normals.
func NewBoxMesh(b Box, c color.NRGBA) *Mesh {
	corner := func(x, y, z int) r3.Vector {
		pick := func(sel int, lo, hi float64) float64 {
			if sel == 0 {
				return lo
			}
			return hi
		}
		return r3.Vector{X: pick(x, b.Min.X, b.Max.X), Y: pick(y, b.Min.Y, b.Max.Y), Z: pick(z, b.Min.Z, b.Max.Z)}
	}
	quads := [6][4][3]int{
		{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, // -Z
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}, // +Z
		{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, // -Y
		{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, // +Y
		{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}, // -X
		{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, // +X
	}
	tris := make([]*Triangle, 0, 12)
	colors := make([]color.NRGBA, 0, 12)
	for _, q := range quads {
		v := [4]r3.Vector{}
		for i, sel := range q {
			v[i] = corner(sel[0], sel[1], sel[2])
		}
		tris = append(tris, NewTriangle(v[0], v[1], v[2]), NewTriangle(v[0], v[2], v[3]))
		colors = append(colors, c, c)
	}
	return NewMesh(tris, colors)
}
