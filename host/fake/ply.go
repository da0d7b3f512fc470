package fake

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcgen/spatialmath"
)

// ReadPLYFile loads an ascii PLY mesh from disk.
func ReadPLYFile(path string) (*spatialmath.Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	mesh, err := ReadPLY(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return mesh, nil
}

// ReadPLY loads an ascii PLY mesh. Polygons are fan triangulated. Per-vertex red, green
// and blue properties, when present, are averaged into a color per triangle.
func ReadPLY(r io.Reader) (mesh *spatialmath.Mesh, err error) {
	// goply reports malformed input by panicking.
	defer func() {
		if rec := recover(); rec != nil {
			mesh = nil
			err = errors.Errorf("invalid ply: %v", rec)
		}
	}()

	ply := goply.New(r)
	vertices := ply.Elements("vertex")
	faces := ply.Elements("face")
	if len(vertices) == 0 || len(faces) == 0 {
		return nil, errors.New("ply has no faces")
	}

	points := make([]r3.Vector, len(vertices))
	var colors []color.NRGBA
	if _, ok := vertices[0]["red"]; ok {
		colors = make([]color.NRGBA, len(vertices))
	}
	for i, v := range vertices {
		var p [3]float64
		for j, name := range []string{"x", "y", "z"} {
			if p[j], err = plyNumber(v[name]); err != nil {
				return nil, errors.Wrapf(err, "vertex %d %s", i, name)
			}
		}
		points[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
		if colors != nil {
			var c [3]float64
			for j, name := range []string{"red", "green", "blue"} {
				if c[j], err = plyNumber(v[name]); err != nil {
					return nil, errors.Wrapf(err, "vertex %d %s", i, name)
				}
			}
			colors[i] = color.NRGBA{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2]), A: 255}
		}
	}

	var tris []*spatialmath.Triangle
	var triColors []color.NRGBA
	for fi, face := range faces {
		raw, ok := face["vertex_indices"].([]interface{})
		if !ok {
			raw, ok = face["vertex_index"].([]interface{})
		}
		if !ok || len(raw) < 3 {
			return nil, errors.Errorf("face %d has no usable vertex list", fi)
		}
		idx := make([]int, len(raw))
		for k, rv := range raw {
			n, err := plyNumber(rv)
			if err != nil {
				return nil, errors.Wrapf(err, "face %d", fi)
			}
			idx[k] = int(n)
			if idx[k] < 0 || idx[k] >= len(points) {
				return nil, errors.Errorf("face %d references vertex %d of %d", fi, idx[k], len(points))
			}
		}
		for k := 1; k+1 < len(idx); k++ {
			a, b, c := idx[0], idx[k], idx[k+1]
			tris = append(tris, spatialmath.NewTriangle(points[a], points[b], points[c]))
			if colors != nil {
				triColors = append(triColors, averageColor(colors[a], colors[b], colors[c]))
			}
		}
	}
	return spatialmath.NewMesh(tris, triColors), nil
}

func plyNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int8:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unexpected ply value %v (%T)", v, v)
	}
}

func averageColor(cs ...color.NRGBA) color.NRGBA {
	var r, g, b int
	for _, c := range cs {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
	}
	n := len(cs)
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 255}
}
