// Package fake is an in-process host for pcgen: an in-memory scene graph, a ray-casting
// renderer, a PLY asset loader, a clock-driven frame scheduler and a settings store. It is
// used by tests and by the pcgen command.
package fake

import (
	"sort"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/spatialmath"
)

// Attribute values given to a newly defined camera prim.
var cameraDefaults = map[string]interface{}{
	host.AttrHorizontalAperture: 20.955,
	host.AttrVerticalAperture:   15.2908,
	host.AttrFocalLength:        50.0,
	host.AttrClippingRange:      [2]float64{1, 1000000},
}

type prim struct {
	typ   string
	attrs map[string]interface{}
	ops   []spatialmath.XformOp
	mesh  *spatialmath.Mesh
}

// Scene is an in-memory scene graph.
type Scene struct {
	mu        sync.RWMutex
	defaultUp spatialmath.Axis
	upAxis    spatialmath.Axis
	prims     map[string]*prim
	stages    int
}

// NewScene returns an empty scene. New stages start with the given up axis.
func NewScene(defaultUp spatialmath.Axis) *Scene {
	return &Scene{
		defaultUp: defaultUp,
		upAxis:    defaultUp,
		prims:     map[string]*prim{},
	}
}

func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") || path == "/" || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return errors.Errorf("invalid prim path %q", path)
	}
	return nil
}

// ancestors returns the paths from the top-level prim down to path, inclusive.
func ancestors(path string) []string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, "/"+strings.Join(parts[:i+1], "/"))
	}
	return out
}

func isUnder(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// NewStage drops every prim and resets the up axis.
func (s *Scene) NewStage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prims = map[string]*prim{}
	s.upAxis = s.defaultUp
	s.stages++
	return nil
}

// Stages returns how many stages have been created.
func (s *Scene) Stages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stages
}

// DefinePrim creates the prim and any missing ancestors. Redefining an existing prim keeps
// its attributes and only sets its type.
func (s *Scene) DefinePrim(path, primType string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ancestors(path) {
		if _, ok := s.prims[p]; !ok {
			s.prims[p] = &prim{attrs: map[string]interface{}{}}
		}
	}
	pr := s.prims[path]
	if primType != "" {
		pr.typ = primType
	}
	if primType == host.PrimCamera {
		for k, v := range cameraDefaults {
			if _, ok := pr.attrs[k]; !ok {
				pr.attrs[k] = v
			}
		}
	}
	return nil
}

// RemovePrim removes a prim and its descendants.
func (s *Scene) RemovePrim(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prims[path]; !ok {
		return host.NewPrimNotFoundError(path)
	}
	for p := range s.prims {
		if isUnder(p, path) {
			delete(s.prims, p)
		}
	}
	return nil
}

// HasPrim reports whether a prim exists.
func (s *Scene) HasPrim(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.prims[path]
	return ok
}

// PrimType returns the type of a prim.
func (s *Scene) PrimType(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.prims[path]
	if !ok {
		return "", host.NewPrimNotFoundError(path)
	}
	return pr.typ, nil
}

// GetAttribute returns an attribute value.
func (s *Scene) GetAttribute(path, name string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.prims[path]
	if !ok {
		return nil, host.NewPrimNotFoundError(path)
	}
	v, ok := pr.attrs[name]
	if !ok {
		return nil, host.NewAttributeNotFoundError(path, name)
	}
	return v, nil
}

// SetAttribute sets an attribute value, creating the attribute if needed.
func (s *Scene) SetAttribute(path, name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.prims[path]
	if !ok {
		return host.NewPrimNotFoundError(path)
	}
	pr.attrs[name] = value
	return nil
}

// SetXformOps replaces the transform ops of a prim.
func (s *Scene) SetXformOps(path string, ops []spatialmath.XformOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.prims[path]
	if !ok {
		return host.NewPrimNotFoundError(path)
	}
	pr.ops = append([]spatialmath.XformOp(nil), ops...)
	return nil
}

// XformOps returns the transform ops of a prim.
func (s *Scene) XformOps(path string) ([]spatialmath.XformOp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.prims[path]
	if !ok {
		return nil, host.NewPrimNotFoundError(path)
	}
	return append([]spatialmath.XformOp(nil), pr.ops...), nil
}

// SetMesh attaches geometry to a prim, in the prim's local frame.
func (s *Scene) SetMesh(path string, mesh *spatialmath.Mesh) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.prims[path]
	if !ok {
		return host.NewPrimNotFoundError(path)
	}
	pr.mesh = mesh
	return nil
}

// LocalToWorld returns the composed transform of the prim and its ancestors. Transforms
// are not animated, so the time code is ignored.
func (s *Scene) LocalToWorld(path string, _ float64) (mgl64.Mat4, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localToWorld(path)
}

func (s *Scene) localToWorld(path string) (mgl64.Mat4, error) {
	if _, ok := s.prims[path]; !ok {
		return mgl64.Mat4{}, host.NewPrimNotFoundError(path)
	}
	m := mgl64.Ident4()
	for _, p := range ancestors(path) {
		m = m.Mul4(spatialmath.ComposeOps(s.prims[p].ops))
	}
	return m, nil
}

// ComputeWorldBounds returns the world box of all geometry at or under path. A prim
// without geometry has an empty box.
func (s *Scene) ComputeWorldBounds(path string) (spatialmath.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.prims[path]; !ok {
		return spatialmath.Box{}, host.NewPrimNotFoundError(path)
	}
	bounds := spatialmath.NewEmptyBox()
	for p, pr := range s.prims {
		if pr.mesh == nil || !isUnder(p, path) {
			continue
		}
		tf, err := s.localToWorld(p)
		if err != nil {
			return spatialmath.Box{}, err
		}
		bounds = bounds.Union(pr.mesh.Transform(tf).Bounds())
	}
	return bounds, nil
}

// UpAxis returns the stage up axis.
func (s *Scene) UpAxis() spatialmath.Axis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upAxis
}

// SetUpAxis sets the stage up axis.
func (s *Scene) SetUpAxis(axis spatialmath.Axis) error {
	if axis != spatialmath.AxisY && axis != spatialmath.AxisZ {
		return errors.Errorf("up axis must be Y or Z, got %s", axis)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upAxis = axis
	return nil
}

// worldMesh is a mesh moved into world space together with its instance id. Id 0 marks
// geometry without a semantic label, which segments as background.
type worldMesh struct {
	path     string
	instance uint32
	mesh     *spatialmath.Mesh
	bounds   spatialmath.Box
}

func (s *Scene) labeled(path string) bool {
	for _, p := range ancestors(path) {
		if _, ok := s.prims[p].attrs[host.AttrSemanticData]; ok {
			return true
		}
	}
	return false
}

// worldMeshes returns every mesh in world space, ordered by path.
func (s *Scene) worldMeshes() ([]worldMesh, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.prims))
	for p, pr := range s.prims {
		if pr.mesh != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make([]worldMesh, 0, len(paths))
	next := uint32(1)
	for _, p := range paths {
		tf, err := s.localToWorld(p)
		if err != nil {
			return nil, err
		}
		wm := worldMesh{path: p, mesh: s.prims[p].mesh.Transform(tf)}
		wm.bounds = wm.mesh.Bounds()
		if s.labeled(p) {
			wm.instance = next
			next++
		}
		out = append(out, wm)
	}
	return out, nil
}
