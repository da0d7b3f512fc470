// Package camerarig positions a camera on an orbit around an asset.
//
// The rig is two nested transform prims with the camera as a leaf. The outer prim sits at
// the asset center and turns about the stage up axis (azimuth), the inner prim tilts about
// X (elevation), and the camera is pushed back along its local Z so it looks at the center.
package camerarig

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/spatialmath"
	"go.viam.com/pcgen/viewplan"
)

// Default prim paths of the rig.
const (
	DefaultOuterPath  = "/World/CameraRig1"
	DefaultInnerPath  = "/World/CameraRig1/CameraRig2"
	DefaultCameraPath = "/World/CameraRig1/CameraRig2/Camera"
)

// Rig names the prims making up a camera rig.
type Rig struct {
	OuterPath  string
	InnerPath  string
	CameraPath string
}

// DefaultRig returns the rig at the default paths.
func DefaultRig() Rig {
	return Rig{OuterPath: DefaultOuterPath, InnerPath: DefaultInnerPath, CameraPath: DefaultCameraPath}
}

// Define creates the rig prims in the scene.
func (r Rig) Define(scene host.SceneGraph) error {
	if err := scene.DefinePrim(r.OuterPath, host.PrimXform); err != nil {
		return errors.Wrap(err, "defining outer rig")
	}
	if err := scene.DefinePrim(r.InnerPath, host.PrimXform); err != nil {
		return errors.Wrap(err, "defining inner rig")
	}
	if err := scene.DefinePrim(r.CameraPath, host.PrimCamera); err != nil {
		return errors.Wrap(err, "defining camera")
	}
	return nil
}

// Pose is a complete set of rig transforms for one viewpoint.
type Pose struct {
	Outer  []spatialmath.XformOp
	Inner  []spatialmath.XformOp
	Camera []spatialmath.XformOp

	Center   r3.Vector
	Distance float64
	// Degenerate is set when the bounds were empty or had no extent. The camera then sits
	// at the bounds center.
	Degenerate bool
}

// PoseFor frames bounds from the given viewpoint. The camera distance is the bounds diagonal
// times distanceMultiplier. Rotation about the up axis uses Z when upAxis is Z and Y otherwise.
func PoseFor(bounds spatialmath.Box, vp viewplan.Viewpoint, upAxis spatialmath.Axis, distanceMultiplier float64) Pose {
	mid := bounds.Midpoint()
	distance := bounds.Size().Norm() * distanceMultiplier

	azAxis := spatialmath.AxisY
	if upAxis == spatialmath.AxisZ {
		azAxis = spatialmath.AxisZ
	}
	return Pose{
		Outer: []spatialmath.XformOp{
			spatialmath.Translate(mid),
			spatialmath.RotateAbout(azAxis, vp.Azimuth),
		},
		Inner:      []spatialmath.XformOp{spatialmath.RotateAbout(spatialmath.AxisX, vp.Elevation)},
		Camera:     []spatialmath.XformOp{spatialmath.Translate(r3.Vector{Z: distance})},
		Center:     mid,
		Distance:   distance,
		Degenerate: bounds.IsDegenerate(),
	}
}

// Apply replaces the transform stacks of the rig prims with the pose.
func (r Rig) Apply(scene host.SceneGraph, pose Pose) error {
	for _, step := range []struct {
		path string
		ops  []spatialmath.XformOp
	}{
		{r.OuterPath, pose.Outer},
		{r.InnerPath, pose.Inner},
		{r.CameraPath, pose.Camera},
	} {
		if err := scene.SetXformOps(step.path, step.ops); err != nil {
			return errors.Wrapf(err, "posing %s", step.path)
		}
	}
	return nil
}
