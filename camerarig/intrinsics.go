package camerarig

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"go.viam.com/pcgen/host"
)

const (
	// DefaultFOVMultiplier scales the focal length set up by SetupCamera.
	DefaultFOVMultiplier = 4 * 0.5
	// DefaultDistanceMultiplier scales the camera distance relative to the asset diagonal.
	DefaultDistanceMultiplier = 4 * 1.0

	baseFOVDegrees = 60.0
)

// DefaultClippingRange is the near and far clipping distance set up by SetupCamera.
var DefaultClippingRange = [2]float64{0.1, 10000}

// Intrinsics are the pinhole parameters of a camera prim. Apertures and focal length share
// a unit, so only their ratios matter.
type Intrinsics struct {
	HorizontalAperture float64
	VerticalAperture   float64
	FocalLength        float64
	ClippingRange      [2]float64
}

// HorizontalFOV returns the horizontal field of view in radians.
func (in Intrinsics) HorizontalFOV() float64 {
	return 2 * math.Atan(in.HorizontalAperture/in.FocalLength/2)
}

// VerticalFOV returns the vertical field of view in radians.
func (in Intrinsics) VerticalFOV() float64 {
	return 2 * math.Atan(in.VerticalAperture/in.FocalLength/2)
}

// SetupCamera configures the camera prim for a width x height capture and returns the
// resulting intrinsics. The horizontal aperture is kept as found on the prim.
func SetupCamera(scene host.SceneGraph, cameraPath string, width, height int, fovMultiplier float64) (Intrinsics, error) {
	if width <= 0 || height <= 0 {
		return Intrinsics{}, errors.Errorf("invalid resolution %dx%d", width, height)
	}
	hAperture, err := floatAttribute(scene, cameraPath, host.AttrHorizontalAperture)
	if err != nil {
		return Intrinsics{}, err
	}
	in := Intrinsics{
		HorizontalAperture: hAperture,
		VerticalAperture:   hAperture * float64(width) / float64(height),
		FocalLength:        hAperture / math.Tan(mgl64.DegToRad(baseFOVDegrees/2)) * fovMultiplier,
		ClippingRange:      DefaultClippingRange,
	}
	for name, value := range map[string]interface{}{
		host.AttrVerticalAperture: in.VerticalAperture,
		host.AttrFocalLength:      in.FocalLength,
		host.AttrClippingRange:    in.ClippingRange,
	} {
		if err := scene.SetAttribute(cameraPath, name, value); err != nil {
			return Intrinsics{}, errors.Wrapf(err, "setting %s", name)
		}
	}
	return in, nil
}

// ReadIntrinsics reads the current intrinsics of a camera prim.
func ReadIntrinsics(scene host.SceneGraph, cameraPath string) (Intrinsics, error) {
	var in Intrinsics
	var err error
	if in.HorizontalAperture, err = floatAttribute(scene, cameraPath, host.AttrHorizontalAperture); err != nil {
		return Intrinsics{}, err
	}
	if in.VerticalAperture, err = floatAttribute(scene, cameraPath, host.AttrVerticalAperture); err != nil {
		return Intrinsics{}, err
	}
	if in.FocalLength, err = floatAttribute(scene, cameraPath, host.AttrFocalLength); err != nil {
		return Intrinsics{}, err
	}
	raw, err := scene.GetAttribute(cameraPath, host.AttrClippingRange)
	if err != nil {
		return Intrinsics{}, err
	}
	switch v := raw.(type) {
	case [2]float64:
		in.ClippingRange = v
	case []float64:
		if len(v) != 2 {
			return Intrinsics{}, errors.Errorf("clipping range has %d values", len(v))
		}
		in.ClippingRange = [2]float64{v[0], v[1]}
	default:
		return Intrinsics{}, errors.Errorf("clipping range has unexpected type %T", raw)
	}
	return in, nil
}

// ReadExtrinsics returns the camera-to-world transform of a camera prim at time 0.
func ReadExtrinsics(scene host.SceneGraph, cameraPath string) (mgl64.Mat4, error) {
	m, err := scene.LocalToWorld(cameraPath, 0)
	if err != nil {
		return mgl64.Mat4{}, errors.Wrapf(err, "reading transform of %s", cameraPath)
	}
	return m, nil
}

func floatAttribute(scene host.SceneGraph, path, name string) (float64, error) {
	raw, err := scene.GetAttribute(path, name)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Errorf("attribute %s of %s has unexpected type %T", name, path, raw)
	}
}
