// Package host declares the capabilities pcgen needs from the application that owns the
// scene: a scene graph, an offscreen renderer with ground-truth sensors, an asset loader,
// a frame scheduler and a settings store. A simulated implementation lives in host/fake.
package host

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"go.viam.com/pcgen/spatialmath"
)

// Prim types understood by pcgen.
const (
	PrimXform     = "Xform"
	PrimCamera    = "Camera"
	PrimDomeLight = "DomeLight"
	PrimPoints    = "Points"
	PrimMesh      = "Mesh"
	PrimScope     = ""
)

// Attribute names read or written by pcgen.
const (
	AttrHorizontalAperture = "horizontalAperture"
	AttrVerticalAperture   = "verticalAperture"
	AttrFocalLength        = "focalLength"
	AttrClippingRange      = "clippingRange"
	AttrIntensity          = "intensity"
	AttrTextureFile        = "texture:file"
	AttrTextureFormat      = "texture:format"
	AttrSemanticType       = "semantic:Semantics:params:semanticType"
	AttrSemanticData       = "semantic:Semantics:params:semanticData"
	AttrPoints             = "points"
	AttrWidths             = "widths"
	AttrDisplayColor       = "primvars:displayColor"
	AttrNormals            = "normals"
)

// SceneGraph is a hierarchical scene of prims addressed by absolute paths like "/World/Object".
type SceneGraph interface {
	// NewStage discards the current scene and starts an empty one.
	NewStage() error
	DefinePrim(path, primType string) error
	RemovePrim(path string) error
	GetAttribute(path, name string) (interface{}, error)
	SetAttribute(path, name string, value interface{}) error
	// SetXformOps replaces the whole transform-op stack of a prim.
	SetXformOps(path string, ops []spatialmath.XformOp) error
	// ComputeWorldBounds returns the world-space box of a prim and its descendants.
	ComputeWorldBounds(path string) (spatialmath.Box, error)
	// LocalToWorld returns the column-vector local-to-world transform of a prim at a time code.
	LocalToWorld(path string, timeCode float64) (mgl64.Mat4, error)
	UpAxis() spatialmath.Axis
	SetUpAxis(axis spatialmath.Axis) error
}

// Sensor is a ground-truth buffer the renderer can produce.
type Sensor int

// Sensors required to reconstruct a point cloud.
const (
	SensorColor Sensor = iota
	SensorDepthLinear
	SensorNormal
	SensorInstanceSegmentation
)

// RequiredSensors are the sensors enabled for every capture.
var RequiredSensors = []Sensor{SensorColor, SensorDepthLinear, SensorNormal, SensorInstanceSegmentation}

func (s Sensor) String() string {
	switch s {
	case SensorColor:
		return "rgb"
	case SensorDepthLinear:
		return "depthLinear"
	case SensorNormal:
		return "normals"
	case SensorInstanceSegmentation:
		return "instanceSegmentation"
	default:
		return "unknown"
	}
}

// View identifies the offscreen viewport a capture is rendered through.
type View struct {
	CameraPath string
	Width      int
	Height     int
}

// SensorOutput is one sensor buffer in row-major order. Exactly one of the data slices is
// populated, depending on the sensor: depth (1/pixel) and normals (3/pixel) in Float32,
// color (RGBA, 4/pixel) in Uint8 and instance ids (1/pixel, 0 is background) in Instance.
type SensorOutput struct {
	Sensor   Sensor
	Width    int
	Height   int
	Float32  []float32
	Uint8    []uint8
	Instance []uint32
}

// SensorService renders captures and hands out their ground-truth buffers.
type SensorService interface {
	EnableSensors(ctx context.Context, view View, sensors []Sensor) error
	// Render requests a capture. The returned channel is closed once the capture's sensors
	// can be fetched.
	Render(ctx context.Context, view View) (<-chan struct{}, error)
	// Fetch returns a sensor buffer of the latest capture. A *TransientSensorError means the
	// buffer was not ready and the sensors should be re-enabled before trying again.
	Fetch(ctx context.Context, view View, sensor Sensor) (*SensorOutput, error)
}

// StageEvent is a notification emitted by the asset loader.
type StageEvent int

// Stage events.
const (
	StageOpened StageEvent = iota
	StageAssetsLoaded
	StageOpenFailed
	StageAssetsLoadAborted
	StageClosing
	StageClosed
)

// IsFailure reports whether the event ends an asset load unsuccessfully.
func (e StageEvent) IsFailure() bool {
	switch e {
	case StageOpenFailed, StageAssetsLoadAborted, StageClosing, StageClosed:
		return true
	case StageOpened, StageAssetsLoaded:
	}
	return false
}

func (e StageEvent) String() string {
	switch e {
	case StageOpened:
		return "OPENED"
	case StageAssetsLoaded:
		return "ASSETS_LOADED"
	case StageOpenFailed:
		return "OPEN_FAILED"
	case StageAssetsLoadAborted:
		return "ASSETS_LOAD_ABORTED"
	case StageClosing:
		return "CLOSING"
	case StageClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// AssetLoader streams referenced asset files into the scene.
type AssetLoader interface {
	// AddReference starts loading filePath under primPath. Loading completes asynchronously.
	AddReference(ctx context.Context, primPath, filePath string) error
	// SubscribeStageEvents returns a channel receiving every stage event emitted after the
	// call, and a function ending the subscription.
	SubscribeStageEvents() (<-chan StageEvent, func())
	// LoadingStatus returns how many of the pending files have been loaded.
	LoadingStatus() (loaded, total int)
}

// Scheduler drives the host's frame loop.
type Scheduler interface {
	// NextUpdate returns after the host has advanced one frame.
	NextUpdate(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Settings is the host's key/value settings store.
type Settings interface {
	Get(key string) (value interface{}, ok bool)
	Set(key string, value interface{}) error
	Unset(key string) error
}

// Services bundles every host capability.
type Services struct {
	Scene     SceneGraph
	Sensors   SensorService
	Loader    AssetLoader
	Scheduler Scheduler
	Settings  Settings
}
