package reconstruct

import (
	"github.com/pkg/errors"

	"go.viam.com/pcgen/host"
)

// FromSensorOutputs assembles frame buffers from fetched sensor outputs. The mask keeps
// every pixel with a nonzero instance id.
func FromSensorOutputs(outputs map[host.Sensor]*host.SensorOutput) (FrameBuffers, error) {
	for _, s := range host.RequiredSensors {
		if outputs[s] == nil {
			return FrameBuffers{}, errors.Errorf("missing %s output", s)
		}
	}
	depth := outputs[host.SensorDepthLinear]
	fb := FrameBuffers{
		Width:  depth.Width,
		Height: depth.Height,
		Depth:  depth.Float32,
		Normal: outputs[host.SensorNormal].Float32,
		Color:  outputs[host.SensorColor].Uint8,
	}
	for _, s := range host.RequiredSensors {
		if out := outputs[s]; out.Width != fb.Width || out.Height != fb.Height {
			return FrameBuffers{}, errors.Wrapf(ErrBufferShape, "%s is %dx%d, depth is %dx%d",
				s, out.Width, out.Height, fb.Width, fb.Height)
		}
	}
	instances := outputs[host.SensorInstanceSegmentation].Instance
	fb.Mask = make([]bool, len(instances))
	for i, id := range instances {
		fb.Mask[i] = id != 0
	}
	return fb, nil
}
