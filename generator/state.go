package generator

// State is the capture state of one viewpoint.
type State int

// Viewpoint capture states, in the order they are normally visited.
const (
	StatePositioning State = iota
	StateRendering
	StateAwaitingSensors
	StateReconstructing
	StateRetrying
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePositioning:
		return "Positioning"
	case StateRendering:
		return "Rendering"
	case StateAwaitingSensors:
		return "AwaitingSensors"
	case StateReconstructing:
		return "Reconstructing"
	case StateRetrying:
		return "Retrying"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}
