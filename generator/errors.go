package generator

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	// ErrReconstructionFailed is returned when a viewpoint could not be captured.
	ErrReconstructionFailed = errors.New("reconstruction failed")
	// ErrAssetLoadTimeout is returned when the asset did not load within the load timeout.
	ErrAssetLoadTimeout = errors.New("asset load timed out")
	// ErrAssetLoadAborted is returned when the loader reports a failed or interrupted load.
	ErrAssetLoadAborted = errors.New("asset load aborted")
	// ErrBusy is returned when a run is started while another is in progress.
	ErrBusy = errors.New("a reconstruction is already running")
)

// reconstructionFailed marks cause as a viewpoint failure. Both ErrReconstructionFailed and
// cause stay matchable with errors.Is.
func reconstructionFailed(cause error, format string, args ...interface{}) error {
	return multierr.Combine(errors.Wrapf(ErrReconstructionFailed, format, args...), cause)
}
