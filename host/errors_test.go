package host

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestIsTransient(t *testing.T) {
	err := NewTransientSensorError(SensorNormal, errors.New("stale"))
	test.That(t, IsTransient(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldEqual, "sensor normals not ready: stale")

	wrapped := errors.Wrap(err, "fetch")
	test.That(t, IsTransient(wrapped), test.ShouldBeTrue)
	test.That(t, IsTransient(errors.New("disk on fire")), test.ShouldBeFalse)
	test.That(t, IsTransient(nil), test.ShouldBeFalse)
}

func TestStageEventFailure(t *testing.T) {
	for _, ev := range []StageEvent{StageOpenFailed, StageAssetsLoadAborted, StageClosing, StageClosed} {
		test.That(t, ev.IsFailure(), test.ShouldBeTrue)
	}
	test.That(t, StageAssetsLoaded.IsFailure(), test.ShouldBeFalse)
	test.That(t, StageOpened.IsFailure(), test.ShouldBeFalse)
	test.That(t, StageAssetsLoadAborted.String(), test.ShouldEqual, "ASSETS_LOAD_ABORTED")
}
