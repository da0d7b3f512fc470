package viewplan

import (
	"testing"

	"go.viam.com/test"
)

func TestPlanOrder(t *testing.T) {
	vps := Plan([]float64{0, 90, 180}, []float64{-30, 30})
	test.That(t, vps, test.ShouldResemble, []Viewpoint{
		{Azimuth: 0, Elevation: -30},
		{Azimuth: 90, Elevation: -30},
		{Azimuth: 180, Elevation: -30},
		{Azimuth: 0, Elevation: 30},
		{Azimuth: 90, Elevation: 30},
		{Azimuth: 180, Elevation: 30},
	})
}

func TestPlanCardinality(t *testing.T) {
	test.That(t, Default(), test.ShouldHaveLength, 12)
	test.That(t, Default()[0], test.ShouldResemble, Viewpoint{Azimuth: 45, Elevation: -60})
	test.That(t, Default()[11], test.ShouldResemble, Viewpoint{Azimuth: 315, Elevation: 60})

	// duplicates are not removed
	test.That(t, Plan([]float64{10, 10}, []float64{0, 0}), test.ShouldHaveLength, 4)

	test.That(t, Plan(nil, []float64{0}), test.ShouldBeEmpty)
	test.That(t, Plan([]float64{0}, nil), test.ShouldBeEmpty)
}

func TestViewpointString(t *testing.T) {
	test.That(t, Viewpoint{Azimuth: 45, Elevation: -60}.String(), test.ShouldEqual, "az=45 el=-60")
}
