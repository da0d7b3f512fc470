// Package viewplan enumerates the camera viewpoints used to capture an asset.
package viewplan

import (
	"fmt"

	"github.com/samber/lo"
)

var (
	// DefaultAzimuths are the azimuths, in degrees, used when none are configured.
	DefaultAzimuths = []float64{45, 135, 225, 315}
	// DefaultElevations are the elevations, in degrees, used when none are configured.
	DefaultElevations = []float64{-60, 0, 60}
)

// Viewpoint is a camera direction around the asset, in degrees.
type Viewpoint struct {
	Azimuth   float64
	Elevation float64
}

func (vp Viewpoint) String() string {
	return fmt.Sprintf("az=%g el=%g", vp.Azimuth, vp.Elevation)
}

// Plan returns one viewpoint per (elevation, azimuth) pair, elevations in the outer loop.
// Duplicates are kept. An empty input yields an empty plan.
func Plan(azimuths, elevations []float64) []Viewpoint {
	return lo.FlatMap(elevations, func(el float64, _ int) []Viewpoint {
		return lo.Map(azimuths, func(az float64, _ int) Viewpoint {
			return Viewpoint{Azimuth: az, Elevation: el}
		})
	})
}

// Default returns the plan over DefaultAzimuths and DefaultElevations.
func Default() []Viewpoint {
	return Plan(DefaultAzimuths, DefaultElevations)
}
