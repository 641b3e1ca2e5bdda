package geom

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects how interaction proximity is measured.
type Metric int

const (
	// MetricSpatial measures full 3D distance, so waypoint height counts.
	MetricSpatial Metric = iota
	// MetricPlanar ignores Y and measures on the X/Z plane only.
	MetricPlanar
)

// Distance measures a to b under m.
func Distance(a, b Vec3, m Metric) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	if m == MetricPlanar {
		return math.Hypot(dx, dz)
	}
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (m Metric) String() string {
	switch m {
	case MetricPlanar:
		return "planar"
	case MetricSpatial:
		return "spatial"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric accepts "spatial"/"3d" and "planar"/"2d". Empty means spatial.
func ParseMetric(raw string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "spatial", "3d":
		return MetricSpatial, nil
	case "planar", "2d":
		return MetricPlanar, nil
	default:
		return MetricSpatial, fmt.Errorf("unknown distance metric %q", raw)
	}
}
