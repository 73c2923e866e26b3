package overlay

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// ComputeMetrics returns the spherical area (m²) and perimeter (km) of a ring.
//
// The ring is closed by repeating its first vertex when the last vertex
// differs. Closure is detected from the endpoints, so closed may be false for
// a ring that already repeats its first vertex. A ring with fewer than 3
// distinct vertices fails with ErrDegeneratePolygon.
func ComputeMetrics(ring []GeoPoint, closed bool) (PolygonMetrics, error) {
	r, err := closedRing(ring)
	if err != nil {
		return PolygonMetrics{}, err
	}

	perimeter := 0.0
	for i := 0; i < len(r)-1; i++ {
		perimeter += geo.DistanceHaversine(r[i], r[i+1])
	}

	return PolygonMetrics{
		AreaSquareMeters:    math.Abs(geo.Area(orb.Polygon{r})),
		PerimeterKilometers: perimeter / 1000,
	}, nil
}

// BoundsMetrics computes the metrics of the overlay rectangle
func BoundsMetrics(b BoundingBox) (PolygonMetrics, error) {
	return ComputeMetrics(b.Ring(), true)
}

// RectangleMetrics is the closed-form size of a latitude/longitude rectangle
// on a sphere of radius orb.EarthRadius. The area is exact for the rectangle;
// the east-west edges are measured along their parallels.
func RectangleMetrics(b BoundingBox) PolygonMetrics {
	const rad = math.Pi / 180
	r := orb.EarthRadius

	phi1 := b.SouthWest.Lat * rad
	phi2 := b.NorthEast.Lat * rad
	dLambda := (b.NorthEast.Lng - b.SouthWest.Lng) * rad

	area := r * r * math.Abs(dLambda) * math.Abs(math.Sin(phi2)-math.Sin(phi1))

	height := r * math.Abs(phi2-phi1)
	south := r * math.Abs(dLambda) * math.Cos(phi1)
	north := r * math.Abs(dLambda) * math.Cos(phi2)

	return PolygonMetrics{
		AreaSquareMeters:    area,
		PerimeterKilometers: (2*height + south + north) / 1000,
	}
}

// PlanarMetrics approximates the metrics on a local equirectangular plane
// centered on the ring's mean latitude.
func PlanarMetrics(ring []GeoPoint) (PolygonMetrics, error) {
	r, err := closedRing(ring)
	if err != nil {
		return PolygonMetrics{}, err
	}

	const rad = math.Pi / 180
	meanLat := 0.0
	for _, p := range r[:len(r)-1] {
		meanLat += p.Lat()
	}
	meanLat /= float64(len(r) - 1)
	kx := orb.EarthRadius * math.Cos(meanLat*rad) * rad
	ky := orb.EarthRadius * rad

	flat := make(orb.Ring, len(r))
	for i, p := range r {
		flat[i] = orb.Point{p.Lon() * kx, p.Lat() * ky}
	}

	return PolygonMetrics{
		AreaSquareMeters:    math.Abs(planar.Area(flat)),
		PerimeterKilometers: planar.Length(flat) / 1000,
	}, nil
}

// FormatArea renders the area the way the overlay tooltip shows it
func FormatArea(m PolygonMetrics) string {
	return fmt.Sprintf("Area: %.2f km²", m.AreaSquareMeters/1e6)
}

// FormatPerimeter renders the perimeter the way the overlay tooltip shows it
func FormatPerimeter(m PolygonMetrics) string {
	return fmt.Sprintf("Perimeter: %.2f km", m.PerimeterKilometers)
}

// closedRing validates the vertices and returns an orb.Ring whose last point
// equals its first.
func closedRing(ring []GeoPoint) (orb.Ring, error) {
	open := ring
	if n := len(open); n > 1 && open[0] == open[n-1] {
		open = open[:n-1]
	}

	distinct := make(map[GeoPoint]struct{}, len(open))
	for i, p := range open {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: vertex %d (%v, %v) is not a valid coordinate",
				ErrInvalidConfiguration, i, p.Lat, p.Lng)
		}
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil, fmt.Errorf("%w: ring has %d distinct vertices, need at least 3",
			ErrDegeneratePolygon, len(distinct))
	}

	r := make(orb.Ring, 0, len(open)+1)
	for _, p := range open {
		r = append(r, p.Orb())
	}
	r = append(r, open[0].Orb())
	return r, nil
}
