package overlay

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// OverlayFeature returns the bounding-box polygon as a GeoJSON feature with
// its area, perimeter and tooltip labels as properties.
func OverlayFeature(bounds BoundingBox, metrics PolygonMetrics) *geojson.Feature {
	ring := make(orb.Ring, 0, 5)
	for _, p := range bounds.Ring() {
		ring = append(ring, p.Orb())
	}

	f := geojson.NewFeature(orb.Polygon{ring})
	f.ID = "overlay"
	f.Properties["kind"] = "overlay"
	f.Properties["areaSquareMeters"] = metrics.AreaSquareMeters
	f.Properties["perimeterKilometers"] = metrics.PerimeterKilometers
	f.Properties["areaLabel"] = FormatArea(metrics)
	f.Properties["perimeterLabel"] = FormatPerimeter(metrics)
	return f
}

// PlacementFeature returns a robot placement as a GeoJSON point feature.
// Pixel position and heading are kept as properties for popups.
func PlacementFeature(p PlacedEntity) *geojson.Feature {
	f := geojson.NewFeature(p.Geo.Orb())
	f.ID = p.ID
	f.Properties["kind"] = "robot"
	f.Properties["id"] = p.ID
	f.Properties["heading"] = p.Heading
	f.Properties["pixelX"] = p.Position.X
	f.Properties["pixelY"] = p.Position.Y
	return f
}

// OverlayCollection builds the FeatureCollection the map view consumes: the
// overlay polygon first, then one point per placement in snapshot order.
func OverlayCollection(bounds BoundingBox, metrics PolygonMetrics, placements []PlacedEntity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(OverlayFeature(bounds, metrics))
	for _, p := range placements {
		fc.Append(PlacementFeature(p))
	}
	return fc
}
