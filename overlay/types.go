package overlay

import (
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint is a WGS84 latitude/longitude pair in degrees
type GeoPoint struct {
	Lat float64 `yaml:"lat" json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `yaml:"lng" json:"lng" validate:"gte=-180,lte=180"`
}

// Orb returns the point in orb's (lon, lat) order
func (g GeoPoint) Orb() orb.Point {
	return orb.Point{g.Lng, g.Lat}
}

// Valid reports whether the point is finite and inside the WGS84 ranges
func (g GeoPoint) Valid() bool {
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lng) || math.IsInf(g.Lat, 0) || math.IsInf(g.Lng, 0) {
		return false
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}

// BoundingBox is the geographic footprint of the floor-plan image.
// SouthWest is the bottom-left image corner, NorthEast the top-right.
type BoundingBox struct {
	SouthWest GeoPoint `json:"southWest"`
	NorthEast GeoPoint `json:"northEast"`
}

// SouthEast returns the bottom-right corner
func (b BoundingBox) SouthEast() GeoPoint {
	return GeoPoint{Lat: b.SouthWest.Lat, Lng: b.NorthEast.Lng}
}

// NorthWest returns the top-left corner (pixel 0,0)
func (b BoundingBox) NorthWest() GeoPoint {
	return GeoPoint{Lat: b.NorthEast.Lat, Lng: b.SouthWest.Lng}
}

// Center returns the midpoint of the box
func (b BoundingBox) Center() GeoPoint {
	return GeoPoint{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

// Contains reports whether p lies inside the box, edges included
func (b BoundingBox) Contains(p GeoPoint) bool {
	return b.Bound().Contains(p.Orb())
}

// Bound returns the box as an orb.Bound
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Orb(), Max: b.NorthEast.Orb()}
}

// Ring returns the closed overlay polygon: SW, SE, NE, NW, SW.
func (b BoundingBox) Ring() []GeoPoint {
	return []GeoPoint{
		b.SouthWest,
		b.SouthEast(),
		b.NorthEast,
		b.NorthWest(),
		b.SouthWest,
	}
}

// PixelCoordinate addresses a position on the floor-plan image.
// (0,0) is the top-left corner; y grows downward.
type PixelCoordinate struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Finite reports whether both coordinates are real numbers
func (p PixelCoordinate) Finite() bool {
	return finite(p.X) && finite(p.Y)
}

// Entity is a pixel-addressed robot as supplied by the entity feed
type Entity struct {
	ID       string          `json:"id"`
	Position PixelCoordinate `json:"position"`
	Heading  float64         `json:"heading"` // degrees, [0, 360)
}

// PlacedEntity is an Entity with its projected map position
type PlacedEntity struct {
	Entity
	Geo GeoPoint `json:"geo"`
}

// PolygonMetrics holds the real-world size of the overlay polygon
type PolygonMetrics struct {
	AreaSquareMeters    float64 `json:"areaSquareMeters"`
	PerimeterKilometers float64 `json:"perimeterKilometers"`
}

// AffineMatrix for 2D transforms: x' = ax + by + tx, y' = cx + dy + ty
type AffineMatrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	Tx float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Ty float64 `json:"ty"`
}

// Identity returns an identity matrix (no transformation)
func Identity() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: 1, Ty: 0}
}

// OverlayConfig anchors the floor-plan image on the map
type OverlayConfig struct {
	Center              *GeoPoint `yaml:"center" json:"center" validate:"required"`
	ImageWidthPx        int       `yaml:"imageWidthPx" json:"imageWidthPx" validate:"gt=0"`
	ImageHeightPx       int       `yaml:"imageHeightPx" json:"imageHeightPx" validate:"gt=0"`
	LatPixelRatio       float64   `yaml:"latPixelRatio" json:"latPixelRatio" validate:"gt=0"`
	LngPixelRatio       float64   `yaml:"lngPixelRatio" json:"lngPixelRatio" validate:"gt=0"`
	LongitudeCorrection string    `yaml:"longitudeCorrection,omitempty" json:"longitudeCorrection,omitempty" validate:"omitempty,oneof=none cosine"` // "none" (default) or "cosine"
	StrictBounds        bool      `yaml:"strictBounds,omitempty" json:"strictBounds,omitempty"`                                                     // Reject out-of-image entities instead of extrapolating
	Image               string    `yaml:"image,omitempty" json:"image,omitempty"`                                                                   // Informational path of the floor-plan raster
}

// EntityRecord is the feed schema for one robot
type EntityRecord struct {
	ID      string  `yaml:"id" json:"id" validate:"required"`
	X       float64 `yaml:"x" json:"x"`
	Y       float64 `yaml:"y" json:"y"`
	Heading float64 `yaml:"heading" json:"heading"`
}

// RenderConfig tunes the SVG/PNG overlay output
type RenderConfig struct {
	Padding      float64 `yaml:"padding,omitempty" json:"padding,omitempty" validate:"gte=0"`           // Padding in image pixels (default 40)
	Resolution   float64 `yaml:"resolution,omitempty" json:"resolution,omitempty" validate:"gte=0"`     // Vector PNG DPI (default 96)
	MarkerRadius float64 `yaml:"markerRadius,omitempty" json:"markerRadius,omitempty" validate:"gte=0"` // Marker radius in image pixels (default 16)
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	Overlay      OverlayConfig  `yaml:"overlay" json:"overlay"`
	Entities     []EntityRecord `yaml:"entities,omitempty" json:"entities,omitempty" validate:"dive"`
	EntitiesFile string         `yaml:"entitiesFile,omitempty" json:"entitiesFile,omitempty"` // Relative paths resolve against the config file
	MQTT         MQTTConfig     `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Render       RenderConfig   `yaml:"render,omitempty" json:"render,omitempty"`
}
