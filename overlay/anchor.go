package overlay

import (
	"fmt"
	"math"
)

// LongitudeScale returns the factor applied to the longitude pixel ratio at
// the given latitude (degrees).
type LongitudeScale func(lat float64) float64

// FlatEarth keeps longitude spacing independent of latitude. This is a linear
// approximation: at latitude φ a pixel covers cos(φ) times less ground east-west
// than north-south for equal ratios. It is accurate only for small footprints
// near the equator, and it is the default.
func FlatEarth(float64) float64 { return 1 }

// CosineCorrection widens the longitude span by 1/cos(lat) so a pixel covers the
// same ground distance on both axes.
func CosineCorrection(lat float64) float64 {
	c := math.Cos(lat * math.Pi / 180)
	if c < 1e-12 {
		return 1
	}
	return 1 / c
}

// LongitudeScaleByName maps a config value to a LongitudeScale.
// Empty and "none" select FlatEarth.
func LongitudeScaleByName(name string) (LongitudeScale, error) {
	switch name {
	case "", "none":
		return FlatEarth, nil
	case "cosine":
		return CosineCorrection, nil
	default:
		return nil, fmt.Errorf("%w: unknown longitude correction %q", ErrInvalidConfiguration, name)
	}
}

// Anchor resolves image bounds around a known center point
type Anchor struct {
	Scale LongitudeScale
}

// ResolveBounds computes the bounding box of an image centered on center with
// the given per-pixel degree ratios, using the flat-earth approximation.
func ResolveBounds(center GeoPoint, imageWidthPx, imageHeightPx int, latPixelRatio, lngPixelRatio float64) (BoundingBox, error) {
	return Anchor{Scale: FlatEarth}.Resolve(center, imageWidthPx, imageHeightPx, latPixelRatio, lngPixelRatio)
}

// Resolve computes the bounding box, applying the anchor's longitude scale at
// the center latitude.
func (a Anchor) Resolve(center GeoPoint, imageWidthPx, imageHeightPx int, latPixelRatio, lngPixelRatio float64) (BoundingBox, error) {
	if err := validateAnchorInput(center, imageWidthPx, imageHeightPx, latPixelRatio, lngPixelRatio); err != nil {
		return BoundingBox{}, err
	}

	scale := a.Scale
	if scale == nil {
		scale = FlatEarth
	}

	offsetLat := (float64(imageHeightPx) / 2) * latPixelRatio
	offsetLng := (float64(imageWidthPx) / 2) * lngPixelRatio * scale(center.Lat)

	b := BoundingBox{
		SouthWest: GeoPoint{Lat: center.Lat - offsetLat, Lng: center.Lng - offsetLng},
		NorthEast: GeoPoint{Lat: center.Lat + offsetLat, Lng: center.Lng + offsetLng},
	}
	if !b.SouthWest.Valid() || !b.NorthEast.Valid() {
		return BoundingBox{}, fmt.Errorf("%w: image footprint (%v, %v)-(%v, %v) extends past the valid coordinate range",
			ErrInvalidConfiguration, b.SouthWest.Lat, b.SouthWest.Lng, b.NorthEast.Lat, b.NorthEast.Lng)
	}
	return b, nil
}

func validateAnchorInput(center GeoPoint, w, h int, latRatio, lngRatio float64) error {
	if !center.Valid() {
		return fmt.Errorf("%w: center (%v, %v) is not a valid coordinate", ErrInvalidConfiguration, center.Lat, center.Lng)
	}
	if w <= 0 {
		return fmt.Errorf("%w: image width must be positive, got %d", ErrInvalidConfiguration, w)
	}
	if h <= 0 {
		return fmt.Errorf("%w: image height must be positive, got %d", ErrInvalidConfiguration, h)
	}
	if !positiveFinite(latRatio) {
		return fmt.Errorf("%w: latitude pixel ratio must be positive, got %v", ErrInvalidConfiguration, latRatio)
	}
	if !positiveFinite(lngRatio) {
		return fmt.Errorf("%w: longitude pixel ratio must be positive, got %v", ErrInvalidConfiguration, lngRatio)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
