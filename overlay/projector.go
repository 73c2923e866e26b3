package overlay

import (
	"fmt"
	"math"
)

// PixelToGeo maps a pixel on the floor-plan image to a geographic position.
//
// Pixel row 0 is the north edge of the image and y grows southward, so the
// latitude fraction is (1 - y/height). Coordinates outside the image are
// extrapolated linearly, never clamped. Width and height must be positive.
func PixelToGeo(p PixelCoordinate, bounds BoundingBox, imageWidthPx, imageHeightPx int) GeoPoint {
	sw, ne := bounds.SouthWest, bounds.NorthEast

	northFraction := 1 - p.Y/float64(imageHeightPx)
	eastFraction := p.X / float64(imageWidthPx)

	return GeoPoint{
		Lat: sw.Lat + (ne.Lat-sw.Lat)*northFraction,
		Lng: sw.Lng + (ne.Lng-sw.Lng)*eastFraction,
	}
}

// ProjectionMatrix returns the pixel-to-geo mapping as an affine transform.
// Apply(x, y) yields (lng, lat).
func ProjectionMatrix(bounds BoundingBox, imageWidthPx, imageHeightPx int) AffineMatrix {
	sw, ne := bounds.SouthWest, bounds.NorthEast
	dLat := ne.Lat - sw.Lat
	dLng := ne.Lng - sw.Lng

	// Scale pixels to degrees with y flipped, then move the origin to the NW corner
	return MultiplyMatrices(
		Translation(sw.Lng, ne.Lat),
		Scale(dLng/float64(imageWidthPx), -dLat/float64(imageHeightPx)),
	)
}

// Projector projects pixels for one configured image
type Projector struct {
	Bounds BoundingBox
	Width  int
	Height int

	// Strict rejects pixels outside [0,Width]x[0,Height] with ErrOutOfRangeEntity
	// instead of extrapolating.
	Strict bool

	inverse AffineMatrix
}

// NewProjector validates the image dimensions and bounds and returns a Projector
func NewProjector(bounds BoundingBox, imageWidthPx, imageHeightPx int, strict bool) (*Projector, error) {
	if imageWidthPx <= 0 || imageHeightPx <= 0 {
		return nil, fmt.Errorf("%w: image dimensions must be positive, got %dx%d",
			ErrInvalidConfiguration, imageWidthPx, imageHeightPx)
	}
	if bounds.SouthWest.Lat >= bounds.NorthEast.Lat || bounds.SouthWest.Lng >= bounds.NorthEast.Lng {
		return nil, fmt.Errorf("%w: bounds must have southwest strictly below and west of northeast",
			ErrInvalidConfiguration)
	}

	inv, ok := InvertMatrix(ProjectionMatrix(bounds, imageWidthPx, imageHeightPx))
	if !ok {
		return nil, fmt.Errorf("%w: projection is singular", ErrInvalidConfiguration)
	}

	return &Projector{
		Bounds:  bounds,
		Width:   imageWidthPx,
		Height:  imageHeightPx,
		Strict:  strict,
		inverse: inv,
	}, nil
}

// InRange reports whether p lies on the image, edges included
func (pr *Projector) InRange(p PixelCoordinate) bool {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return false
	}
	return p.X >= 0 && p.X <= float64(pr.Width) && p.Y >= 0 && p.Y <= float64(pr.Height)
}

// PixelToGeo projects p. Only strict projectors return an error.
func (pr *Projector) PixelToGeo(p PixelCoordinate) (GeoPoint, error) {
	if pr.Strict && !pr.InRange(p) {
		return GeoPoint{}, fmt.Errorf("%w: pixel (%g, %g) outside %dx%d image",
			ErrOutOfRangeEntity, p.X, p.Y, pr.Width, pr.Height)
	}
	return PixelToGeo(p, pr.Bounds, pr.Width, pr.Height), nil
}

// GeoToPixel is the inverse projection, used to draw geographic points on the image
func (pr *Projector) GeoToPixel(g GeoPoint) PixelCoordinate {
	x, y := pr.inverse.Apply(g.Lng, g.Lat)
	return PixelCoordinate{X: x, Y: y}
}
