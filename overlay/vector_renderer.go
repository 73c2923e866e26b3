package overlay

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// OverlayColor is the outline/fill used for the overlay polygon
var OverlayColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}

// MarkerColor is the fill used for robot markers
var MarkerColor = color.RGBA{R: 220, G: 38, B: 38, A: 255}

// VectorRenderer draws the overlay polygon and robot markers in image-pixel
// space. Placements are mapped back from their geographic positions, so the
// drawing shows exactly what the map view would.
type VectorRenderer struct {
	Projector    *Projector
	Placements   []PlacedEntity
	Padding      float64           // Padding in image pixels
	MarkerRadius float64           // Marker radius in image pixels
	Resolution   canvas.Resolution // Resolution for PNG output
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(projector *Projector, placements []PlacedEntity) *VectorRenderer {
	return &VectorRenderer{
		Projector:    projector,
		Placements:   placements,
		Padding:      40,
		MarkerRadius: 16,
		Resolution:   canvas.DPI(96),
	}
}

// ApplyConfig overrides defaults with non-zero render settings
func (r *VectorRenderer) ApplyConfig(rc RenderConfig) {
	if rc.Padding > 0 {
		r.Padding = rc.Padding
	}
	if rc.MarkerRadius > 0 {
		r.MarkerRadius = rc.MarkerRadius
	}
	if rc.Resolution > 0 {
		r.Resolution = canvas.DPI(rc.Resolution)
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

func (r *VectorRenderer) size() (float64, float64) {
	return float64(r.Projector.Width) + 2*r.Padding, float64(r.Projector.Height) + 2*r.Padding
}

// RenderToSVG writes the overlay as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	if r.Projector == nil {
		return fmt.Errorf("no projector configured")
	}
	width, height := r.size()

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)

	return svgRenderer.Close()
}

// RenderToPNG writes the overlay as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	if r.Projector == nil {
		return fmt.Errorf("no projector configured")
	}
	width, height := r.size()

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)

	return png.Encode(w, rast)
}

// toCanvas converts an image pixel to canvas coordinates (origin bottom-left, y up)
func (r *VectorRenderer) toCanvas(p PixelCoordinate) (float64, float64) {
	return p.X + r.Padding, float64(r.Projector.Height) - p.Y + r.Padding
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// Overlay polygon, traced from its geographic ring
	polyStyle := canvas.DefaultStyle
	polyStyle.Fill = canvas.Paint{Color: color.RGBA{R: 0, G: 0, B: 128, A: 64}}
	polyStyle.Stroke = canvas.Paint{Color: OverlayColor}
	polyStyle.StrokeWidth = 3

	poly := &canvas.Path{}
	for i, g := range r.Projector.Bounds.Ring() {
		cx, cy := r.toCanvas(r.Projector.GeoToPixel(g))
		if i == 0 {
			poly.MoveTo(cx, cy)
		} else {
			poly.LineTo(cx, cy)
		}
	}
	poly.Close()
	renderer.RenderPath(poly, polyStyle, canvas.Identity)

	for _, p := range r.Placements {
		cx, cy := r.toCanvas(r.Projector.GeoToPixel(p.Geo))

		markerStyle := canvas.DefaultStyle
		markerStyle.Fill = canvas.Paint{Color: MarkerColor}
		markerStyle.Stroke = canvas.Paint{Color: canvas.Black}
		markerStyle.StrokeWidth = 2

		marker := canvas.Circle(r.MarkerRadius).Translate(cx, cy)
		renderer.RenderPath(marker, markerStyle, canvas.Identity)

		// Heading is a compass bearing: 0 = north (up), clockwise
		rad := p.Heading * math.Pi / 180
		dirLen := r.MarkerRadius * 2
		dirStyle := canvas.DefaultStyle
		dirStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		dirStyle.Stroke = canvas.Paint{Color: canvas.Black}
		dirStyle.StrokeWidth = 3

		dir := &canvas.Path{}
		dir.MoveTo(cx, cy)
		dir.LineTo(cx+dirLen*math.Sin(rad), cy+dirLen*math.Cos(rad))
		renderer.RenderPath(dir, dirStyle, canvas.Identity)
	}
}
