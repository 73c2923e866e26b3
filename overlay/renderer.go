package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RasterRenderer draws the overlay as a bitmap with text labels: the area and
// perimeter under the polygon and each robot's id beside its marker.
type RasterRenderer struct {
	Projector  *Projector
	Placements []PlacedEntity
	Metrics    PolygonMetrics
	Scale      float64 // Output pixels per image pixel (default 0.5)
	Padding    int     // Padding in output pixels
}

// NewRasterRenderer creates a renderer with default settings
func NewRasterRenderer(projector *Projector, placements []PlacedEntity, metrics PolygonMetrics) *RasterRenderer {
	return &RasterRenderer{
		Projector:  projector,
		Placements: placements,
		Metrics:    metrics,
		Scale:      0.5,
		Padding:    20,
	}
}

// Render draws the overlay into a new RGBA image
func (r *RasterRenderer) Render() *image.RGBA {
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}
	footer := 40
	width := int(math.Ceil(float64(r.Projector.Width)*scale)) + 2*r.Padding
	height := int(math.Ceil(float64(r.Projector.Height)*scale)) + 2*r.Padding + footer

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, draw.Src)

	toImage := func(p PixelCoordinate) (int, int) {
		return int(math.Round(p.X*scale)) + r.Padding, int(math.Round(p.Y*scale)) + r.Padding
	}

	// Overlay outline
	ring := r.Projector.Bounds.Ring()
	for i := 0; i < len(ring)-1; i++ {
		x0, y0 := toImage(r.Projector.GeoToPixel(ring[i]))
		x1, y1 := toImage(r.Projector.GeoToPixel(ring[i+1]))
		drawLine(img, x0, y0, x1, y1, OverlayColor)
	}

	black := color.RGBA{0, 0, 0, 255}
	for _, p := range r.Placements {
		cx, cy := toImage(r.Projector.GeoToPixel(p.Geo))
		drawCircle(img, cx, cy, 6, MarkerColor)

		rad := p.Heading * math.Pi / 180
		hx := cx + int(math.Round(12*math.Sin(rad)))
		hy := cy - int(math.Round(12*math.Cos(rad)))
		drawLine(img, cx, cy, hx, hy, black)

		drawText(img, cx+10, cy-8, p.ID, black)
	}

	// Tooltip text, ASCII only for the bitmap font
	labelY := height - footer + 16
	drawText(img, r.Padding, labelY, asciiLabel(FormatArea(r.Metrics)), black)
	drawText(img, r.Padding, labelY+16, FormatPerimeter(r.Metrics), black)

	return img
}

// SavePNG renders and writes the image to path
func (r *RasterRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, r.Render())
}

// asciiLabel replaces characters missing from basicfont
func asciiLabel(s string) string {
	return strings.ReplaceAll(s, "²", "2")
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setClipped(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine draws a 1px line with Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		setClipped(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawText renders text onto an image at the specified baseline position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
