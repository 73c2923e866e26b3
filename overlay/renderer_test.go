package overlay

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campusRasterRenderer(t *testing.T) *RasterRenderer {
	t.Helper()
	pr := campusProjector(t, false)
	m, err := BoundsMetrics(pr.Bounds)
	require.NoError(t, err)
	return NewRasterRenderer(pr, PlaceAll(campusRobots(), pr.Bounds, pr.Width, pr.Height), m)
}

func TestRasterRenderer_Size(t *testing.T) {
	r := campusRasterRenderer(t)
	img := r.Render()

	// 0.5 scale, 20 px padding, 40 px footer
	assert.Equal(t, 815+40, img.Bounds().Dx())
	assert.Equal(t, 623+40+40, img.Bounds().Dy())
}

func TestRasterRenderer_DrawsOutlineAndMarkers(t *testing.T) {
	r := campusRasterRenderer(t)
	img := r.Render()

	// North-west corner of the outline sits at the padding offset
	if got := img.RGBAAt(r.Padding, r.Padding); got != OverlayColor {
		t.Errorf("outline corner = %v, want %v", got, OverlayColor)
	}

	// Marker fill at robot 001: (406, 334) * 0.5 + 20, one pixel below the heading line
	if got := img.RGBAAt(203+r.Padding, 167+r.Padding+2); got != MarkerColor {
		t.Errorf("marker pixel = %v, want %v", got, MarkerColor)
	}

	white := color.RGBA{255, 255, 255, 255}
	if got := img.RGBAAt(1, 1); got != white {
		t.Errorf("background = %v, want white", got)
	}
}

func TestRasterRenderer_SavePNG(t *testing.T) {
	r := campusRasterRenderer(t)
	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, r.SavePNG(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, r.Render().Bounds(), img.Bounds())

	assert.Error(t, r.SavePNG(filepath.Join(t.TempDir(), "missing", "overlay.png")))
}

func TestAsciiLabel(t *testing.T) {
	assert.Equal(t, "Area: 0.10 km2", asciiLabel("Area: 0.10 km²"))
}

func TestDrawLine_Endpoints(t *testing.T) {
	r := campusRasterRenderer(t)
	img := r.Render()
	c := color.RGBA{1, 2, 3, 255}

	drawLine(img, 5, 5, 15, 9, c)
	assert.Equal(t, c, img.RGBAAt(5, 5))
	assert.Equal(t, c, img.RGBAAt(15, 9))

	// Clipped lines must not panic
	drawLine(img, -10, -10, 10000, 10000, c)
}
