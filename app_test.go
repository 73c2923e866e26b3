package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/kwv/floorgeo/overlay"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig saves cfg under dir and returns the path
func writeConfig(t *testing.T, dir string, cfg *overlay.Config) string {
	t.Helper()
	path := filepath.Join(dir, "site.yaml")
	require.NoError(t, overlay.SaveConfig(path, cfg))
	return path
}

// newTestApp returns an App configured with the campus overlay in a temp dir
func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp(&out)
	app.ApplyOptions(AppOptions{ConfigFile: writeConfig(t, t.TempDir(), overlay.DefaultConfig())})
	return app, &out
}

func TestNewApp(t *testing.T) {
	app := NewApp(nil)
	if app == nil {
		t.Fatal("NewApp returned nil")
	}
	if app.out == nil {
		t.Error("NewApp(nil) should default to stdout")
	}
	if app.Tracker != nil {
		t.Error("Tracker should be built lazily")
	}
}

func TestApplyOptions(t *testing.T) {
	app := NewApp(nil)
	opts := AppOptions{
		ConfigFile:   "c.yaml",
		EntitiesFile: "e.yaml",
		OutputFile:   "o.svg",
		RenderFormat: "png",
		GeoJSONFile:  "g.geojson",
		Strict:       true,
		HttpMode:     true,
		MqttMode:     true,
		HttpPort:     9999,
	}
	app.ApplyOptions(opts)

	if app.ConfigFile != "c.yaml" || app.EntitiesFile != "e.yaml" || app.OutputFile != "o.svg" {
		t.Errorf("file options not applied: %+v", app)
	}
	if app.RenderFormat != "png" || app.GeoJSONFile != "g.geojson" {
		t.Errorf("output options not applied: %+v", app)
	}
	if !app.Strict || !app.HttpMode || !app.MqttMode || app.HttpPort != 9999 {
		t.Errorf("mode options not applied: %+v", app)
	}
}

func TestLoadConfig_DefaultFallback(t *testing.T) {
	t.Chdir(t.TempDir())

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	app := NewApp(&bytes.Buffer{})
	app.ApplyOptions(AppOptions{ConfigFile: "config.yaml"})
	require.NoError(t, app.setup())
	assert.Contains(t, logs.String(), `[CONFIG] No config at "config.yaml"`)
	assert.Equal(t, overlay.DefaultConfig().Overlay, app.Config.Overlay)
	assert.Len(t, app.Tracker.Snapshot().Placements, 4)
}

func TestLoadConfig_ExplicitMissing(t *testing.T) {
	app := NewApp(&bytes.Buffer{})
	app.ApplyOptions(AppOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	err := app.setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadConfig_InvalidOverlay(t *testing.T) {
	cfg := overlay.DefaultConfig()
	cfg.Overlay.ImageWidthPx = 0

	app := NewApp(&bytes.Buffer{})
	app.ApplyOptions(AppOptions{ConfigFile: writeConfig(t, t.TempDir(), cfg)})
	assert.ErrorIs(t, app.RunReport(), overlay.ErrInvalidConfiguration)
}

func TestRunReport(t *testing.T) {
	app, out := newTestApp(t)
	require.NoError(t, app.RunReport())

	report := out.String()
	for _, want := range []string{
		"Image: 1629x1245 px",
		"SW: 1.299119803, 103.778573777",
		"NE: 1.301609803, 103.781831777",
		"Area: 0.10 km²",
		"Perimeter: 1.28 km",
		"Robots: 4",
		"001: (406, 334) -> 1.300941803, 103.779385777 heading 0°",
		"004:",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestRunProject(t *testing.T) {
	app, out := newTestApp(t)
	require.NoError(t, app.RunProject("406, 334"))
	assert.Equal(t, "1.300941803,103.779385777\n", out.String())
}

func TestRunProject_Invalid(t *testing.T) {
	app, _ := newTestApp(t)
	for _, arg := range []string{"", "406", "a,1", "1,b", "1,2,3", "NaN,1", "1,Inf", "-inf,nan"} {
		if err := app.RunProject(arg); err == nil {
			t.Errorf("RunProject(%q) should fail", arg)
		}
	}
}

func TestRunProject_Strict(t *testing.T) {
	app, _ := newTestApp(t)
	app.Strict = true

	err := app.RunProject("5000,10")
	assert.True(t, errors.Is(err, overlay.ErrOutOfRangeEntity), "err = %v", err)
}

func TestRunRender(t *testing.T) {
	tests := []struct {
		format string
		file   string
		check  func(t *testing.T, data []byte)
	}{
		{"svg", "overlay.svg", func(t *testing.T, data []byte) {
			assert.Contains(t, string(data), "<svg")
		}},
		{"png", "overlay.png", func(t *testing.T, data []byte) {
			_, err := png.Decode(bytes.NewReader(data))
			assert.NoError(t, err)
		}},
		{"raster", "raster.png", func(t *testing.T, data []byte) {
			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 855, img.Bounds().Dx())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			app, out := newTestApp(t)
			app.RenderFormat = tt.format
			app.OutputFile = filepath.Join(t.TempDir(), tt.file)

			require.NoError(t, app.RunRender())
			assert.Contains(t, out.String(), app.OutputFile)

			data, err := os.ReadFile(app.OutputFile)
			require.NoError(t, err)
			tt.check(t, data)
		})
	}
}

func TestRunRender_InvalidFormat(t *testing.T) {
	app, _ := newTestApp(t)
	app.RenderFormat = "pdf"
	err := app.RunRender()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRunGeoJSON(t *testing.T) {
	app, _ := newTestApp(t)
	app.GeoJSONFile = filepath.Join(t.TempDir(), "overlay.geojson")
	require.NoError(t, app.RunGeoJSON())

	data, err := os.ReadFile(app.GeoJSONFile)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)
	assert.Equal(t, "overlay", fc.Features[0].Properties.MustString("kind"))
}

func TestEntitiesFileOverride(t *testing.T) {
	dir := t.TempDir()
	entities := filepath.Join(dir, "robots.json")
	require.NoError(t, os.WriteFile(entities, []byte(`[{"id":"solo","x":100,"y":100,"heading":45}]`), 0644))

	app, _ := newTestApp(t)
	app.EntitiesFile = entities
	require.NoError(t, app.setup())

	snap := app.Tracker.Snapshot()
	require.Len(t, snap.Placements, 1)
	assert.Equal(t, "solo", snap.Placements[0].ID)
	assert.Empty(t, app.Config.Entities)
}

// ---------------------------------------------------------------------------
// service wiring
// ---------------------------------------------------------------------------

func TestPublishAll(t *testing.T) {
	app, _ := newTestApp(t)
	require.NoError(t, app.setup())

	// No publisher yet: must be a no-op
	app.publishAll()

	mock := overlay.NewMockClient()
	mock.SetConnected(true)
	app.Publisher = overlay.NewPublisher(mock, "site")
	app.publishAll()

	_, ok := mock.Last("site/overlay")
	assert.True(t, ok, "overlay not published")
	_, ok = mock.Last("site/placements")
	assert.True(t, ok, "placements not published")
	assert.Len(t, mock.PublishedUnder("site/00"), 4)
}

func TestAttachPublisher_PublishesBatches(t *testing.T) {
	app, _ := newTestApp(t)
	require.NoError(t, app.setup())

	mock := overlay.NewMockClient()
	app.attachPublisher(overlay.NewPublisher(mock, "site"), mock.IsConnected)

	// Disconnected: batch applies but nothing is published
	_, err := app.Tracker.Apply(nil)
	require.NoError(t, err)
	assert.Empty(t, mock.Published())

	mock.SetConnected(true)
	snap, err := app.Tracker.Apply([]overlay.Entity{{ID: "r9", Position: overlay.PixelCoordinate{X: 1, Y: 1}}})
	require.NoError(t, err)

	last, ok := mock.Last("site/placements")
	require.True(t, ok)
	var combined struct {
		Sequence uint64 `json:"sequence"`
	}
	require.NoError(t, json.Unmarshal(last.Payload, &combined))
	assert.Equal(t, snap.Sequence, combined.Sequence)
	_, ok = mock.Last("site/r9")
	assert.True(t, ok)
}

func TestWaitForShutdown_ReloadsOnHangup(t *testing.T) {
	dir := t.TempDir()
	entities := filepath.Join(dir, "robots.yaml")
	require.NoError(t, os.WriteFile(entities, []byte("- {id: a, x: 1, y: 1}\n"), 0644))

	app, out := newTestApp(t)
	app.EntitiesFile = entities
	require.NoError(t, app.setup())
	require.Equal(t, uint64(1), app.Tracker.Snapshot().Sequence)

	require.NoError(t, os.WriteFile(entities, []byte("- {id: a, x: 1, y: 1}\n- {id: b, x: 2, y: 2}\n"), 0644))

	sigChan := make(chan os.Signal, 3)
	sigChan <- syscall.SIGHUP
	sigChan <- syscall.SIGTERM

	done := make(chan struct{})
	go func() {
		app.waitForShutdown(sigChan)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waitForShutdown did not return on SIGTERM")
	}

	snap := app.Tracker.Snapshot()
	assert.Equal(t, uint64(2), snap.Sequence)
	assert.Len(t, snap.Placements, 2)
	assert.Contains(t, out.String(), "Shutting down")
}

func TestWaitForShutdown_FailedReloadKeepsBatch(t *testing.T) {
	dir := t.TempDir()
	entities := filepath.Join(dir, "robots.yaml")
	require.NoError(t, os.WriteFile(entities, []byte("- {id: a, x: 1, y: 1}\n"), 0644))

	app, _ := newTestApp(t)
	app.EntitiesFile = entities
	require.NoError(t, app.setup())

	// Duplicate ids are rejected by the feed parser
	require.NoError(t, os.WriteFile(entities, []byte("- {id: a}\n- {id: a}\n"), 0644))

	sigChan := make(chan os.Signal, 2)
	sigChan <- syscall.SIGHUP
	sigChan <- syscall.SIGINT
	app.waitForShutdown(sigChan)

	snap := app.Tracker.Snapshot()
	assert.Equal(t, uint64(1), snap.Sequence)
	assert.Len(t, snap.Placements, 1)
}
