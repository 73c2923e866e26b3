package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/kwv/floorgeo/overlay"
	"github.com/paulmach/orb/geojson"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *overlay.Config
	Tracker    *overlay.PlacementTracker
	MQTTClient *overlay.MQTTClient
	Publisher  *overlay.Publisher

	out io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	EntitiesFile string
	OutputFile   string
	RenderFormat string
	GeoJSONFile  string
	Strict       bool
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App writing its reports to out
func NewApp(out io.Writer) *App {
	if out == nil {
		out = os.Stdout
	}
	return &App{out: out}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.EntitiesFile = opts.EntitiesFile
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.GeoJSONFile = opts.GeoJSONFile
	a.Strict = opts.Strict
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads ConfigFile, falling back to the built-in campus overlay
// when the default path does not exist.
func (a *App) loadConfig() (*overlay.Config, error) {
	var config *overlay.Config
	if _, err := os.Stat(a.ConfigFile); err == nil {
		config, err = overlay.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, err
		}
		log.Printf("[CONFIG] Loaded config from %s", a.ConfigFile)
	} else if a.ConfigFile == "" || a.ConfigFile == "config.yaml" {
		log.Printf("[CONFIG] No config at %q, using built-in overlay", a.ConfigFile)
		config = overlay.DefaultConfig()
	} else {
		return nil, fmt.Errorf("config file not found: %s", a.ConfigFile)
	}

	if a.EntitiesFile != "" {
		config.Entities = nil
		config.EntitiesFile = a.EntitiesFile
	}
	if a.Strict {
		config.Overlay.StrictBounds = true
	}
	return config, nil
}

// setup loads config, builds the tracker and applies the initial entity batch
func (a *App) setup() error {
	if a.Tracker != nil {
		return nil
	}

	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	placer, err := overlay.BuildPlacer(config.Overlay)
	if err != nil {
		return err
	}

	tracker, err := overlay.NewPlacementTracker(placer)
	if err != nil {
		return err
	}

	entities, err := overlay.LoadEntities(config)
	if err != nil {
		return err
	}
	if _, err := tracker.Apply(entities); err != nil {
		return err
	}

	a.Config = config
	a.Tracker = tracker
	return nil
}

// RunReport prints the overlay bounds, metrics and the placed robots
func (a *App) RunReport() error {
	if err := a.setup(); err != nil {
		return err
	}

	pr := a.Tracker.Projector()
	b := pr.Bounds
	m := a.Tracker.Metrics()

	_, _ = fmt.Fprintf(a.out, "Image: %dx%d px\n", pr.Width, pr.Height)
	_, _ = fmt.Fprintf(a.out, "Bounds:\n")
	_, _ = fmt.Fprintf(a.out, "  SW: %.9f, %.9f\n", b.SouthWest.Lat, b.SouthWest.Lng)
	_, _ = fmt.Fprintf(a.out, "  NE: %.9f, %.9f\n", b.NorthEast.Lat, b.NorthEast.Lng)
	_, _ = fmt.Fprintln(a.out, overlay.FormatArea(m))
	_, _ = fmt.Fprintln(a.out, overlay.FormatPerimeter(m))

	snap := a.Tracker.Snapshot()
	_, _ = fmt.Fprintf(a.out, "Robots: %d\n", len(snap.Placements))
	for _, p := range snap.Placements {
		_, _ = fmt.Fprintf(a.out, "  %s: (%.0f, %.0f) -> %.9f, %.9f heading %.0f°\n",
			p.ID, p.Position.X, p.Position.Y, p.Geo.Lat, p.Geo.Lng, p.Heading)
	}
	return nil
}

// RunProject projects a single "X,Y" pixel and prints the coordinate
func (a *App) RunProject(pixel string) error {
	p, err := parsePixel(pixel)
	if err != nil {
		return err
	}
	if err := a.setup(); err != nil {
		return err
	}

	g, err := a.Tracker.Projector().PixelToGeo(p)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "%.9f,%.9f\n", g.Lat, g.Lng)
	return nil
}

func parsePixel(s string) (overlay.PixelCoordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return overlay.PixelCoordinate{}, fmt.Errorf("invalid pixel %q: want X,Y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return overlay.PixelCoordinate{}, fmt.Errorf("invalid pixel x %q: %w", parts[0], err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return overlay.PixelCoordinate{}, fmt.Errorf("invalid pixel y %q: %w", parts[1], err)
	}
	p := overlay.PixelCoordinate{X: x, Y: y}
	if !p.Finite() {
		return overlay.PixelCoordinate{}, fmt.Errorf("invalid pixel %q: coordinates must be finite", s)
	}
	return p, nil
}

// RunRender draws the overlay as svg, png (vector) or raster and writes it to OutputFile
func (a *App) RunRender() error {
	format := a.RenderFormat
	if format == "" {
		format = "svg"
	}
	if format != "svg" && format != "png" && format != "raster" {
		return fmt.Errorf("invalid format: %s (must be svg, png, or raster)", format)
	}
	if err := a.setup(); err != nil {
		return err
	}

	outputPath := a.OutputFile
	if outputPath == "" {
		ext := format
		if format == "raster" {
			ext = "png"
		}
		outputPath = "overlay." + ext
	}

	snap := a.Tracker.Snapshot()
	pr := a.Tracker.Projector()

	if format == "raster" {
		rr := overlay.NewRasterRenderer(pr, snap.Placements, a.Tracker.Metrics())
		if err := rr.SavePNG(outputPath); err != nil {
			return fmt.Errorf("rendering raster: %w", err)
		}
		_, _ = fmt.Fprintf(a.out, "Created raster: %s\n", outputPath)
		return nil
	}

	vr := overlay.NewVectorRenderer(pr, snap.Placements)
	vr.ApplyConfig(a.Config.Render)

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", outputPath, err)
	}
	defer func() {
		if err := outFile.Close(); err != nil {
			log.Printf("[RENDER] Warning: error closing output file %s: %v", outputPath, err)
		}
	}()

	if format == "svg" {
		err = vr.RenderToSVG(outFile)
	} else {
		err = vr.RenderToPNG(outFile)
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", format, err)
	}
	_, _ = fmt.Fprintf(a.out, "Created %s: %s\n", format, outputPath)
	return nil
}

// RunGeoJSON writes the overlay FeatureCollection to GeoJSONFile
func (a *App) RunGeoJSON() error {
	if err := a.setup(); err != nil {
		return err
	}

	fc := a.featureCollection()
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.WriteFile(a.GeoJSONFile, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", a.GeoJSONFile, err)
	}
	_, _ = fmt.Fprintf(a.out, "Created GeoJSON: %s (%d features)\n", a.GeoJSONFile, len(fc.Features))
	return nil
}

func (a *App) featureCollection() *geojson.FeatureCollection {
	return overlay.OverlayCollection(a.Tracker.Projector().Bounds, a.Tracker.Metrics(), a.Tracker.Snapshot().Placements)
}

// reloadEntities re-reads the entity source and applies it as a new batch
func (a *App) reloadEntities() error {
	entities, err := overlay.LoadEntities(a.Config)
	if err != nil {
		return err
	}
	snap, err := a.Tracker.Apply(entities)
	if err != nil {
		return err
	}
	log.Printf("[ENTITIES] applied batch %d with %d robots", snap.Sequence, len(snap.Placements))
	return nil
}

// publishAll publishes the overlay and the current placements
func (a *App) publishAll() {
	if a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishOverlay(a.Tracker.Projector().Bounds, a.Tracker.Metrics()); err != nil {
		log.Printf("[MQTT] error publishing overlay: %v", err)
	}
	if err := a.Publisher.PublishSnapshot(a.Tracker.Snapshot()); err != nil {
		log.Printf("[MQTT] error publishing placements: %v", err)
	}
}

// RunService starts the HTTP server and/or the MQTT publisher and blocks
// until SIGINT or SIGTERM. SIGHUP reloads the entity list.
func (a *App) RunService() error {
	_, _ = fmt.Fprintln(a.out, "Starting floorgeo service...")

	if err := a.setup(); err != nil {
		return err
	}

	if a.MqttMode {
		// The connect hook may fire before the publisher is attached
		ready := make(chan struct{})
		client, err := overlay.InitMQTT(a.Config, func() {
			<-ready
			a.publishAll()
		})
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		if client != nil {
			a.MQTTClient = client
			a.attachPublisher(overlay.NewPublisher(client.GetClient(), a.Config.MQTT.PublishPrefix), client.IsConnected)
			close(ready)
			defer client.Disconnect()
			log.Println("[MQTT] publisher enabled")
		}
	}

	if a.HttpMode {
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", a.HttpPort),
			Handler: newHTTPServer(a.Tracker, a.Config),
		}
		go func() {
			log.Printf("[HTTP] listening on :%d", a.HttpPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[HTTP] server error: %v", err)
			}
		}()
		defer func() {
			if err := server.Close(); err != nil {
				log.Printf("[HTTP] error closing server: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	a.waitForShutdown(sigChan)
	return nil
}

// attachPublisher publishes every applied batch while connected() is true
func (a *App) attachPublisher(p *overlay.Publisher, connected func() bool) {
	a.Publisher = p
	a.Tracker.OnBatch(func(s overlay.Snapshot) {
		if !connected() {
			return
		}
		if err := p.PublishSnapshot(s); err != nil {
			log.Printf("[MQTT] error publishing batch %d: %v", s.Sequence, err)
		}
	})
}

// waitForShutdown blocks until SIGINT or SIGTERM. SIGHUP reloads the entity
// list; a failed reload keeps the current batch.
func (a *App) waitForShutdown(sigChan <-chan os.Signal) {
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := a.reloadEntities(); err != nil {
				log.Printf("[ENTITIES] reload failed, keeping batch %d: %v", a.Tracker.Snapshot().Sequence, err)
			}
			continue
		}
		_, _ = fmt.Fprintln(a.out, "\nShutting down...")
		return
	}
}
