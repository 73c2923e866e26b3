package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/floorgeo/overlay"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(tracker *overlay.PlacementTracker, config *overlay.Config) http.Handler {
	mux := http.NewServeMux()

	var render overlay.RenderConfig
	if config != nil {
		render = config.Render
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Sequence  uint64    `json:"sequence"`
			Robots    int       `json:"robots"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
		}
		if tracker != nil {
			snap := tracker.Snapshot()
			status.Sequence = snap.Sequence
			status.Robots = len(snap.Placements)
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("/bounds.json", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		pr := tracker.Projector()
		writeJSON(w, struct {
			Bounds        overlay.BoundingBox `json:"bounds"`
			Center        overlay.GeoPoint    `json:"center"`
			ImageWidthPx  int                 `json:"imageWidthPx"`
			ImageHeightPx int                 `json:"imageHeightPx"`
		}{pr.Bounds, pr.Bounds.Center(), pr.Width, pr.Height})
	})

	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		method := r.URL.Query().Get("method")
		var m overlay.PolygonMetrics
		switch method {
		case "", "spherical":
			method = "spherical"
			m = tracker.Metrics()
		case "planar":
			var err error
			m, err = overlay.PlanarMetrics(tracker.Projector().Bounds.Ring())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		default:
			http.Error(w, "method must be spherical or planar", http.StatusBadRequest)
			return
		}
		writeJSON(w, struct {
			overlay.PolygonMetrics
			Method         string `json:"method"`
			AreaLabel      string `json:"areaLabel"`
			PerimeterLabel string `json:"perimeterLabel"`
		}{m, method, overlay.FormatArea(m), overlay.FormatPerimeter(m)})
	})

	mux.HandleFunc("/placements.json", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		writeJSON(w, tracker.Snapshot())
	})

	mux.HandleFunc("/overlay.geojson", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		fc := overlay.OverlayCollection(tracker.Projector().Bounds, tracker.Metrics(), tracker.Snapshot().Placements)
		data, err := fc.MarshalJSON()
		if err != nil {
			log.Printf("[HTTP] Error encoding overlay GeoJSON: %v", err)
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("[HTTP] Error writing overlay GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("/overlay.svg", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		vr := overlay.NewVectorRenderer(tracker.Projector(), tracker.Snapshot().Placements)
		vr.ApplyConfig(render)

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := vr.RenderToSVG(w); err != nil {
			log.Printf("[HTTP] Error encoding overlay SVG: %v", err)
		}
	})

	mux.HandleFunc("/overlay.png", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		vr := overlay.NewVectorRenderer(tracker.Projector(), tracker.Snapshot().Placements)
		vr.ApplyConfig(render)

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := vr.RenderToPNG(w); err != nil {
			log.Printf("[HTTP] Error encoding overlay PNG: %v", err)
		}
	})

	// Single pixel projection: /project?x=406&y=334
	mux.HandleFunc("/project", func(w http.ResponseWriter, r *http.Request) {
		if !requireTracker(w, tracker) {
			return
		}
		x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
		y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
		p := overlay.PixelCoordinate{X: x, Y: y}
		if errX != nil || errY != nil || !p.Finite() {
			http.Error(w, "x and y query parameters must be finite numbers", http.StatusBadRequest)
			return
		}

		g, err := tracker.Projector().PixelToGeo(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, struct {
			Pixel   overlay.PixelCoordinate `json:"pixel"`
			Geo     overlay.GeoPoint        `json:"geo"`
			InRange bool                    `json:"inRange"`
		}{p, g, tracker.Projector().InRange(p)})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !requireTracker(w, tracker) {
			return
		}

		m := tracker.Metrics()
		snap := tracker.Snapshot()
		data := indexData{
			Bounds:         tracker.Projector().Bounds,
			AreaLabel:      overlay.FormatArea(m),
			PerimeterLabel: overlay.FormatPerimeter(m),
			Sequence:       snap.Sequence,
			Placements:     snap.Placements,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := indexTemplate.Execute(w, data); err != nil {
			log.Printf("[HTTP] Error rendering index: %v", err)
		}
	})

	return loggingMiddleware(mux)
}

type indexData struct {
	Bounds         overlay.BoundingBox
	AreaLabel      string
	PerimeterLabel string
	Sequence       uint64
	Placements     []overlay.PlacedEntity
}

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"coord": func(v float64) string { return fmt.Sprintf("%.7f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>floorgeo</title></head>
<body>
<h1>Floor plan overlay</h1>
<img src="/overlay.svg" alt="overlay" style="max-width:100%">
<p>{{.AreaLabel}}<br>{{.PerimeterLabel}}</p>
<p>SW {{coord .Bounds.SouthWest.Lat}}, {{coord .Bounds.SouthWest.Lng}} &middot; NE {{coord .Bounds.NorthEast.Lat}}, {{coord .Bounds.NorthEast.Lng}}</p>
<table>
<tr><th>Robot</th><th>Pixel</th><th>Lat</th><th>Lng</th><th>Heading</th></tr>
{{range .Placements}}<tr><td>{{.ID}}</td><td>{{.Position.X}}, {{.Position.Y}}</td><td>{{coord .Geo.Lat}}</td><td>{{coord .Geo.Lng}}</td><td>{{.Heading}}</td></tr>
{{end}}</table>
<p>Batch {{.Sequence}} &middot; <a href="/overlay.geojson">GeoJSON</a> &middot; <a href="/placements.json">placements</a></p>
</body>
</html>
`))

func requireTracker(w http.ResponseWriter, tracker *overlay.PlacementTracker) bool {
	if tracker == nil {
		http.Error(w, "Overlay not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding JSON response: %v", err)
	}
}

// loggingMiddleware logs every request with its status and duration
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[HTTP] %s %s %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
