package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command-line options
type AppOptions struct {
	ConfigFile   string
	EntitiesFile string
	OutputFile   string
	RenderFormat string
	GeoJSONFile  string
	Project      string
	Strict       bool
	Report       bool
	RenderOnly   bool
	HttpMode     bool
	MqttMode     bool
	HttpPort     int
}

// Runner is the set of modes main dispatches to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunReport() error
	RunProject(pixel string) error
	RunRender() error
	RunGeoJSON() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp(os.Stdout)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("floorgeo", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.EntitiesFile, "entities", "", "Entity list (JSON or YAML); overrides the config")
	fs.BoolVar(&opts.Report, "report", false, "Print bounds, metrics and placements (default mode)")
	fs.StringVar(&opts.Project, "project", "", "Project a single pixel and exit: X,Y")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Render the overlay and exit")
	fs.StringVar(&opts.RenderFormat, "format", "svg", "Render format: svg, png, or raster")
	fs.StringVar(&opts.OutputFile, "output", "", "Output file for --render (default overlay.<ext>)")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Write the overlay FeatureCollection to this file and exit")
	fs.BoolVar(&opts.Strict, "strict", false, "Reject entities outside the image instead of extrapolating")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve the overlay over HTTP")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Publish placements and metrics to MQTT")

	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "floorgeo version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.Project != "":
		return app.RunProject(opts.Project)
	case opts.RenderOnly:
		return app.RunRender()
	case opts.GeoJSONFile != "":
		return app.RunGeoJSON()
	case opts.HttpMode || opts.MqttMode:
		return app.RunService()
	default:
		return app.RunReport()
	}
}
