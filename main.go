package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile   string
	Input        string
	Select       string
	Axis         string
	Threshold    float64
	OutputFile   string
	WriteBack    string
	RenderFile   string
	RenderFormat string
	VectorFormat string
	GeoJSONFile  string
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
}

// Runner is implemented by App; tests substitute a mock
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunMirror() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatalf("Error: %v", err)
	}
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("symmesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (optional)")
	fs.StringVar(&opts.Input, "input", "", "Snapshot JSON (file or http(s) URL) or Wavefront OBJ to mirror")
	fs.StringVar(&opts.Select, "select", "", "Selected vertex ids for OBJ input, e.g. 0,3,7-9")
	fs.StringVar(&opts.Axis, "axis", "", "Symmetry axis: x, y or z (default from config)")
	fs.Float64Var(&opts.Threshold, "threshold", -1, "Match distance threshold (default from config)")
	fs.StringVar(&opts.OutputFile, "output", "", "Write the result JSON here instead of stdout")
	fs.StringVar(&opts.WriteBack, "write-back", "", "Write the updated snapshot or OBJ here")
	fs.StringVar(&opts.RenderFile, "render", "", "Render the result scene to this file")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster, vector, or both")
	fs.StringVar(&opts.VectorFormat, "vector-format", "svg", "Vector output format: svg or png")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Write the GeoJSON export of the result here")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server")
	fs.IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (default from config, 8080)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "symmesh version: %s\n", Version)

	switch opts.RenderFormat {
	case "raster", "vector", "both":
	default:
		return fmt.Errorf("invalid format: %s (must be raster, vector, or both)", opts.RenderFormat)
	}
	switch opts.VectorFormat {
	case "svg", "png":
	default:
		return fmt.Errorf("invalid vector format: %s (must be svg or png)", opts.VectorFormat)
	}

	app.ApplyOptions(opts)

	if opts.MqttMode || opts.HttpMode {
		return app.RunService()
	}
	if opts.Input != "" {
		return app.RunMirror()
	}

	fmt.Fprintln(out, "Use --input=FILE to mirror a snapshot JSON or OBJ")
	fmt.Fprintln(out, "Use --select=IDS with OBJ input to choose the selected vertices")
	fmt.Fprintln(out, "Use --render=FILE or --geojson=FILE to export the result scene")
	fmt.Fprintln(out, "Use --mqtt and/or --http to run the service")
	return nil
}
