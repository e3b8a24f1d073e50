package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/symmesh/symmetry"
)

const (
	previewWidth  = 800
	previewHeight = 600
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *symmetry.Config
	State      *symmetry.StateTracker
	Service    *symmetry.Service
	MQTTClient *symmetry.MQTTClient
	Publisher  *symmetry.Publisher

	// Out receives user-facing output; defaults to stdout
	Out io.Writer

	// CLI flags
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

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		State:     symmetry.NewStateTracker(),
		Out:       os.Stdout,
		Threshold: -1,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Input = opts.Input
	a.Select = opts.Select
	a.Axis = opts.Axis
	a.Threshold = opts.Threshold
	a.OutputFile = opts.OutputFile
	a.WriteBack = opts.WriteBack
	a.RenderFile = opts.RenderFile
	a.RenderFormat = opts.RenderFormat
	a.VectorFormat = opts.VectorFormat
	a.GeoJSONFile = opts.GeoJSONFile
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
	a.HttpPort = opts.HttpPort
}

// loadConfig reads the config file when it exists and applies CLI overrides.
// A missing file means defaults plus MQTT_* environment overrides.
func (a *App) loadConfig() (*symmetry.Config, error) {
	var config *symmetry.Config
	if _, err := os.Stat(a.ConfigFile); a.ConfigFile != "" && err == nil {
		config, err = symmetry.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded config from %s", a.ConfigFile)
	} else {
		config = symmetry.DefaultConfig()
		config.ApplyEnv()
	}

	if a.Axis != "" {
		if _, err := symmetry.ParseAxis(a.Axis); err != nil {
			return nil, err
		}
		config.Mirror.Axis = a.Axis
	}
	if a.Threshold >= 0 {
		config.Mirror.Threshold = a.Threshold
	}
	if a.HttpPort > 0 {
		config.HTTP.Port = a.HttpPort
	}
	a.Config = config
	return config, nil
}

// ensureService builds the Service lazily so tests can inject one
func (a *App) ensureService() *symmetry.Service {
	if a.Service == nil {
		a.Service = symmetry.NewService(a.Config, a.State, a.Publisher)
	}
	return a.Service
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func isOBJ(path string) bool {
	return !symmetry.IsRemote(path) && strings.EqualFold(filepath.Ext(path), ".obj")
}

// readInput loads a snapshot from a URL, from JSON, or from OBJ vertices plus --select
func (a *App) readInput(ctx context.Context) (*symmetry.Snapshot, error) {
	var snap *symmetry.Snapshot
	if symmetry.IsRemote(a.Input) {
		var err error
		snap, err = symmetry.FetchSnapshot(ctx, a.Input)
		if err != nil {
			return nil, err
		}
	} else if isOBJ(a.Input) {
		f, err := os.Open(a.Input)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", a.Input, err)
		}
		defer f.Close()
		points, err := symmetry.ParseOBJ(f)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", a.Input, err)
		}
		snap = symmetry.NewSnapshot(points, nil)
	} else {
		var err error
		snap, err = symmetry.ParseSnapshotFile(a.Input)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", a.Input, err)
		}
	}

	if a.Select != "" {
		ids, err := symmetry.ParseSelection(a.Select)
		if err != nil {
			return nil, err
		}
		snap.Selected = ids
	}
	return snap, nil
}

// RunMirror mirrors one input file and writes the requested outputs
func (a *App) RunMirror() error {
	if _, err := a.loadConfig(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ctx := context.Background()
	snap, err := a.readInput(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out(), "Loaded %d points, %d selected from %s\n", len(snap.Points), len(snap.Selected), a.Input)

	res, err := a.ensureService().Handle(ctx, snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out(), "Mirrored along %s: %d moved, %d unmatched, %d excluded\n",
		res.Axis, res.MovedCount, len(res.UnmatchedSelected), len(res.Excluded))

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if a.OutputFile != "" {
		if err := os.WriteFile(a.OutputFile, data, 0644); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
		fmt.Fprintf(a.out(), "Created: %s\n", a.OutputFile)
	} else {
		fmt.Fprintln(a.out(), string(data))
	}

	scene := symmetry.NewScene(snap.CorePoints(), res)
	if a.RenderFile != "" {
		if err := a.RunRender(scene); err != nil {
			return err
		}
	}
	if a.GeoJSONFile != "" {
		if err := a.RunGeoJSON(scene); err != nil {
			return err
		}
	}
	if a.WriteBack != "" {
		if err := a.writeBack(snap, res); err != nil {
			return err
		}
		fmt.Fprintf(a.out(), "Created: %s\n", a.WriteBack)
	}
	return nil
}

// writeBack writes the input with the result applied, in the input's format
func (a *App) writeBack(snap *symmetry.Snapshot, res *symmetry.Result) error {
	if isOBJ(a.Input) {
		in, err := os.Open(a.Input)
		if err != nil {
			return fmt.Errorf("opening %s: %w", a.Input, err)
		}
		defer in.Close()
		out, err := os.Create(a.WriteBack)
		if err != nil {
			return fmt.Errorf("creating %s: %w", a.WriteBack, err)
		}
		if err := symmetry.RewriteOBJ(in, out, res.Updated); err != nil {
			out.Close()
			return fmt.Errorf("rewriting OBJ: %w", err)
		}
		return out.Close()
	}

	// Apply to a copy; the recorded snapshot keeps the input coordinates
	updated := symmetry.NewSnapshot(snap.CorePoints(), snap.Selected)
	updated.RequestID, updated.Axis, updated.Threshold = snap.RequestID, snap.Axis, snap.Threshold
	updated.Apply(res)
	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(a.WriteBack, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// renderPaths returns the raster and vector output paths for the chosen format
func (a *App) renderPaths() (raster, vector string) {
	base := strings.TrimSuffix(a.RenderFile, filepath.Ext(a.RenderFile))
	switch a.RenderFormat {
	case "vector":
		return "", base + "." + a.VectorFormat
	case "both":
		vector = base + "." + a.VectorFormat
		if a.VectorFormat == "png" {
			vector = base + "-vector.png"
		}
		return base + ".png", vector
	default:
		return base + ".png", ""
	}
}

// RunRender writes the scene as a raster preview, a vector render, or both
func (a *App) RunRender(scene *symmetry.Scene) error {
	render := symmetry.DefaultConfig().Render
	if a.Config != nil {
		render = a.Config.Render
	}
	rasterPath, vectorPath := a.renderPaths()

	if rasterPath != "" {
		img := symmetry.RenderPreview(scene, previewWidth, previewHeight, render.Padding)
		f, err := os.Create(rasterPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", rasterPath, err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return fmt.Errorf("encoding PNG: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(a.out(), "Created raster: %s\n", rasterPath)
	}

	if vectorPath != "" {
		vr := symmetry.NewVectorRenderer(scene, render)
		f, err := os.Create(vectorPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", vectorPath, err)
		}
		if a.VectorFormat == "png" {
			err = vr.RenderToPNG(f)
		} else {
			err = vr.RenderToSVG(f)
		}
		if err != nil {
			f.Close()
			return fmt.Errorf("rendering vector: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(a.out(), "Created vector: %s\n", vectorPath)
	}
	return nil
}

// RunGeoJSON writes the GeoJSON export of the scene
func (a *App) RunGeoJSON(scene *symmetry.Scene) error {
	pad := symmetry.DefaultConfig().Render.Padding
	if a.Config != nil {
		pad = a.Config.Render.Padding
	}
	data, err := json.MarshalIndent(symmetry.ExportGeoJSON(scene, pad), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.WriteFile(a.GeoJSONFile, data, 0644); err != nil {
		return fmt.Errorf("writing GeoJSON: %w", err)
	}
	fmt.Fprintf(a.out(), "Created: %s\n", a.GeoJSONFile)
	return nil
}

// RunService runs the MQTT and/or HTTP surfaces until interrupted
func (a *App) RunService() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

// serve starts the enabled surfaces and blocks until ctx is done
func (a *App) serve(ctx context.Context) error {
	fmt.Fprintln(a.out(), "Starting symmesh service...")

	config, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	svc := a.ensureService()

	if a.MqttMode {
		// Handlers block until the publisher is attached
		ready := make(chan struct{})
		handler := func(snap *symmetry.Snapshot, err error) {
			select {
			case <-ready:
			case <-ctx.Done():
				return
			}
			if err != nil {
				svc.HandleDecodeError(err)
				return
			}
			if _, err := svc.Handle(ctx, snap); err != nil {
				log.Printf("[MQTT] request %q failed: %v", snap.RequestID, err)
			}
		}

		mqttClient, err := symmetry.InitMQTT(config, handler)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return errors.New("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.MQTTClient = mqttClient
		a.Publisher = symmetry.NewPublisher(mqttClient.GetClient(), config.MQTT)
		svc.Publisher = a.Publisher
		close(ready)
		fmt.Fprintln(a.out(), "MQTT result publisher initialized")
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", config.HTTP.Port),
			Handler:           newHTTPServer(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo(config)
	fmt.Fprintln(a.out(), "\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Fprintln(a.out(), "\nShutting down service...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.out(), "Service stopped")
	return nil
}

func (a *App) printServiceInfo(config *symmetry.Config) {
	out := a.out()
	fmt.Fprintln(out, "\nService Running")
	fmt.Fprintln(out, "===============")

	if a.MqttMode {
		fmt.Fprintln(out, "\nMQTT:")
		fmt.Fprintf(out, "  Subscribed topic: %s\n", config.MQTT.RequestTopic)
		fmt.Fprintf(out, "  Results: %s\n", config.MQTT.ResultTopic("{requestId}"))
		fmt.Fprintf(out, "  Errors:  %s\n", config.MQTT.ErrorTopic("{requestId}"))
	}

	if a.HttpMode {
		fmt.Fprintf(out, "\nHTTP endpoints (port %d):\n", config.HTTP.Port)
		fmt.Fprintln(out, "  GET  /health        - Health check and counters")
		fmt.Fprintln(out, "  POST /mirror        - Mirror a snapshot, returns the result")
		fmt.Fprintln(out, "  GET  /last.json     - Last result")
		fmt.Fprintln(out, "  GET  /last.svg      - Last result, vector render")
		fmt.Fprintln(out, "  GET  /last.png      - Last result, vector render as PNG")
		fmt.Fprintln(out, "  GET  /last.geojson  - Last result as GeoJSON")
		fmt.Fprintln(out, "  GET  /preview.png   - Last result, raster preview")
	}
}
