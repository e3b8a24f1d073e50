package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kwv/symmesh/symmetry"
)

// maxRequestBytes bounds a POST /mirror body
const maxRequestBytes = 32 << 20

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps a mirror error to an HTTP status
func statusFor(err error) int {
	switch symmetry.ErrorKind(err) {
	case "invalid":
		return http.StatusBadRequest
	case "infeasible":
		return http.StatusUnprocessableEntity
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Error:     err.Error(),
		Kind:      symmetry.ErrorKind(err),
		Retryable: symmetry.IsRetryable(err),
	})
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(svc *symmetry.Service) http.Handler {
	mux := http.NewServeMux()
	state := svc.State
	render := svc.Config.Render

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string         `json:"status"`
			Timestamp time.Time      `json:"timestamp"`
			HasResult bool           `json:"hasResult"`
			Stats     symmetry.Stats `json:"stats"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasResult: state.HasResult(),
			Stats:     state.Stats(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	// Synchronous mirror request
	mux.HandleFunc("/mirror", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			writeError(w, fmt.Errorf("%w: reading body: %v", symmetry.ErrInvalidSnapshot, err))
			return
		}
		snap, err := symmetry.ParseSnapshotJSON(body)
		if err != nil {
			svc.HandleDecodeError(err)
			writeError(w, err)
			return
		}
		res, err := svc.Handle(r.Context(), snap)
		if err != nil {
			log.Printf("[HTTP] /mirror failed: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("/last.json", func(w http.ResponseWriter, r *http.Request) {
		o, ok := state.Last()
		if !ok {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(w, http.StatusOK, o.Result)
	})

	// Vector render endpoints
	mux.HandleFunc("/last.svg", func(w http.ResponseWriter, r *http.Request) {
		scene, ok := state.Scene()
		if !ok {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := symmetry.NewVectorRenderer(scene, render).RenderToSVG(w); err != nil {
			log.Printf("[HTTP] error rendering SVG: %v", err)
		}
	})

	mux.HandleFunc("/last.png", func(w http.ResponseWriter, r *http.Request) {
		scene, ok := state.Scene()
		if !ok {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := symmetry.NewVectorRenderer(scene, render).RenderToPNG(w); err != nil {
			log.Printf("[HTTP] error rendering PNG: %v", err)
		}
	})

	mux.HandleFunc("/last.geojson", func(w http.ResponseWriter, r *http.Request) {
		scene, ok := state.Scene()
		if !ok {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		data, err := json.Marshal(symmetry.ExportGeoJSON(scene, render.Padding))
		if err != nil {
			http.Error(w, "Error encoding GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("[HTTP] error writing GeoJSON: %v", err)
		}
	})

	// Raster preview endpoint
	mux.HandleFunc("/preview.png", func(w http.ResponseWriter, r *http.Request) {
		scene, ok := state.Scene()
		if !ok {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		img := symmetry.RenderPreview(scene, previewWidth, previewHeight, render.Padding)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("[HTTP] error encoding preview PNG: %v", err)
		}
	})

	return mux
}
