// Package server provides the local HTTP API: status, bindings, gesture
// history, a live WebSocket feed and an MJPEG camera stream.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"gocv.io/x/gocv"
)

// Controller is the part of the running App the API drives.
type Controller interface {
	Status() app.Status
	SetEnabled(enabled bool)
	SetMode(mode string)
	LoadBindings() error
	OnFrame(fn app.Observer)
	LatestFrame() (*gocv.Mat, error)
	PluginManager() *plugin.Manager
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       Controller
}

// Server represents the HTTP server for mudra.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	live   *LiveHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	var reload func() error
	if s.config.App != nil {
		reload = s.config.App.LoadBindings

		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)

		s.live = NewLiveHandler()
		s.config.App.OnFrame(s.live.Publish)
		s.mux.Handle("/api/live", s.live)

		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))
	}

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store, reload)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
		s.mux.Handle("/api/events", api.NewEventHandler(s.config.Store))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type statusUpdate struct {
	Enabled *bool   `json:"enabled"`
	Mode    *string `json:"mode"`
}

// handleStatus serves GET /api/status and applies PUT /api/status, which
// may toggle detection and switch the active mode.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req statusUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
			return
		}
		if req.Mode != nil {
			s.config.App.SetMode(*req.Mode)
		}
		if req.Enabled != nil {
			s.config.App.SetEnabled(*req.Enabled)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.App.Status())
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// handlePlugins lists the discovered plugins and their actions.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := s.config.App.PluginManager().List()
	out := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     p.Manifest.Actions,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"plugins": out})
}

// Close disconnects live clients.
func (s *Server) Close() {
	if s.live != nil {
		s.live.Close()
	}
}
