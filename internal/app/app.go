// Package app runs the frame loop that turns camera frames into gesture
// actions, and exposes its state to the tray, HUD and HTTP API.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"gocv.io/x/gocv"
)

// ErrNoFrame is returned by LatestFrame before the first frame is read.
var ErrNoFrame = errors.New("no frame captured yet")

// Config holds the collaborators of an App. Only Settings is required;
// nil collaborators are built from it.
type Config struct {
	Settings *config.Config
	Store    *store.Store      // bindings and event history; nil uses Settings bindings only
	Camera   capture.Camera    // nil opens Settings.Camera.Device
	Detector detector.Detector // nil tries MediaPipe, then the mock detector
	Plugins  *plugin.Manager   // nil discovers nothing until DiscoverPlugins
	// DryRun replaces plugin actions with log lines.
	DryRun bool
}

// Status is a snapshot of the gesture state.
type Status struct {
	Enabled    bool          `json:"enabled"`
	Running    bool          `json:"running"`
	Mode       string        `json:"mode"`
	Committed  gesture.Label `json:"committed"`
	Raw        gesture.Label `json:"raw"`
	Hand       bool          `json:"hand"`
	Frames     uint64        `json:"frames"`
	Bindings   int           `json:"bindings"`
	LastAction string        `json:"last_action,omitempty"`
	LastFired  time.Time     `json:"last_fired"`
}

// App owns the camera, the detector and the gesture pipeline.
type App struct {
	settings   *config.Config
	store      *store.Store
	camera     capture.Camera
	gate       *capture.MotionGate
	detector   detector.Detector
	pipeline   *Pipeline
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	dryRun     bool

	// frameMu serializes the pipeline. Observers run while it is held.
	frameMu sync.Mutex

	mu        sync.RWMutex
	enabled   bool
	stopCh    chan struct{}
	done      chan struct{}
	status    Status
	latest    *gocv.Mat
	observers []Observer
}

// New creates an App. Detection is disabled until SetEnabled(true).
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	d, err := dispatch.New(settings.Dispatch.InitialMode, nil)
	if err != nil {
		return nil, err
	}

	pipe, err := NewPipeline(settings.Thresholds(), settings.Stabilizer.RunLength, d)
	if err != nil {
		return nil, err
	}

	a := &App{
		settings:   settings,
		store:      cfg.Store,
		camera:     cfg.Camera,
		detector:   cfg.Detector,
		pipeline:   pipe,
		pluginMgr:  cfg.Plugins,
		pluginExec: plugin.NewExecutor(int(settings.Plugins.Timeout.Milliseconds())),
		dryRun:     cfg.DryRun,
		status: Status{
			Mode:      d.Mode(),
			Committed: gesture.None,
			Raw:       gesture.None,
		},
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{
			Device: settings.Camera.Device,
			FPS:    settings.Camera.FPS,
			Mirror: settings.Camera.Mirror,
		})
	}

	if m := settings.Camera.Motion; m.Enabled {
		a.gate = capture.NewMotionGate(m.Threshold, settings.Camera.IdleFPS, settings.Camera.ActiveFPS, m.IdleTimeout)
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(settings.DetectorConfig()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	if a.pluginMgr == nil {
		a.pluginMgr = plugin.NewManager(settings.Plugins.Dir)
	}

	pipe.OnFrame(a.observe)
	return a, nil
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// LoadBindings installs the enabled bindings from the store, or from the
// configuration when there is no store. A binding whose plugin cannot be
// resolved is skipped with a log line.
func (a *App) LoadBindings() error {
	var rows []*store.Binding
	var err error

	if a.store != nil {
		rows, err = a.store.Bindings().ListEnabled()
	} else {
		rows, err = a.settings.SeedBindings()
	}
	if err != nil {
		return fmt.Errorf("loading bindings: %w", err)
	}

	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	d := a.pipeline.Dispatcher()
	bindings := make([]dispatch.Binding, 0, len(rows))
	for _, row := range rows {
		b, err := a.binding(row, d)
		if err != nil {
			log.Printf("Skipping binding %s for %s: %v", row.Action, row.Label, err)
			continue
		}
		bindings = append(bindings, b)
	}

	if err := d.SetBindings(bindings); err != nil {
		return fmt.Errorf("loading bindings: %w", err)
	}

	a.mu.Lock()
	a.status.Bindings = len(bindings)
	a.mu.Unlock()

	log.Printf("Loaded %d bindings", len(bindings))
	return nil
}

// binding converts a stored row into a dispatch binding.
func (a *App) binding(row *store.Binding, d *dispatch.Dispatcher) (dispatch.Binding, error) {
	label, err := gesture.ParseLabel(row.Label)
	if err != nil {
		return dispatch.Binding{}, err
	}

	var action dispatch.Action = dispatch.LogAction{Description: row.Action}
	if row.PluginName != "" {
		if a.dryRun {
			action = dispatch.LogAction{Description: fmt.Sprintf("%s (%s/%s)", row.Action, row.PluginName, row.PluginAction)}
		} else {
			p, err := a.pluginMgr.Resolve(row.PluginName, row.PluginAction)
			if err != nil {
				return dispatch.Binding{}, err
			}
			action = &plugin.Action{
				Executor: a.pluginExec,
				Plugin:   p,
				Name:     row.PluginAction,
				Params:   row.Params,
				Mode:     d.Mode,
			}
		}
	}

	return dispatch.Binding{
		Mode:     row.Mode,
		Label:    label,
		Name:     row.Action,
		Action:   action,
		Cooldown: time.Duration(row.CooldownMs) * time.Millisecond,
		NextMode: row.NextMode,
	}, nil
}

// OnFrame registers an observer for every processed frame.
func (a *App) OnFrame(fn Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// observe runs on the frame loop after every pipeline step.
func (a *App) observe(res FrameResult) {
	a.mu.Lock()
	a.status.Frames = res.Frame
	a.status.Raw = res.Raw
	a.status.Committed = res.Committed
	a.status.Mode = res.Mode
	a.status.Hand = res.Hand != nil
	if res.Dispatch != nil && res.Dispatch.Status == dispatch.StatusFired {
		a.status.LastAction = res.Dispatch.Action
		a.status.LastFired = res.Change.At
	}
	observers := a.observers
	a.mu.Unlock()

	if res.Change != nil {
		log.Printf("Gesture %s -> %s at frame %d: %s %s",
			res.Change.From, res.Change.To, res.Frame, res.Dispatch.Status, res.Dispatch.Action)
		if res.Dispatch.Switch != "" {
			log.Printf("Mode switched to %s", res.Dispatch.Switch)
		}
		a.record(res)
	}

	for _, fn := range observers {
		fn(res)
	}
}

// record appends a change to the event history.
func (a *App) record(res FrameResult) {
	if a.store == nil {
		return
	}

	ev := &store.Event{
		Label:     res.Change.To.String(),
		Previous:  res.Change.From.String(),
		Mode:      res.Dispatch.Mode,
		Status:    res.Dispatch.Status.String(),
		Action:    res.Dispatch.Action,
		Frame:     int64(res.Change.Frame),
		CreatedAt: res.Change.At,
	}
	if err := a.store.Events().Record(ev); err != nil {
		log.Printf("Failed to record event: %v", err)
		return
	}

}

// ProcessHands runs one detector result through the pipeline.
func (a *App) ProcessHands(hands []detector.HandLandmarks) FrameResult {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.pipeline.ProcessHands(hands)
}

// ProcessFrame detects hands in frame and runs the result through the
// pipeline. A detector error skips the frame and leaves the state alone.
func (a *App) ProcessFrame(frame *gocv.Mat) (FrameResult, error) {
	a.keepLatest(frame)

	hands, err := a.Detector().Detect(frame)
	if err != nil {
		return FrameResult{}, fmt.Errorf("detecting hands: %w", err)
	}

	return a.ProcessHands(hands), nil
}

// SetEnabled enables or disables gesture detection. Disabling ends the
// current gesture without firing anything.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	was := a.enabled
	a.enabled = enabled
	a.mu.Unlock()

	if was && !enabled {
		a.resetStream()
	}
	log.Printf("Gesture detection enabled: %v", enabled)
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// resetStream clears the stabilizer, as when the frame stream stops.
func (a *App) resetStream() {
	a.frameMu.Lock()
	a.pipeline.Reset()
	a.frameMu.Unlock()

	a.mu.Lock()
	a.status.Committed = gesture.None
	a.status.Raw = gesture.None
	a.status.Hand = false
	a.mu.Unlock()
}

// Mode returns the active binding mode.
func (a *App) Mode() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status.Mode
}

// SetMode switches the active binding mode.
func (a *App) SetMode(mode string) {
	a.frameMu.Lock()
	a.pipeline.Dispatcher().SetMode(mode)
	a.frameMu.Unlock()

	a.mu.Lock()
	a.status.Mode = mode
	a.mu.Unlock()
	log.Printf("Mode set to %s", mode)
}

// Status returns a snapshot of the gesture state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.status
	s.Enabled = a.enabled
	s.Running = a.stopCh != nil
	return s
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}

	interval := time.Second / time.Duration(a.settings.Camera.FPS)
	if a.gate != nil {
		a.camera.SetFPS(a.gate.FPS())
		interval = a.gate.Interval()
	} else {
		a.camera.SetFPS(a.settings.Camera.FPS)
	}

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.stopCh, a.done, interval)

	log.Println("Detection pipeline started")
	return nil
}

// Stop halts the frame loop, releases the camera and waits for running
// plugin calls.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	done := a.done
	a.stopCh = nil
	a.done = nil
	a.mu.Unlock()

	<-done

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	if a.gate != nil {
		a.gate.Reset()
	}

	a.resetStream()
	a.pluginExec.Wait()

	log.Println("Detection pipeline stopped")
}

// Close stops the App and releases the detector.
func (a *App) Close() error {
	a.Stop()
	a.pluginExec.Shutdown()

	if a.gate != nil {
		a.gate.Close()
	}

	a.mu.Lock()
	if a.latest != nil {
		a.latest.Close()
		a.latest = nil
	}
	a.mu.Unlock()

	return a.detector.Close()
}

// run is the frame loop. With motion gating it reads frames at the idle
// rate until the scene changes, then at the active rate until the scene
// has been still for the idle timeout. Going idle ends the current
// gesture.
func (a *App) run(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			log.Printf("Error reading frame: %v", err)
			continue
		}

		if a.gate != nil && !a.gateFrame(frame, ticker) {
			a.keepLatest(frame)
			frame.Close()
			continue
		}

		if _, err := a.ProcessFrame(frame); err != nil {
			log.Printf("Error processing frame: %v", err)
		}
		frame.Close()
	}
}

// gateFrame updates the motion gate and reports whether frame should be
// passed to the detector.
func (a *App) gateFrame(frame *gocv.Mat, ticker *time.Ticker) bool {
	active, changed, _ := a.gate.Observe(frame, time.Now())
	if !changed {
		return active
	}

	a.camera.SetFPS(a.gate.FPS())
	ticker.Reset(a.gate.Interval())

	if active {
		log.Printf("Motion detected, detecting at %d fps", a.gate.FPS())
	} else {
		log.Printf("Scene still, idling at %d fps", a.gate.FPS())
		a.resetStream()
	}
	return active
}

func (a *App) keepLatest(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}
	clone := frame.Clone()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest != nil {
		a.latest.Close()
	}
	a.latest = &clone
}

// LatestFrame returns a copy of the most recent camera frame. The caller
// must close it.
func (a *App) LatestFrame() (*gocv.Mat, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.latest == nil {
		return nil, ErrNoFrame
	}
	clone := a.latest.Clone()
	return &clone, nil
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Executor returns the plugin executor.
func (a *App) Executor() *plugin.Executor {
	return a.pluginExec
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetClock replaces the clock used to stamp gesture changes.
func (a *App) SetClock(now func() time.Time) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	a.pipeline.SetClock(now)
}
