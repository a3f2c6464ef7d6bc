package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"gocv.io/x/gocv"
)

// closedCamera never delivers a frame; tests drive the App through
// ProcessHands instead.
type closedCamera struct{}

func (closedCamera) Open() error                   { return nil }
func (closedCamera) Close() error                  { return nil }
func (closedCamera) ReadFrame() (*gocv.Mat, error) { return nil, capture.ErrCameraNotOpen }
func (closedCamera) SetFPS(int)                    {}
func (closedCamera) FPS() int                      { return capture.DefaultFPS }
func (closedCamera) IsOpen() bool                  { return false }

func newTestApp(t *testing.T, settings *config.Config, s *store.Store) *App {
	t.Helper()

	if settings == nil {
		settings = config.Default()
	}
	settings.Plugins.Dir = t.TempDir()

	a, err := New(Config{
		Settings: settings,
		Store:    s,
		Camera:   closedCamera{},
		Detector: detector.NewMockDetector(),
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func repeat(h detector.HandLandmarks, n int) [][]detector.HandLandmarks {
	frames := make([][]detector.HandLandmarks, n)
	for i := range frames {
		frames[i] = []detector.HandLandmarks{h}
	}
	return frames
}

func TestApp_LoadBindingsFromStore(t *testing.T) {
	s := newTestStore(t)
	for _, b := range []*store.Binding{
		{ID: "b1", Mode: "default", Label: "FIST", Action: "pause", Enabled: true},
		{ID: "b2", Mode: "default", Label: "PINCH", Action: "louder", PluginName: "media-control", PluginAction: "volume-up", Enabled: true},
		{ID: "b3", Mode: "default", Label: "OPEN_PALM", Action: "off", Enabled: false},
	} {
		if err := s.Bindings().Create(b); err != nil {
			t.Fatalf("failed to create binding: %v", err)
		}
	}

	a := newTestApp(t, nil, s)
	if err := a.LoadBindings(); err != nil {
		t.Fatalf("LoadBindings() error = %v", err)
	}

	// The plugin binding is skipped because no plugin was discovered, and
	// the disabled one is never loaded.
	if got := a.Status().Bindings; got != 1 {
		t.Errorf("expected 1 loaded binding, got %d", got)
	}
}

func TestApp_RecordsEvents(t *testing.T) {
	s := newTestStore(t)
	if err := s.Bindings().Create(&store.Binding{ID: "b1", Mode: "default", Label: "FIST", Action: "pause", Enabled: true}); err != nil {
		t.Fatalf("failed to create binding: %v", err)
	}

	settings := config.Default()
	settings.Stabilizer.RunLength = 3
	a := newTestApp(t, settings, s)
	if err := a.LoadBindings(); err != nil {
		t.Fatalf("LoadBindings() error = %v", err)
	}
	a.SetEnabled(true)

	for _, hands := range repeat(detector.FistLandmarks(), 3) {
		a.ProcessHands(hands)
	}
	for _, hands := range repeat(detector.PointingLandmarks(), 3) {
		a.ProcessHands(hands)
	}

	events, err := s.Events().Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	if events[1].Label != "FIST" || events[1].Status != "fired" || events[1].Action != "pause" {
		t.Errorf("unexpected first event: %+v", events[1])
	}
	if events[0].Label != "POINTING" || events[0].Previous != "FIST" || events[0].Status != "unbound" {
		t.Errorf("unexpected second event: %+v", events[0])
	}

	st := a.Status()
	if st.Committed != gesture.Pointing {
		t.Errorf("expected committed POINTING, got %s", st.Committed)
	}
	if st.LastAction != "pause" {
		t.Errorf("expected last action pause, got %q", st.LastAction)
	}
	if st.Frames != 6 {
		t.Errorf("expected 6 frames, got %d", st.Frames)
	}
}

func TestApp_DisableResetsGesture(t *testing.T) {
	settings := config.Default()
	settings.Stabilizer.RunLength = 2
	a := newTestApp(t, settings, nil)
	a.SetEnabled(true)

	for _, hands := range repeat(detector.OpenPalmLandmarks(), 2) {
		a.ProcessHands(hands)
	}
	if got := a.Status().Committed; got != gesture.OpenPalm {
		t.Fatalf("expected OPEN_PALM, got %s", got)
	}

	a.SetEnabled(false)

	st := a.Status()
	if st.Enabled {
		t.Error("expected app to be disabled")
	}
	if st.Committed != gesture.None {
		t.Errorf("expected NONE after disable, got %s", st.Committed)
	}
}

func TestApp_DryRunLoadsConfigBindings(t *testing.T) {
	settings := config.Default()
	settings.Plugins.Dir = t.TempDir()

	a, err := New(Config{
		Settings: settings,
		Camera:   closedCamera{},
		Detector: detector.NewMockDetector(),
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	defer a.Close()

	if err := a.LoadBindings(); err != nil {
		t.Fatalf("LoadBindings() error = %v", err)
	}
	if got := a.Status().Bindings; got != len(settings.Dispatch.Bindings) {
		t.Errorf("expected %d bindings in dry run, got %d", len(settings.Dispatch.Bindings), got)
	}
}

func TestApp_SetModeAndObservers(t *testing.T) {
	settings := config.Default()
	settings.Stabilizer.RunLength = 1
	a := newTestApp(t, settings, nil)

	var seen []FrameResult
	a.OnFrame(func(r FrameResult) { seen = append(seen, r) })

	a.SetMode("media")
	if a.Mode() != "media" {
		t.Errorf("expected mode media, got %q", a.Mode())
	}

	a.ProcessHands(nil)
	if len(seen) != 1 || seen[0].Mode != "media" {
		t.Errorf("expected one observed frame in mode media, got %+v", seen)
	}
}

func TestApp_LatestFrameBeforeCapture(t *testing.T) {
	a := newTestApp(t, nil, nil)

	if _, err := a.LatestFrame(); err != ErrNoFrame {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestApp_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	settings := config.Default()
	settings.Plugins.Dir = t.TempDir()
	settings.Camera.FPS = 30
	settings.Stabilizer.RunLength = 3

	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})

	cam := capture.NewBlankCamera()
	a, err := New(Config{Settings: settings, Camera: cam, Detector: mock, DryRun: true})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	defer a.Close()

	if err := a.LoadBindings(); err != nil {
		t.Fatalf("LoadBindings() error = %v", err)
	}
	a.SetEnabled(true)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.Status().Running {
		t.Error("expected app to be running")
	}

	deadline := time.Now().Add(3 * time.Second)
	for a.Status().Committed != gesture.Fist && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := a.Status().Committed; got != gesture.Fist {
		t.Fatalf("expected FIST to be committed from camera frames, got %s", got)
	}

	frame, err := a.LatestFrame()
	if err != nil {
		t.Fatalf("LatestFrame() error = %v", err)
	}
	frame.Close()

	a.Stop()

	st := a.Status()
	if st.Running {
		t.Error("expected app to be stopped")
	}
	if st.Committed != gesture.None {
		t.Errorf("expected NONE after stop, got %s", st.Committed)
	}
	if cam.IsOpen() {
		t.Error("expected camera to be closed")
	}
}
