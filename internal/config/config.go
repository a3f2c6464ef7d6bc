// Package config loads and saves the mudra configuration file.
//
// Values come from, in increasing priority: built-in defaults, the YAML
// file, MUDRA_* environment variables and command-line flags bound by the
// caller. Nothing is clamped; Validate rejects values that cannot work.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned (wrapped) when a configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix for environment overrides,
// e.g. MUDRA_STABILIZER_RUN_LENGTH.
const EnvPrefix = "MUDRA"

// Config holds all user configuration for mudra.
type Config struct {
	DataDir    string           `mapstructure:"data_dir" yaml:"data_dir"`
	Camera     CameraConfig     `mapstructure:"camera" yaml:"camera"`
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector"`
	Features   FeaturesConfig   `mapstructure:"features" yaml:"features"`
	Stabilizer StabilizerConfig `mapstructure:"stabilizer" yaml:"stabilizer"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
	Plugins    PluginsConfig    `mapstructure:"plugins" yaml:"plugins"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// CameraConfig selects the capture device and frame pacing.
type CameraConfig struct {
	Device    int          `mapstructure:"device" yaml:"device"`
	FPS       int          `mapstructure:"fps" yaml:"fps"`
	Mirror    bool         `mapstructure:"mirror" yaml:"mirror"` // flip frames horizontally before detection
	Motion    MotionConfig `mapstructure:"motion" yaml:"motion"`
	IdleFPS   int          `mapstructure:"idle_fps" yaml:"idle_fps"`
	ActiveFPS int          `mapstructure:"active_fps" yaml:"active_fps"`
}

// MotionConfig controls motion gating. When enabled, the detector only runs
// while the scene is changing.
type MotionConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Threshold   float64       `mapstructure:"threshold" yaml:"threshold"` // percent of pixels
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// DetectorConfig configures the MediaPipe helper process.
type DetectorConfig struct {
	MaxHands      int     `mapstructure:"max_hands" yaml:"max_hands"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	MinTracking   float64 `mapstructure:"min_tracking" yaml:"min_tracking"`
	Script        string  `mapstructure:"script" yaml:"script,omitempty"`
	Python        string  `mapstructure:"python" yaml:"python,omitempty"`
}

// FeaturesConfig holds the feature extraction thresholds.
type FeaturesConfig struct {
	OpenMargin     float64 `mapstructure:"open_margin" yaml:"open_margin"`
	ThumbMargin    float64 `mapstructure:"thumb_margin" yaml:"thumb_margin"`
	ThumbReach     float64 `mapstructure:"thumb_reach" yaml:"thumb_reach"`
	PinchThreshold float64 `mapstructure:"pinch_threshold" yaml:"pinch_threshold"`
	UseDepth       bool    `mapstructure:"use_depth" yaml:"use_depth"`
}

// StabilizerConfig holds the debounce setting.
type StabilizerConfig struct {
	RunLength int `mapstructure:"run_length" yaml:"run_length"`
}

// DispatchConfig holds the initial mode and the bindings seeded into an
// empty database.
type DispatchConfig struct {
	InitialMode string          `mapstructure:"initial_mode" yaml:"initial_mode"`
	Bindings    []BindingConfig `mapstructure:"bindings" yaml:"bindings"`
}

// BindingConfig describes one gesture binding in the config file.
type BindingConfig struct {
	Mode         string         `mapstructure:"mode" yaml:"mode,omitempty"`
	Label        string         `mapstructure:"label" yaml:"label"`
	Action       string         `mapstructure:"action" yaml:"action"`
	Plugin       string         `mapstructure:"plugin" yaml:"plugin,omitempty"`
	PluginAction string         `mapstructure:"plugin_action" yaml:"plugin_action,omitempty"`
	Params       map[string]any `mapstructure:"params" yaml:"params,omitempty"`
	Cooldown     time.Duration  `mapstructure:"cooldown" yaml:"cooldown"`
	NextMode     string         `mapstructure:"next_mode" yaml:"next_mode,omitempty"`
}

// PluginsConfig locates plugins and bounds their run time.
type PluginsConfig struct {
	Dir     string        `mapstructure:"dir" yaml:"dir"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr      string `mapstructure:"addr" yaml:"addr"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`
}

// StoreConfig bounds the event history.
type StoreConfig struct {
	MaxEvents int `mapstructure:"max_events" yaml:"max_events"`
}

// DefaultDir returns ~/.mudra, falling back to ./.mudra when the home
// directory cannot be determined.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	th := gesture.DefaultThresholds()
	dc := detector.DefaultConfig()
	dir := DefaultDir()

	return &Config{
		DataDir: dir,
		Camera: CameraConfig{
			Device:    0,
			FPS:       15,
			Mirror:    true,
			IdleFPS:   5,
			ActiveFPS: 15,
			Motion: MotionConfig{
				Enabled:     false,
				Threshold:   1.0,
				IdleTimeout: 2 * time.Second,
			},
		},
		Detector: DetectorConfig{
			MaxHands:      dc.MaxHands,
			MinConfidence: dc.MinConfidence,
			MinTracking:   dc.MinTrackingConf,
		},
		Features: FeaturesConfig{
			OpenMargin:     th.OpenMargin,
			ThumbMargin:    th.ThumbMargin,
			ThumbReach:     th.ThumbReach,
			PinchThreshold: th.PinchThreshold,
			UseDepth:       th.UseDepth,
		},
		Stabilizer: StabilizerConfig{RunLength: gesture.DefaultRunLength},
		Dispatch: DispatchConfig{
			InitialMode: "default",
			Bindings:    DefaultBindings(),
		},
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dir, "plugins"),
			Timeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Enabled:   true,
			Addr:      "127.0.0.1:8080",
			StaticDir: "web",
		},
		Store: StoreConfig{MaxEvents: 1000},
	}
}

// DefaultBindings returns the layout used on first run. The default mode
// drives media keys: OPEN_PALM plays or pauses, FIST goes back a track,
// POINTING skips ahead and THUMBS_UP raises the volume. PINCH toggles the
// keys mode, which sends the same commands as plain keystrokes for players
// that ignore media keys, such as browser tabs.
func DefaultBindings() []BindingConfig {
	return []BindingConfig{
		{Mode: "default", Label: "OPEN_PALM", Action: "play-pause", Plugin: "media-control", PluginAction: "media-play-pause", Cooldown: time.Second},
		{Mode: "default", Label: "FIST", Action: "previous-track", Plugin: "media-control", PluginAction: "media-prev", Cooldown: time.Second},
		{Mode: "default", Label: "POINTING", Action: "next-track", Plugin: "media-control", PluginAction: "media-next", Cooldown: time.Second},
		{Mode: "default", Label: "THUMBS_UP", Action: "volume-up", Plugin: "media-control", PluginAction: "volume-up", Params: map[string]any{"delta": 10}, Cooldown: 500 * time.Millisecond},
		{Mode: "default", Label: "PINCH", Action: "enter-keys-mode", Cooldown: time.Second, NextMode: "keys"},
		{Mode: "keys", Label: "OPEN_PALM", Action: "key-space", Plugin: "keyboard", PluginAction: "keystroke", Params: map[string]any{"key": "space"}, Cooldown: time.Second},
		{Mode: "keys", Label: "FIST", Action: "key-previous", Plugin: "keyboard", PluginAction: "shortcut", Params: map[string]any{"key": "left", "modifiers": []any{"control"}}, Cooldown: time.Second},
		{Mode: "keys", Label: "POINTING", Action: "key-next", Plugin: "keyboard", PluginAction: "shortcut", Params: map[string]any{"key": "right", "modifiers": []any{"control"}}, Cooldown: time.Second},
		{Mode: "keys", Label: "THUMBS_UP", Action: "key-plus", Plugin: "keyboard", PluginAction: "keystroke", Params: map[string]any{"key": "+"}, Cooldown: 500 * time.Millisecond},
		{Mode: "keys", Label: "PINCH", Action: "leave-keys-mode", Cooldown: time.Second, NextMode: "default"},
	}
}

// NewViper returns a viper instance with defaults and environment
// overrides registered. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("camera.device", d.Camera.Device)
	v.SetDefault("camera.fps", d.Camera.FPS)
	v.SetDefault("camera.mirror", d.Camera.Mirror)
	v.SetDefault("camera.idle_fps", d.Camera.IdleFPS)
	v.SetDefault("camera.active_fps", d.Camera.ActiveFPS)
	v.SetDefault("camera.motion.enabled", d.Camera.Motion.Enabled)
	v.SetDefault("camera.motion.threshold", d.Camera.Motion.Threshold)
	v.SetDefault("camera.motion.idle_timeout", d.Camera.Motion.IdleTimeout)
	v.SetDefault("detector.max_hands", d.Detector.MaxHands)
	v.SetDefault("detector.min_confidence", d.Detector.MinConfidence)
	v.SetDefault("detector.min_tracking", d.Detector.MinTracking)
	v.SetDefault("detector.script", "")
	v.SetDefault("detector.python", "")
	v.SetDefault("features.open_margin", d.Features.OpenMargin)
	v.SetDefault("features.thumb_margin", d.Features.ThumbMargin)
	v.SetDefault("features.thumb_reach", d.Features.ThumbReach)
	v.SetDefault("features.pinch_threshold", d.Features.PinchThreshold)
	v.SetDefault("features.use_depth", d.Features.UseDepth)
	v.SetDefault("stabilizer.run_length", d.Stabilizer.RunLength)
	v.SetDefault("dispatch.initial_mode", d.Dispatch.InitialMode)
	v.SetDefault("plugins.dir", d.Plugins.Dir)
	v.SetDefault("plugins.timeout", d.Plugins.Timeout)
	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("store.max_events", d.Store.MaxEvents)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file at path into v and returns the validated
// result. An empty path looks for config.yaml in DefaultDir and falls back
// to defaults when there is none; an explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if !v.IsSet("dispatch.bindings") {
		cfg.Dispatch.Bindings = DefaultBindings()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.fps must be > 0, got %d", c.Camera.FPS))
	}
	if c.Camera.Motion.Enabled {
		if c.Camera.IdleFPS <= 0 || c.Camera.ActiveFPS <= 0 {
			errs = append(errs, fmt.Errorf("camera idle_fps and active_fps must be > 0, got %d and %d",
				c.Camera.IdleFPS, c.Camera.ActiveFPS))
		}
		if c.Camera.Motion.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("camera.motion.threshold must be > 0, got %g", c.Camera.Motion.Threshold))
		}
	}

	if c.Detector.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector.max_hands must be >= 1, got %d", c.Detector.MaxHands))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector.min_confidence must be within [0, 1], got %g", c.Detector.MinConfidence))
	}
	if c.Detector.MinTracking < 0 || c.Detector.MinTracking > 1 {
		errs = append(errs, fmt.Errorf("detector.min_tracking must be within [0, 1], got %g", c.Detector.MinTracking))
	}

	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("features: %w", err))
	}

	if c.Stabilizer.RunLength < 1 {
		errs = append(errs, fmt.Errorf("stabilizer.run_length must be >= 1, got %d", c.Stabilizer.RunLength))
	}

	if c.Plugins.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("plugins.timeout must be > 0, got %s", c.Plugins.Timeout))
	}
	if c.Store.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("store.max_events must be >= 0, got %d", c.Store.MaxEvents))
	}

	seen := make(map[string]bool)
	for i, b := range c.Dispatch.Bindings {
		if err := b.validate(); err != nil {
			errs = append(errs, fmt.Errorf("dispatch.bindings[%d]: %w", i, err))
			continue
		}
		label, _ := gesture.ParseLabel(b.Label)
		key := b.Mode + "/" + string(label)
		if seen[key] {
			errs = append(errs, fmt.Errorf("dispatch.bindings[%d]: duplicate binding for %s in mode %q", i, label, b.Mode))
		}
		seen[key] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (b BindingConfig) validate() error {
	label, err := gesture.ParseLabel(b.Label)
	if err != nil {
		return err
	}
	if label == gesture.None {
		return errors.New("NONE cannot be bound")
	}
	if b.Action == "" {
		return errors.New("action name is required")
	}
	if b.Plugin != "" && b.PluginAction == "" {
		return fmt.Errorf("plugin %q needs a plugin_action", b.Plugin)
	}
	if b.Cooldown < 0 {
		return fmt.Errorf("cooldown must be >= 0, got %s", b.Cooldown)
	}
	return nil
}

// Thresholds returns the feature thresholds.
func (c *Config) Thresholds() gesture.Thresholds {
	return gesture.Thresholds{
		OpenMargin:     c.Features.OpenMargin,
		ThumbMargin:    c.Features.ThumbMargin,
		ThumbReach:     c.Features.ThumbReach,
		PinchThreshold: c.Features.PinchThreshold,
		UseDepth:       c.Features.UseDepth,
	}
}

// DetectorConfig returns the MediaPipe detector settings.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		MinConfidence:   c.Detector.MinConfidence,
		MinTrackingConf: c.Detector.MinTracking,
		Script:          c.Detector.Script,
		Python:          c.Detector.Python,
	}
}

// DBPath returns the SQLite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// SeedBindings converts the configured bindings into store rows with fresh
// IDs. Labels are stored in canonical form.
func (c *Config) SeedBindings() ([]*store.Binding, error) {
	out := make([]*store.Binding, 0, len(c.Dispatch.Bindings))
	for _, b := range c.Dispatch.Bindings {
		label, err := gesture.ParseLabel(b.Label)
		if err != nil {
			return nil, err
		}

		var params json.RawMessage
		if len(b.Params) > 0 {
			params, err = json.Marshal(b.Params)
			if err != nil {
				return nil, fmt.Errorf("encoding params for %s: %w", b.Action, err)
			}
		}

		out = append(out, &store.Binding{
			ID:           uuid.New().String(),
			Mode:         b.Mode,
			Label:        label.String(),
			Action:       b.Action,
			PluginName:   b.Plugin,
			PluginAction: b.PluginAction,
			Params:       params,
			CooldownMs:   b.Cooldown.Milliseconds(),
			NextMode:     b.NextMode,
			Enabled:      true,
		})
	}
	return out, nil
}
