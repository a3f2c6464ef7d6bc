package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
)

// ManifestFile is the manifest name looked up in every plugin directory.
const ManifestFile = "plugin.json"

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrActionNotSupported is returned when a plugin does not list an action.
	ErrActionNotSupported = errors.New("plugin action not supported")
	// ErrInvalidManifest is returned for a manifest that cannot be run.
	ErrInvalidManifest = errors.New("invalid plugin manifest")
)

// Manager holds the plugins found under one directory, keyed by name.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	mu        sync.RWMutex
}

// NewManager creates a Manager for pluginDir. Nothing is read until Discover.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
	}
}

// Discover replaces the known plugins with those found in the immediate
// subdirectories of the plugin directory. A missing plugin directory means
// no plugins. Subdirectories without a manifest are ignored; broken
// manifests and duplicate names are logged and skipped.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	root, err := filepath.Abs(m.pluginDir)
	if err != nil {
		return fmt.Errorf("plugin dir %s: %w", m.pluginDir, err)
	}

	entries, err := os.ReadDir(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		entries = nil
	case err != nil:
		return fmt.Errorf("reading plugin dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p, err := loadPlugin(filepath.Join(root, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Printf("Skipping plugin %s: %v", entry.Name(), err)
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			log.Printf("Skipping plugin %s: name %q already used by %s", entry.Name(), p.Manifest.Name, prev.Path)
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	log.Printf("Discovered %d plugins in %s", len(found), root)
	return nil
}

// loadPlugin reads dir/plugin.json and checks that the manifest names a
// runnable executable inside dir. It returns an fs.ErrNotExist error when
// dir has no manifest.
func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	switch {
	case manifest.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidManifest)
	case manifest.Executable == "":
		return nil, fmt.Errorf("%w: executable is required", ErrInvalidManifest)
	case len(manifest.Actions) == 0:
		return nil, fmt.Errorf("%w: no actions listed", ErrInvalidManifest)
	}

	if !filepath.IsLocal(manifest.Executable) {
		return nil, fmt.Errorf("%w: executable %q is outside the plugin directory", ErrInvalidManifest, manifest.Executable)
	}

	exe := filepath.Join(dir, manifest.Executable)
	info, err := os.Stat(exe)
	if err != nil {
		return nil, fmt.Errorf("%w: executable %s: %v", ErrInvalidManifest, manifest.Executable, err)
	}
	if info.IsDir() || (runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0) {
		return nil, fmt.Errorf("%w: %s is not executable", ErrInvalidManifest, manifest.Executable)
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: exe,
	}, nil
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return plugin, nil
}

// Resolve returns the named plugin after checking that it supports action.
func (m *Manager) Resolve(name, action string) (*Plugin, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !p.Supports(action) {
		return nil, fmt.Errorf("%s/%s: %w", name, action, ErrActionNotSupported)
	}
	return p, nil
}

// List returns the discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	m.mu.RUnlock()

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
