package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

const defaultProfileName = "default"

func profileFileName(profile string) string {
	if profile == "" || profile == defaultProfileName {
		return "settings.toml"
	}
	return "settings_" + profile + ".toml"
}

// ProfileManager owns the active Settings and implements modules.ProfileOps/
// modules.SettingsOps/modules.MCPOps directly, so `/profile`, `/settings`,
// and `/mcp` need no adapter layer.
//
// Grounded on spec §6's profile rule: "settings.toml is the default;
// settings_<profile>.toml is a named profile. Switching profile selects a
// different file; save-as copies the current snapshot."
type ProfileManager struct {
	mu      sync.RWMutex
	dir     string
	active  string
	current Settings
}

// NewProfileManager loads the default profile from dir (creating nothing
// if it does not yet exist — Load tolerates a missing file).
func NewProfileManager(dir string) (*ProfileManager, error) {
	pm := &ProfileManager{dir: dir, active: defaultProfileName}
	cfg, err := Load(filepath.Join(dir, profileFileName(defaultProfileName)))
	if err != nil {
		return nil, err
	}
	pm.current = cfg
	return pm, nil
}

// Active returns a copy of the currently active settings.
func (pm *ProfileManager) Active() Settings {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.current
}

// ActiveName returns the active profile's name ("default" for settings.toml).
func (pm *ProfileManager) ActiveName() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.active
}

// ShowActive implements modules.ProfileOps.
func (pm *ProfileManager) ShowActive() (string, string, error) {
	pm.mu.RLock()
	name, cfg := pm.active, pm.current
	pm.mu.RUnlock()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", "", fmt.Errorf("encoding active settings: %w", err)
	}
	return name, buf.String(), nil
}

// List implements modules.ProfileOps: every settings*.toml file under dir,
// "default" first, remaining profile names sorted.
func (pm *ProfileManager) List() ([]string, error) {
	entries, err := os.ReadDir(pm.dir)
	if os.IsNotExist(err) {
		return []string{defaultProfileName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings directory: %w", err)
	}

	var named []string
	hasDefault := false
	for _, e := range entries {
		name := e.Name()
		switch {
		case name == "settings.toml":
			hasDefault = true
		case strings.HasPrefix(name, "settings_") && strings.HasSuffix(name, ".toml"):
			named = append(named, strings.TrimSuffix(strings.TrimPrefix(name, "settings_"), ".toml"))
		}
	}
	sort.Strings(named)

	out := named
	if hasDefault || len(named) == 0 {
		out = append([]string{defaultProfileName}, named...)
	}
	return out, nil
}

// SaveAs implements modules.ProfileOps: copies the current in-memory
// snapshot to a new named profile file, without switching to it.
func (pm *ProfileManager) SaveAs(name string) error {
	pm.mu.RLock()
	cfg := pm.current
	pm.mu.RUnlock()

	return Save(filepath.Join(pm.dir, profileFileName(name)), cfg)
}

// Switch implements modules.ProfileOps: loads the named profile's file
// (or defaults, if it has never been saved) and makes it active.
func (pm *ProfileManager) Switch(name string) error {
	cfg, err := Load(filepath.Join(pm.dir, profileFileName(name)))
	if err != nil {
		return err
	}

	pm.mu.Lock()
	pm.active = name
	pm.current = cfg
	pm.mu.Unlock()
	return nil
}

// ReplaceActive overwrites the entire active settings snapshot (used by the
// chat actor's SaveSettings command, which hands over a full settings
// document rather than a single field) and persists it to the active
// profile's file.
func (pm *ProfileManager) ReplaceActive(cfg Settings) error {
	pm.mu.Lock()
	pm.current = cfg
	active := pm.active
	pm.mu.Unlock()

	return Save(filepath.Join(pm.dir, profileFileName(active)), cfg)
}

// Show implements modules.SettingsOps.
func (pm *ProfileManager) Show() (string, error) {
	_, contents, err := pm.ShowActive()
	return contents, err
}

// Add implements modules.MCPOps: adds or replaces an MCP server entry and
// persists the active profile immediately.
func (pm *ProfileManager) Add(name, command string, args []string) error {
	pm.mu.Lock()
	if pm.current.MCPServers == nil {
		pm.current.MCPServers = map[string]MCPServerConfig{}
	}
	pm.current.MCPServers[name] = MCPServerConfig{Command: command, Args: args}
	cfg, active := pm.current, pm.active
	pm.mu.Unlock()

	return Save(filepath.Join(pm.dir, profileFileName(active)), cfg)
}

// Remove implements modules.MCPOps.
func (pm *ProfileManager) Remove(name string) error {
	pm.mu.Lock()
	delete(pm.current.MCPServers, name)
	cfg, active := pm.current, pm.active
	pm.mu.Unlock()

	return Save(filepath.Join(pm.dir, profileFileName(active)), cfg)
}
