// Package client implements the host-side synchronization pass: scan the
// local sync paths, diff against the authority, stage downloads and leave a
// deferred update manifest behind for the updater.
package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".modsync", "config.json")
	DefaultServerURL  = "http://localhost:7870"
)

type Config struct {
	ServerURL string              `json:"server_url" mapstructure:"server_url"`
	WorkDir   string              `json:"work_dir" mapstructure:"work_dir"`
	SyncPaths []snapshot.SyncPath `json:"sync_paths" mapstructure:"sync_paths"`

	// Exclude holds gitignore-style patterns matched against the
	// slash-relative path of every scanned local file.
	Exclude []string `json:"exclude,omitempty" mapstructure:"exclude"`

	// ExcludeGlobs holds `**`-style glob patterns (case-insensitive, full
	// match) applied the same way.
	ExcludeGlobs []string `json:"exclude_globs,omitempty" mapstructure:"exclude_globs"`

	Headless bool   `json:"headless,omitempty" mapstructure:"headless"`
	Path     string `json:"-" mapstructure:"-"`
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir is required")
	}
	if len(snapshot.ActivePaths(c.SyncPaths)) == 0 {
		return fmt.Errorf("no active sync paths configured")
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
