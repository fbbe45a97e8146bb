package directory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/safego"
)

// MembersFile is the on-disk layout of a static membership table
//
//	sites:
//	  S1: [qa-lead@example.com]
//	regions:
//	  EMEA: [emea-oversight@example.com]
type MembersFile struct {
	Sites   map[string][]string `yaml:"sites"`
	Regions map[string][]string `yaml:"regions"`
}

// StaticDirectory serves a fixed membership table from configuration, optionally overlaid with
// a YAML members file that is reloaded whenever it changes on disk. Keys match case-insensitively.
type StaticDirectory struct {
	mu      sync.RWMutex
	sites   map[string][]string
	regions map[string][]string

	baseSites   map[string][]string
	baseRegions map[string][]string
	filePath    string

	// reload is what the watcher runs on change; Reload unless a test swaps it
	reload func() error
}

// NewStatic builds a static directory and performs the initial members file load
func NewStatic(cfg *config.StaticDirectoryConfig) (*StaticDirectory, error) {
	d := &StaticDirectory{
		baseSites:   foldKeys(cfg.SiteMembers),
		baseRegions: foldKeys(cfg.RegionMembers),
		filePath:    cfg.MembersFile,
	}
	d.reload = d.Reload
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func foldKeys(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[normalizeKey(k)] = cleanMembers(v)
	}
	return out
}

// Reload rebuilds the table from configuration plus the members file. File entries win.
func (d *StaticDirectory) Reload() error {
	sites := make(map[string][]string, len(d.baseSites))
	regions := make(map[string][]string, len(d.baseRegions))
	for k, v := range d.baseSites {
		sites[k] = v
	}
	for k, v := range d.baseRegions {
		regions[k] = v
	}

	if d.filePath != "" {
		file, err := readMembersFile(d.filePath)
		if err != nil {
			return err
		}
		for k, v := range foldKeys(file.Sites) {
			sites[k] = v
		}
		for k, v := range foldKeys(file.Regions) {
			regions[k] = v
		}
	}

	d.mu.Lock()
	d.sites, d.regions = sites, regions
	d.mu.Unlock()
	return nil
}

func readMembersFile(path string) (*MembersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read members file: %w", err)
	}
	var file MembersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse members file %s: %w", path, err)
	}
	return &file, nil
}

// Watch reloads the members file on change until ctx is cancelled. The parent directory is
// watched so atomic replace-by-rename (as editors and config management do) is picked up.
func (d *StaticDirectory) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create members file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(d.filePath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch members file: %w", err)
	}

	target := filepath.Clean(d.filePath)
	safego.Go(func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if err := d.reload(); err != nil {
					// keep serving the last good table
					slog.Warn("members file reload failed", "path", d.filePath, "error", err)
					continue
				}
				slog.Info("members file reloaded", "path", d.filePath)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("members file watcher error", "error", err)
			}
		}
	})
	return nil
}

// SiteMembers returns the configured members of a site
func (d *StaticDirectory) SiteMembers(_ context.Context, site string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyMembers(d.sites[normalizeKey(site)]), nil
}

// RegionMembers returns the configured members of a region
func (d *StaticDirectory) RegionMembers(_ context.Context, region string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyMembers(d.regions[normalizeKey(region)]), nil
}

func copyMembers(m []string) []string {
	out := make([]string, len(m))
	copy(out, m)
	return out
}
