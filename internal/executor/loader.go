package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/toolsascode/gfm/internal/backends"
	"github.com/toolsascode/gfm/internal/logger"
	"github.com/toolsascode/gfm/internal/registry"
)

// Loader registers migration scripts found on disk. Artifacts compiled
// into the binary register themselves at init time; the loader covers
// artifacts written after the binary was built, and the watcher reports
// drift between disk and registry.
type Loader struct {
	dir          string
	registry     registry.Registry
	seenFiles    map[string]time.Time // files we've seen and their mod times
	mu           sync.RWMutex
	watchContext context.Context
	watchCancel  context.CancelFunc
	watching     bool
}

// artifactName matches {version}_{name} where version is 14 digits
var artifactName = regexp.MustCompile(`^(\d{14})_(.+)$`)

// NewLoader creates a new migration loader
func NewLoader(dir string) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		dir:          dir,
		seenFiles:    make(map[string]time.Time),
		watchContext: ctx,
		watchCancel:  cancel,
	}
}

// LoadAll scans the migrations directory once and registers every
// script that is not already registered
func (l *Loader) LoadAll(reg registry.Registry) error {
	l.registry = reg
	return l.scan(true)
}

// StartWatching starts a background goroutine that rescans the
// migrations directory every minute
func (l *Loader) StartWatching() {
	if l.watching {
		return // Already watching
	}

	l.mu.Lock()
	l.watching = true
	l.mu.Unlock()

	logger.Info("Starting migration file watcher (checking every minute)")

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-l.watchContext.Done():
				logger.Info("Migration file watcher stopped")
				return
			case <-ticker.C:
				if err := l.scan(false); err != nil {
					logger.Warnf("Error scanning for new migrations: %v", err)
				}
			}
		}
	}()
}

// StopWatching stops the background file watcher
func (l *Loader) StopWatching() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.watching {
		return
	}

	l.watchCancel()
	l.watching = false
}

// scan walks the migrations directory structure
// {dir}/{graph}/{app}/{version}_{name}.up.groovy and loads new or
// modified scripts
func (l *Loader) scan(initial bool) error {
	if l.dir == "" {
		return nil
	}

	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		if initial {
			logger.Warnf("Migrations directory does not exist: %s", l.dir)
		}
		return nil
	}

	newFiles := make(map[string]time.Time)
	loadedCount := 0

	err := filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !strings.HasSuffix(path, ".up.groovy") {
			return nil
		}

		relPath, err := filepath.Rel(l.dir, path)
		if err != nil {
			return err
		}

		parts := strings.Split(relPath, string(filepath.Separator))
		if len(parts) < 3 {
			// Not in the {graph}/{app}/... structure, skip
			return nil
		}

		base := strings.TrimSuffix(parts[len(parts)-1], ".up.groovy")
		matches := artifactName.FindStringSubmatch(base)
		if len(matches) != 3 {
			return nil
		}

		version := matches[1]
		name := matches[2]
		graph := parts[0]
		app := parts[1]

		modTime := info.ModTime()
		newFiles[path] = modTime

		l.mu.RLock()
		seenTime, seen := l.seenFiles[path]
		l.mu.RUnlock()

		if !initial && seen && !modTime.After(seenTime) {
			return nil
		}
		if !initial && !seen {
			logger.Infof("New migration file detected: %s (version: %s, name: %s)", path, version, name)
		}

		registered, err := l.loadScript(path, graph, app, version, name)
		if err != nil {
			logger.Warnf("Failed to load migration from %s: %v", path, err)
			return nil // Continue with other files
		}
		if registered {
			loadedCount++
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("error scanning migrations directory: %w", err)
	}

	l.mu.Lock()
	l.seenFiles = newFiles
	l.mu.Unlock()

	if initial {
		logger.Infof("Loaded %d migration(s) from %s", loadedCount, l.dir)
	}
	return nil
}

// loadScript reads one up script and its optional down script and
// registers the migration; already registered ids are checked for
// drift instead
func (l *Loader) loadScript(upPath, graph, app, version, name string) (bool, error) {
	upScript, err := os.ReadFile(upPath)
	if err != nil {
		return false, fmt.Errorf("failed to read up script %s: %w", upPath, err)
	}

	downPath := strings.TrimSuffix(upPath, ".up.groovy") + ".down.groovy"
	downScript, err := os.ReadFile(downPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read down script %s: %w", downPath, err)
	}

	migration := &backends.MigrationScript{
		Version:    version,
		Name:       name,
		Graph:      graph,
		App:        app,
		UpScript:   string(upScript),
		DownScript: string(downScript),
		Source:     upPath,
	}

	if existing, ok := l.registry.GetByID(migration.ID()); ok {
		// Usually registered by a compiled artifact. Report drift
		// instead of re-registering.
		if existing.UpScript != migration.UpScript {
			logger.Warnf("Migration %s differs from its registered script; %s was edited after the build", migration.ID(), upPath)
		}
		return false, nil
	}

	// Scripts loaded from disk carry no dependency metadata; version
	// order decides their place in the chain.
	if err := l.registry.Register(migration); err != nil {
		return false, fmt.Errorf("failed to register migration: %w", err)
	}

	logger.Infof("Registered migration %s from %s", migration.ID(), upPath)
	return true, nil
}
