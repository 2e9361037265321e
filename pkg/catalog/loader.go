package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/leadforge/leadforge/pkg/engine"
)

// Loader reads campaign templates from YAML files and directories.
type Loader struct {
	logger   zerolog.Logger
	validate *validator.Validate
	cache    map[string]*Template
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
}

// NewLoader creates a new template loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "catalog-loader").Logger(),
		validate: validator.New(),
		cache:    make(map[string]*Template),
	}
}

// LoadFromPaths loads templates from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Template, error) {
	var allTemplates []Template

	for _, path := range paths {
		templates, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allTemplates = append(allTemplates, templates...)
	}

	l.logger.Info().
		Int("total", len(allTemplates)).
		Int("sources", len(paths)).
		Msg("Campaign templates loaded from paths")

	return allTemplates, nil
}

// loadFromPath loads templates from a single path (file or directory).
func (l *Loader) loadFromPath(ctx context.Context, path string) ([]Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	template, err := l.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	return []Template{*template}, nil
}

// loadFromDirectory loads all .yaml/.yml files from a directory recursively.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]Template, error) {
	var templates []Template

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if !isTemplateFile(path) {
			return nil
		}

		template, err := l.LoadFromFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load template file")
			return nil // Continue processing other files
		}

		templates = append(templates, *template)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return templates, nil
}

// LoadFromFile loads and validates a template from a single YAML file.
func (l *Loader) LoadFromFile(filePath string) (*Template, error) {
	// Check cache first
	l.mu.RLock()
	if cached, exists := l.cache[filePath]; exists {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var template Template
	if err := yaml.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("failed to parse template YAML: %w", err)
	}

	if template.Name == "" {
		base := filepath.Base(filePath)
		template.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}
	template.Source = filePath
	template.LoadedAt = time.Now()

	if err := l.validate.Struct(&template); err != nil {
		return nil, fmt.Errorf("template validation failed: %w", err)
	}
	if err := engine.ValidateSequence(template.Sequence); err != nil {
		return nil, fmt.Errorf("invalid template sequence: %w", err)
	}

	// Cache the template
	l.mu.Lock()
	l.cache[filePath] = &template
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", filePath).
		Str("template", template.Name).
		Int("steps", len(template.Sequence)).
		Msg("Campaign template loaded from file")

	return &template, nil
}

// Watch starts watching paths for template changes and triggers reload on
// change.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Template) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	l.watcher = watcher

	// Add paths to watcher
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := l.watchDirectory(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	// Start watching in background
	go l.processEvents(ctx, paths, reloadFn)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching template paths")

	return nil
}

// watchDirectory adds all subdirectories of a directory to the watcher.
func (l *Loader) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return l.watcher.Add(path)
		}

		return nil
	})
}

// processEvents processes file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, paths []string, reloadFn func([]Template) error) {
	// Debounce reload events
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if l.watcher != nil {
				_ = l.watcher.Close()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && isTemplateFile(event.Name) {
				l.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Template file changed")

				// Clear cache for this file
				l.mu.Lock()
				delete(l.cache, event.Name)
				l.mu.Unlock()

				// Debounce reload
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(reloadDelay, func() {
					if err := l.triggerReload(ctx, paths, reloadFn); err != nil {
						l.logger.Error().Err(err).Msg("Failed to reload templates")
					}
				})
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// triggerReload reloads all templates from watched paths.
func (l *Loader) triggerReload(ctx context.Context, paths []string, reloadFn func([]Template) error) error {
	l.logger.Info().Msg("Reloading campaign templates...")

	templates, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to reload templates: %w", err)
	}

	if err := reloadFn(templates); err != nil {
		return fmt.Errorf("failed to apply reloaded templates: %w", err)
	}

	l.logger.Info().
		Int("count", len(templates)).
		Msg("Campaign templates reloaded successfully")

	return nil
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache clears the template cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache = make(map[string]*Template)
	l.logger.Debug().Msg("Template cache cleared")
}

func isTemplateFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}
