package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceCatalog loads RSS source definitions from *.yml files.
type SourceCatalog struct {
	dir   string
	cache map[string]*SourceDefinition
	mu    sync.RWMutex
}

func NewSourceCatalog(dir string) *SourceCatalog {
	return &SourceCatalog{
		dir:   dir,
		cache: make(map[string]*SourceDefinition),
	}
}

// Run (re)loads every definition in the directory. A missing directory
// yields an empty catalog.
func (sc *SourceCatalog) Run() error {
	if _, err := os.Stat(sc.dir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.dir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	loaded := make(map[string]*SourceDefinition, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		def, err := sc.parse(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		def.Name = name

		if err := sc.validate(def); err != nil {
			return fmt.Errorf("invalid source %s: %w", file, err)
		}

		loaded[name] = def
		slog.Debug("Source definition loaded", "source", name, "enabled", def.Settings.Enabled)
	}

	sc.mu.Lock()
	sc.cache = loaded
	sc.mu.Unlock()

	return nil
}

func (sc *SourceCatalog) Get(name string) (*SourceDefinition, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	def, ok := sc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source definition with name '%s' not found", name)
	}
	return def, nil
}

// All returns the definitions sorted by name.
func (sc *SourceCatalog) All() []*SourceDefinition {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	defs := make([]*SourceDefinition, 0, len(sc.cache))
	for _, def := range sc.cache {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (sc *SourceCatalog) Count() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func (sc *SourceCatalog) parse(file string) (*SourceDefinition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var def SourceDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if def.Settings.Timeout == 0 {
		def.Settings.Timeout = 30
	}

	return &def, nil
}

func (sc *SourceCatalog) validate(def *SourceDefinition) error {
	if def == nil {
		return fmt.Errorf("source definition is nil")
	}
	if def.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if def.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if def.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return ValidateFilters(def.Filters)
}
