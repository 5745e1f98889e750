package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/faceid/internal/config"
)

// Opener connects to a backend described by cfg.
type Opener func(cfg *config.DatabaseConfig) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers a driver's Opener under its config name.
// This is called by the driver packages to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[name]; dup {
		panic("database: backend registered twice: " + name)
	}
	backends[name] = open
}

// Backends returns the registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects to the backend named by cfg.Driver.
func Open(cfg *config.DatabaseConfig) (Store, error) {
	backendsMu.RLock()
	open, ok := backends[cfg.Driver]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database backend %q not registered (available: %v)", cfg.Driver, Backends())
	}
	return open(cfg)
}
