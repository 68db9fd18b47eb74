package config

import (
	"os"
	"strings"
	"sync"
)

// Config manages service configuration
type Config struct {
	mu     sync.RWMutex
	values map[string]string

	// Define which keys require restart when changed
	restartKeys []string
}

// New creates a new configuration manager
func New() *Config {
	return &Config{
		values: make(map[string]string),
		restartKeys: []string{
			"database.host",
			"database.port",
			"database.name",
			"server.port",
			"server.host",
		},
	}
}

// Get retrieves a configuration value
func (c *Config) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// GetOrDefault retrieves a configuration value, returning def when unset
func (c *Config) GetOrDefault(key, def string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return def
}

// GetAll returns a copy of all configuration values
func (c *Config) GetAll() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copy := make(map[string]string)
	for k, v := range c.values {
		copy[k] = v
	}
	return copy
}

// Update updates configuration values
func (c *Config) Update(values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range values {
		c.values[k] = v
	}
}

// RequiresRestart checks if any changed keys require a restart
func (c *Config) RequiresRestart(oldConfig map[string]string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, key := range c.restartKeys {
		if oldConfig[key] != c.values[key] {
			return true
		}
	}

	return false
}

// LoadFromEnv populates the config from SHOPSCHED_* environment variables.
// SHOPSCHED_DATABASE_HOST becomes database.host, and so on.
func (c *Config) LoadFromEnv() {
	const prefix = "SHOPSCHED_"

	values := make(map[string]string)
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, prefix) {
			continue
		}
		pair := strings.SplitN(entry, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(pair[0], prefix), "_", "."))
		values[key] = pair[1]
	}

	c.Update(values)
}
