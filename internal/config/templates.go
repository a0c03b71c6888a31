package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stockdeck Configuration

[backend]
# Base URL of the dashboard backend REST API
base_url = "http://localhost:5000"
# Websocket endpoint for live updates; derived from base_url when empty
stream_url = ""
# Request timeout (e.g., "10s")
timeout = "10s"

[engine]
# How often the snapshot fetcher pulls the instrument list
fetch_interval = "5s"
# How often the price simulator interpolates displayed prices
simulate_interval = "2500ms"
# How often the secondary ticker tape refreshes
tape_interval = "30s"
# Default result limit for views
default_limit = 50
# Update interval (seconds) requested from the push channel
push_interval = 5

[cache]
# Enable the local view cache for instant rehydration
enabled = true
# Path to the cache database; defaults to ~/.config/stockdeck/viewcache.db
path = ""

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true

[ui]
# Enable colored output
color_enabled = true
# Time format for displayed timestamps
time_format = "15:04:05"
`

// createTemplateConfig writes a starter config.toml so first runs have
// something to edit.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}
