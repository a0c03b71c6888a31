package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndTemplateCreation(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.StreamURL != "ws://localhost:5000/ws/stocks" {
		t.Errorf("derived stream_url = %q", cfg.Backend.StreamURL)
	}
	if cfg.Engine.FetchInterval != 5*time.Second {
		t.Errorf("fetch_interval = %s", cfg.Engine.FetchInterval)
	}
	if cfg.Engine.SimulateInterval != 2500*time.Millisecond {
		t.Errorf("simulate_interval = %s", cfg.Engine.SimulateInterval)
	}
	if cfg.Engine.DefaultLimit != 50 {
		t.Errorf("default_limit = %d", cfg.Engine.DefaultLimit)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache disabled by default")
	}

	// A first run leaves a template behind for the user to edit.
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template config not created: %v", err)
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[backend]
base_url = "https://quotes.example.com"

[engine]
fetch_interval = "10s"
simulate_interval = "2s"
default_limit = 25
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend.BaseURL != "https://quotes.example.com" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.StreamURL != "wss://quotes.example.com/ws/stocks" {
		t.Errorf("stream_url = %q", cfg.Backend.StreamURL)
	}
	if cfg.Engine.FetchInterval != 10*time.Second || cfg.Engine.DefaultLimit != 25 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("STOCKDECK_API_URL", "http://10.0.0.5:8080")
	t.Setenv("STOCKDECK_AUTH_TOKEN", "secret")
	t.Setenv("STOCKDECK_LIMIT", "15")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend.BaseURL != "http://10.0.0.5:8080" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.StreamURL != "ws://10.0.0.5:8080/ws/stocks" {
		t.Errorf("stream_url not re-derived: %q", cfg.Backend.StreamURL)
	}
	if cfg.Backend.AuthToken != "secret" {
		t.Errorf("auth token = %q", cfg.Backend.AuthToken)
	}
	if cfg.Engine.DefaultLimit != 15 {
		t.Errorf("limit = %d", cfg.Engine.DefaultLimit)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend: Backend{BaseURL: "http://localhost:5000"},
			Engine: EngineConfig{
				FetchInterval:    5 * time.Second,
				SimulateInterval: 2500 * time.Millisecond,
				DefaultLimit:     50,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.Backend.BaseURL = "" }, true},
		{"zero fetch interval", func(c *Config) { c.Engine.FetchInterval = 0 }, true},
		{"simulate slower than fetch", func(c *Config) { c.Engine.SimulateInterval = 6 * time.Second }, true},
		{"negative limit", func(c *Config) { c.Engine.DefaultLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeriveStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:5000", "ws://localhost:5000/ws/stocks"},
		{"https://api.example.com", "wss://api.example.com/ws/stocks"},
	}
	for _, tt := range tests {
		if got := deriveStreamURL(tt.base); got != tt.want {
			t.Errorf("deriveStreamURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
