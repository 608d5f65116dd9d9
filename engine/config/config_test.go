package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[log]
level = "debug"

[errors]
max = 8

[pipeline]
manual_bits = 4
sort_layout = false

[[context.versions]]
major = 3
minor = 3
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" || cfg.Errors.Max != 8 {
		t.Fatalf("unexpected log/errors section: %+v %+v", cfg.Log, cfg.Errors)
	}
	if cfg.Pipeline.ManualBits != 4 || cfg.Pipeline.SortLayout || !cfg.Pipeline.SortProgram {
		t.Fatalf("unexpected pipeline section: %+v", cfg.Pipeline)
	}
	if len(cfg.Context.Versions) != 1 || cfg.Context.Versions[0] != (ContextVersion{3, 3}) {
		t.Fatalf("unexpected versions: %+v", cfg.Context.Versions)
	}
	if cfg.Window.Width != 1280 {
		t.Fatalf("window defaults lost: %+v", cfg.Window)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":        `[log`,
		"unknown key":   "[log]\ncolour = true\n",
		"bad level":     "[log]\nlevel = \"loud\"\n",
		"zero errors":   "[errors]\nmax = 0\n",
		"too many bits": "[pipeline]\nmanual_bits = 65\n",
		"no size":       "[window]\nwidth = 0\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	data, err := Default().Encode()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Window != Default().Window {
		t.Fatalf("window mismatch: %+v", cfg.Window)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumen.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[log]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Log.Level == "warn" {
				return
			}
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}
