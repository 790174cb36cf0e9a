// Package config loads tool settings: defaults, then an optional gdm.yaml
// in the project root, then GDM_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIBaseURL is the Godot Asset Library API.
	DefaultAPIBaseURL = "https://godotengine.org/asset-library/api"

	defaultManifestPath = "gdm.json"
	defaultCacheDir     = ".gdm"
	defaultProjectFile  = "project.godot"
	defaultAddonsDir    = "addons"
	defaultWorkers      = 4
	defaultHTTPTimeout  = 30 * time.Second
)

// Settings holds everything the engine needs to locate its three stores and
// talk to the catalog. Paths are relative to the Godot project root the CLI
// runs in.
type Settings struct {
	APIBaseURL   string        `yaml:"api_base_url"`
	ManifestPath string        `yaml:"manifest"`
	CacheDir     string        `yaml:"cache_dir"`
	ProjectFile  string        `yaml:"project_file"`
	AddonsDir    string        `yaml:"addons_dir"`
	Workers      int           `yaml:"workers"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		APIBaseURL:   DefaultAPIBaseURL,
		ManifestPath: defaultManifestPath,
		CacheDir:     defaultCacheDir,
		ProjectFile:  defaultProjectFile,
		AddonsDir:    defaultAddonsDir,
		Workers:      defaultWorkers,
		HTTPTimeout:  defaultHTTPTimeout,
	}
}

// Load builds settings from defaults, the settings file at path (skipped if
// the file does not exist), and finally environment overrides.
func Load(path string) (Settings, error) {
	s := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	s.applyEnv()
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("GDM_API_URL"); v != "" {
		s.APIBaseURL = v
	}
	if v := os.Getenv("GDM_MANIFEST"); v != "" {
		s.ManifestPath = v
	}
	if v := os.Getenv("GDM_CACHE_DIR"); v != "" {
		s.CacheDir = v
	}
	if v := os.Getenv("GDM_PROJECT_FILE"); v != "" {
		s.ProjectFile = v
	}
	if v := os.Getenv("GDM_ADDONS_DIR"); v != "" {
		s.AddonsDir = v
	}
	if v := os.Getenv("GDM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Workers = n
		}
	}
	if v := os.Getenv("GDM_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.HTTPTimeout = d
		}
	}
}

func (s *Settings) validate() error {
	if s.Workers < 1 {
		s.Workers = defaultWorkers
	}
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = defaultHTTPTimeout
	}
	if s.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	return nil
}
