// Package config loads the arcachectl configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath overrides the default config path.
const EnvPath = "ARCACHE_CONFIG"

type Redis struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

type Log struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// File mirrors the client options a CLI user can tune. Durations are Go
// duration strings ("500ms", "24h").
type File struct {
	Redis Redis `yaml:"redis"`
	Log   Log   `yaml:"log"`

	Namespace    string `yaml:"namespace"`
	KeyDelimiter string `yaml:"key_delimiter"`

	OperationTimeout     time.Duration `yaml:"operation_timeout"`
	TimeMeasurementError time.Duration `yaml:"time_measurement_error"`
	InvalidationWindow   time.Duration `yaml:"invalidation_window"`
	HardInvalidation     bool          `yaml:"hard_invalidation"`
	ExpirationTime       time.Duration `yaml:"expiration_time"`
	RemovalTime          time.Duration `yaml:"removal_time"`
}

// Default is used when no file is given.
func Default() *File {
	f := &File{}
	applyDefaults(f)
	return f
}

// Load reads, validates and completes the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&f)
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &f, nil
}

// LoadOrDefault loads path, or $ARCACHE_CONFIG when path is empty, or the
// defaults when neither is set.
func LoadOrDefault(path string) (*File, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (f *File) Validate() error {
	var errs []error
	if len(f.Redis.Addrs) == 0 {
		errs = append(errs, errors.New("redis.addrs is empty"))
	}
	for name, d := range map[string]time.Duration{
		"operation_timeout":      f.OperationTimeout,
		"time_measurement_error": f.TimeMeasurementError,
		"invalidation_window":    f.InvalidationWindow,
		"expiration_time":        f.ExpirationTime,
		"removal_time":           f.RemovalTime,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %v", name, d))
		}
	}
	switch f.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", f.Log.Level))
	}
	return errors.Join(errs...)
}

func applyDefaults(f *File) {
	if len(f.Redis.Addrs) == 0 {
		f.Redis.Addrs = []string{"localhost:6379"}
	}
	if f.Log.Level == "" {
		f.Log.Level = "warn"
	}
}
