// Package config loads the settings shared by the holysaw commands. Defaults
// are embedded; a config.yml in the user config directory (or the file named
// with --config) overrides them, and HOLYSAW_* environment variables override
// both, e.g. HOLYSAW_STORE_BACKEND=redis or HOLYSAW_SERVER_MAXSTOPMS=1000.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

type (
	Config struct {
		Log    Log    `yaml:"log"`
		Render Render `yaml:"render"`
		Server Server `yaml:"server"`
		Store  Store  `yaml:"store"`
	}

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	}

	Render struct {
		PCM16       bool   `yaml:"pcm16"` // false writes 32-bit float wav files
		TraceFormat string `yaml:"traceFormat"`
		TraceMode   string `yaml:"traceMode"`
		OutputDir   string `yaml:"outputDir"`
	}

	Server struct {
		Addr            string        `yaml:"addr"`
		ResultTTL       time.Duration `yaml:"resultTTL"`
		MaxStopMs       float64       `yaml:"maxStopMs"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	}

	Store struct {
		Backend       string `yaml:"backend"` // memory, redis or bolt
		RedisAddr     string `yaml:"redisAddr"`
		RedisPassword string `yaml:"redisPassword"`
		RedisDB       int    `yaml:"redisDB"`
		BoltPath      string `yaml:"boltPath"`
		Prefix        string `yaml:"prefix"`
	}
)

// EnvPrefix starts the name of every environment variable read by Load.
const EnvPrefix = "HOLYSAW_"

//go:embed config.yml
var defaultConfigYaml []byte

// Default returns the embedded defaults.
func Default() Config {
	var c Config
	if err := yaml.UnmarshalStrict(defaultConfigYaml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// DefaultPath returns where Load looks for the config file when none is
// named.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "holysaw", "config.yml"), nil
}

// Load returns the defaults overridden by the config file and the
// environment. If path is empty, the file at DefaultPath is read if it
// exists; a named file must exist.
func Load(path string) (Config, error) {
	c := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return c, ApplyEnv(&c, os.Environ())
		}
		path = p
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(b, &c); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return c, fmt.Errorf("could not read config: %w", err)
	}
	if err := ApplyEnv(&c, os.Environ()); err != nil {
		return c, err
	}
	return c, nil
}

// ApplyEnv overrides c with the HOLYSAW_SECTION_KEY=value pairs of environ.
// Keys are matched case-insensitively; values are converted to the type of
// the field they set.
func ApplyEnv(c *Config, environ []string) error {
	sections := map[string]any{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || key == "" {
			continue
		}
		m, _ := sections[section].(map[string]any)
		if m == nil {
			m = map[string]any{}
			sections[section] = m
		}
		m[strings.ReplaceAll(key, "_", "")] = value
	}
	if len(sections) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           c,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(sections); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}
