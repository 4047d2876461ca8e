// Package config loads the settings of the epsilon binary from a YAML or
// TOML file. Defaults are applied before the file is decoded, so a file
// only needs to name what it changes.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid")
)

type Config struct {
	Window  Window  `yaml:"window" toml:"window"`
	Render  Render  `yaml:"render" toml:"render"`
	Log     Log     `yaml:"log" toml:"log"`
	Content Content `yaml:"content" toml:"content"`
}

type Window struct {
	Title     string `yaml:"title" toml:"title"`
	Width     int    `yaml:"width" toml:"width"`
	Height    int    `yaml:"height" toml:"height"`
	Resizable bool   `yaml:"resizable" toml:"resizable"`
}

type Render struct {
	// Buffering is the number of swapchain images requested.
	Buffering int `yaml:"buffering" toml:"buffering"`
	// VSync forces strict FIFO presentation.
	VSync bool `yaml:"vsync" toml:"vsync"`
	// FenceTimeout bounds the wait for a frame slot; zero waits forever.
	FenceTimeout Duration `yaml:"fence_timeout" toml:"fence_timeout"`
	Validation   bool     `yaml:"validation" toml:"validation"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type Content struct {
	// CycleSeconds is how long the clear colour takes to go round the hue
	// circle.
	CycleSeconds float64 `yaml:"cycle_seconds" toml:"cycle_seconds"`
}

// Duration is a time.Duration written as "250ms" or "2s" in files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

func Default() Config {
	return Config{
		Window: Window{
			Title:     "epsilon",
			Width:     1280,
			Height:    720,
			Resizable: true,
		},
		Render: Render{
			Buffering: 3,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Content: Content{
			CycleSeconds: 8,
		},
	}
}

// Validate reports the first setting the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Render.Buffering < 2:
		return errors.Wrapf(ErrInvalid, "render.buffering must be at least 2, got %d", c.Render.Buffering)
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.Wrapf(ErrInvalid, "window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	case c.Render.FenceTimeout < 0:
		return errors.Wrapf(ErrInvalid, "render.fence_timeout must not be negative, got %s", c.Render.FenceTimeout.Std())
	case !contains(LogLevels, strings.ToLower(c.Log.Level)):
		return errors.Wrapf(ErrInvalid, "log.level %q is not one of %s", c.Log.Level, strings.Join(LogLevels, ", "))
	case !contains(LogFormats, strings.ToLower(c.Log.Format)):
		return errors.Wrapf(ErrInvalid, "log.format %q is not one of %s", c.Log.Format, strings.Join(LogFormats, ", "))
	case c.Content.CycleSeconds <= 0:
		return errors.Wrapf(ErrInvalid, "content.cycle_seconds must be positive, got %g", c.Content.CycleSeconds)
	}
	return nil
}

// Load reads path over the defaults and validates the result. The format
// follows the extension: .yaml, .yml or .toml.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "load %s", path)
	}
	return cfg, nil
}

// Read is Load without validation, for callers that override settings
// before validating.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, errors.Wrapf(err, "load %s", path)
	}
	return cfg, nil
}

// Decode parses data in the format named by ext over the defaults and
// validates the result.
func Decode(data []byte, ext string) (Config, error) {
	cfg, err := Parse(data, ext)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes data over the defaults without validating.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, errors.Wrap(err, "decode yaml")
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode toml")
		}
	default:
		return Config{}, errors.Wrapf(ErrUnknownFormat, "extension %q", ext)
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
