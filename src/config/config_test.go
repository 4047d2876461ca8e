package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDecode(t *testing.T) {
	yamlDoc := `
window:
  title: demo
  width: 640
render:
  buffering: 2
  vsync: true
  fence_timeout: 250ms
log:
  level: debug
  format: json
`
	tomlDoc := `
[window]
title = "demo"
width = 640

[render]
buffering = 2
vsync = true
fence_timeout = "250ms"

[log]
level = "debug"
format = "json"
`
	for _, tc := range []struct {
		name string
		ext  string
		doc  string
	}{
		{"yaml", ".yaml", yamlDoc},
		{"yml", ".YML", yamlDoc},
		{"toml", ".toml", tomlDoc},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Decode([]byte(tc.doc), tc.ext)
			require.NoError(t, err)

			require.Equal(t, "demo", cfg.Window.Title)
			require.Equal(t, 640, cfg.Window.Width)
			// untouched fields keep their defaults
			require.Equal(t, 720, cfg.Window.Height)
			require.True(t, cfg.Window.Resizable)
			require.Equal(t, 8.0, cfg.Content.CycleSeconds)

			require.Equal(t, 2, cfg.Render.Buffering)
			require.True(t, cfg.Render.VSync)
			require.Equal(t, 250*time.Millisecond, cfg.Render.FenceTimeout.Std())
			require.Equal(t, "debug", cfg.Log.Level)
			require.Equal(t, "json", cfg.Log.Format)
		})
	}
}

func TestLogSettingsIgnoreCase(t *testing.T) {
	cfg, err := Decode([]byte("log:\n  level: INFO\n  format: JSON\n"), ".yaml")
	require.NoError(t, err)
	require.Equal(t, "INFO", cfg.Log.Level)
	require.Equal(t, "JSON", cfg.Log.Format)
}

func TestParseDoesNotValidate(t *testing.T) {
	cfg, err := Parse([]byte("render:\n  buffering: 1\n"), ".yaml")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Render.Buffering)
	require.True(t, errors.Is(cfg.Validate(), ErrInvalid))

	_, err = Parse([]byte("{}"), ".ini")
	require.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestDecodeEmptyYAML(t *testing.T) {
	cfg, err := Decode(nil, ".yaml")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		ext  string
		doc  string
		is   error
	}{
		{"unknown extension", ".json", `{}`, ErrUnknownFormat},
		{"single buffering", ".yaml", "render:\n  buffering: 1\n", ErrInvalid},
		{"zero width", ".toml", "[window]\nwidth = 0\n", ErrInvalid},
		{"bad level", ".yaml", "log:\n  level: loud\n", ErrInvalid},
		{"bad format", ".yaml", "log:\n  format: xml\n", ErrInvalid},
		{"negative timeout", ".yaml", "render:\n  fence_timeout: -1s\n", ErrInvalid},
		{"zero cycle", ".toml", "[content]\ncycle_seconds = 0.0\n", ErrInvalid},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc), tc.ext)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.is), "got %v", err)
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		_, err := Decode([]byte("render:\n  buffers: 4\n"), ".yaml")
		require.Error(t, err)
		_, err = Decode([]byte("[render]\nbuffers = 4\n"), ".toml")
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Decode([]byte("render:\n  fence_timeout: soon\n"), ".yaml")
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epsilon.toml")
	require.NoError(t, os.WriteFile(path, []byte("[render]\nbuffering = 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Render.Buffering)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	invalid := filepath.Join(dir, "single.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("render:\n  buffering: 1\n"), 0o644))
	_, err = Load(invalid)
	require.True(t, errors.Is(err, ErrInvalid))

	cfg, err = Read(invalid)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Render.Buffering)
}

func TestDurationText(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1.5s", string(text))

	var back Duration
	require.NoError(t, back.UnmarshalText(text))
	require.Equal(t, d, back)
}
