package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	writeFile(t, path, `
[engine]
target_tickrate = 30

[logging]
level = "debug"

[[scripting.modules]]
id = "hud"
path = "scripts/hud.lua"
depends_on = ["core"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Engine.TargetTickrate)
	assert.Equal(t, 60, cfg.Engine.TargetFramerate)
	assert.Equal(t, "resources", cfg.Engine.ResourcesDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	require.Len(t, cfg.Scripting.Modules, 1)
	assert.Equal(t, ScriptModule{ID: "hud", Path: "scripts/hud.lua", DependsOn: []string{"core"}}, cfg.Scripting.Modules[0])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, bad, "[engine\n")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

type windowSection struct {
	Title  string `toml:"title" yaml:"title"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
}

func TestSections_LoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game", "client.toml"), `
unknown = 1

[window]
title = "Demo"
width = 640
height = 480
`)
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewSections(zap.New(core))
	var win windowSection
	require.NoError(t, s.Add("window", &win))

	path, err := s.Load(dir, "game")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "game", "client.toml"), path)
	assert.Equal(t, windowSection{"Demo", 640, 480}, win)
	assert.Equal(t, 1, logs.FilterMessage("ignoring unknown key in config root").Len())
}

func TestSections_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game", "client.yaml"), `
window:
  title: Demo
  width: 800
  height: 600
`)
	s := NewSections(nil)
	var win windowSection
	require.NoError(t, s.Add("window", &win))

	_, err := s.Load(dir, "game")
	require.NoError(t, err)
	assert.Equal(t, windowSection{"Demo", 800, 600}, win)
}

func TestSections_NotFound(t *testing.T) {
	s := NewSections(nil)
	_, err := s.Load(t.TempDir(), "nothing")
	assert.ErrorIs(t, err, ErrClientConfigNotFound)
}

func TestSections_BadSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "game", "client.toml"), "[window]\nwidth = \"wide\"\n")
	s := NewSections(nil)
	var win windowSection
	require.NoError(t, s.Add("window", &win))

	_, err := s.Load(dir, "game")
	assert.ErrorContains(t, err, `section "window"`)
}

func TestSections_AddValidation(t *testing.T) {
	s := NewSections(nil)
	var win windowSection
	assert.Error(t, s.Add("window", win))
	assert.Error(t, s.Add("window", (*windowSection)(nil)))
	require.NoError(t, s.Add("window", &win))
	assert.Error(t, s.Add("window", &win))
	assert.Equal(t, 1, s.Len())
}
