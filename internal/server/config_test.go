package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bargain.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 5001, cfg.Server.APIPort)
	assert.Equal(t, 1000, cfg.Game.PieSize)
	assert.Equal(t, 10, cfg.Game.MaxRounds)
	assert.Len(t, cfg.Groups, 4)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server {
  port = 9000
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Address, "unset fields fall back")
	assert.Equal(t, 1000, cfg.Game.PieSize)
	assert.Len(t, cfg.Groups, 4)
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 8080
  api_port  = 8081
  log_level = "debug"
  database  = "data/games.db"
}

game {
  pie_size   = 100
  max_rounds = 3
}

group "1" {
  batna_a = 0
  batna_b = 25
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, "data/games.db", cfg.Server.Database)
	assert.Equal(t, 3, cfg.Game.MaxRounds)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, 25, cfg.Groups[0].BatnaB)

	rules := cfg.Rules()
	assert.Equal(t, 100, rules.PieSize)
	assert.True(t, rules.ValidGroup(1))
	assert.False(t, rules.ValidGroup(2))
	assert.Equal(t, 25, rules.BATNAs[1].B)
}

func TestLoadConfig_InvalidHCL(t *testing.T) {
	path := writeConfig(t, `server { port = `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port collision", func(c *Config) { c.Server.APIPort = c.Server.Port }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero pie", func(c *Config) { c.Game.PieSize = 0 }},
		{"zero rounds", func(c *Config) { c.Game.MaxRounds = 0 }},
		{"no groups", func(c *Config) { c.Groups = nil }},
		{"negative batna", func(c *Config) { c.Groups[0].BatnaB = -1 }},
		{"batna above pie", func(c *Config) { c.Groups[0].BatnaB = 2000 }},
		{"non-numeric group", func(c *Config) { c.Groups[0].Number = "one" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Addrs(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:5000", cfg.GameAddr())
	assert.Equal(t, "localhost:5001", cfg.APIAddr())
}
