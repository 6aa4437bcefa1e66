package server

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"bargain/internal/negotiation"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   *GameSettings  `hcl:"game,block"`
	Groups []GroupConfig  `hcl:"group,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	APIPort  int    `hcl:"api_port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	Database string `hcl:"database,optional"`
}

// GameSettings tunes the bargaining parameters.
type GameSettings struct {
	PieSize   int `hcl:"pie_size,optional"`
	MaxRounds int `hcl:"max_rounds,optional"`
}

// GroupConfig defines one experimental group and its fallback payouts.
type GroupConfig struct {
	Number string `hcl:"number,label"`
	BatnaA int    `hcl:"batna_a"`
	BatnaB int    `hcl:"batna_b"`
}

// DefaultConfig returns the configuration of the experiment as originally
// run: four groups differing only in B's outside option.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     5000,
			APIPort:  5001,
			LogLevel: "info",
			Database: "bargain.db",
		},
		Game: &GameSettings{
			PieSize:   1000,
			MaxRounds: 10,
		},
		Groups: []GroupConfig{
			{Number: "1", BatnaA: 0, BatnaB: 0},
			{Number: "2", BatnaA: 0, BatnaB: 250},
			{Number: "3", BatnaA: 0, BatnaB: 500},
			{Number: "4", BatnaA: 0, BatnaB: 750},
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.APIPort == 0 {
		config.Server.APIPort = defaults.Server.APIPort
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Server.Database == "" {
		config.Server.Database = defaults.Server.Database
	}
	if config.Game == nil {
		config.Game = defaults.Game
	}
	if config.Game.PieSize == 0 {
		config.Game.PieSize = defaults.Game.PieSize
	}
	if config.Game.MaxRounds == 0 {
		config.Game.MaxRounds = defaults.Game.MaxRounds
	}
	if len(config.Groups) == 0 {
		config.Groups = defaults.Groups
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.APIPort < 1 || c.Server.APIPort > 65535 {
		return fmt.Errorf("invalid api port: %d", c.Server.APIPort)
	}
	if c.Server.APIPort == c.Server.Port {
		return fmt.Errorf("api port and game port must differ")
	}

	if c.Game.PieSize <= 0 {
		return fmt.Errorf("pie size must be positive")
	}
	if c.Game.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1")
	}

	if len(c.Groups) == 0 {
		return fmt.Errorf("at least one group must be configured")
	}
	for _, group := range c.Groups {
		number, err := strconv.Atoi(group.Number)
		if err != nil {
			return fmt.Errorf("group %q: number must be an integer", group.Number)
		}
		if group.BatnaA < 0 || group.BatnaB < 0 {
			return fmt.Errorf("group %d: BATNA values must be non-negative", number)
		}
		if group.BatnaA > c.Game.PieSize || group.BatnaB > c.Game.PieSize {
			return fmt.Errorf("group %d: BATNA cannot exceed the pie size", number)
		}
	}

	return nil
}

// Rules converts the configuration into game rules. Validate first.
func (c *Config) Rules() negotiation.Rules {
	batnas := make(map[int]negotiation.BATNAPair, len(c.Groups))
	for _, group := range c.Groups {
		number, err := strconv.Atoi(group.Number)
		if err != nil {
			continue
		}
		batnas[number] = negotiation.BATNAPair{A: group.BatnaA, B: group.BatnaB}
	}

	return negotiation.Rules{
		PieSize:   c.Game.PieSize,
		MaxRounds: c.Game.MaxRounds,
		BATNAs:    batnas,
	}
}

// GameAddr returns the WebSocket listen address.
func (c *Config) GameAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// APIAddr returns the HTTP API listen address.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.APIPort)
}
