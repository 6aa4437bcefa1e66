package client

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// Config holds the client startup options.
type Config struct {
	Server string
	Group  int
	Debug  bool
}

// Run connects to the server and drives the interactive TUI until the user
// quits or the connection drops.
func Run(cfg Config) error {
	// The TUI owns the terminal, so logs go to a file in debug mode and
	// nowhere otherwise.
	logger := log.New(io.Discard)
	if cfg.Debug {
		f, err := os.OpenFile("bargain-client.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
		logger = log.New(f)
		logger.SetLevel(log.DebugLevel)
	}

	c, err := Dial(cfg.Server, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	model := NewModel(c, cfg.Group, logger)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
