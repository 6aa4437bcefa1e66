package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"bargain/internal/store"
)

type ExportCmd struct {
	Database string `kong:"default='bargain.db',help='Path to the SQLite database'"`
	Output   string `kong:"short='o',default='-',help='Output file, or - for stdout'"`
}

func (c *ExportCmd) Run() error {
	repo, err := store.NewSQLite(c.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	rounds, err := repo.ListRounds(context.Background())
	if err != nil {
		return fmt.Errorf("load rounds: %w", err)
	}

	var out io.Writer = os.Stdout
	if c.Output != "-" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return store.WriteRoundsCSV(out, rounds)
}
